package db

var schema = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id              TEXT PRIMARY KEY,
		identity_id     TEXT,
		name            TEXT NOT NULL,
		email           TEXT NOT NULL,
		phone           TEXT,
		gender          TEXT CHECK (gender IN ('masculine', 'feminine')),
		category        TEXT,
		role            TEXT NOT NULL CHECK (role IN ('player', 'organizer', 'organizer_player')),
		profile_picture TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT players_identity_id_key UNIQUE (identity_id)
	)`,

	// Identities may come without an email; only real addresses are unique.
	`ALTER TABLE players DROP CONSTRAINT IF EXISTS players_email_key`,
	`CREATE UNIQUE INDEX IF NOT EXISTS players_email_key ON players (email) WHERE email <> ''`,

	`CREATE TABLE IF NOT EXISTS tournaments (
		id                     TEXT PRIMARY KEY,
		name                   TEXT NOT NULL,
		club_name              TEXT NOT NULL DEFAULT '',
		description            TEXT NOT NULL DEFAULT '',
		contact_phone          TEXT NOT NULL DEFAULT '',
		contact_email          TEXT NOT NULL DEFAULT '',
		inscription_start_date TIMESTAMPTZ NOT NULL,
		start_date             TIMESTAMPTZ NOT NULL,
		end_date               TIMESTAMPTZ NOT NULL,
		categories_masculine   TEXT[] NOT NULL DEFAULT '{}',
		categories_feminine    TEXT[] NOT NULL DEFAULT '{}',
		price                  NUMERIC(10, 2) NOT NULL DEFAULT 0 CHECK (price >= 0),
		poster_image           TEXT,
		rules_pdf_url          TEXT,
		status                 TEXT NOT NULL CHECK (status IN ('OPEN', 'CLOSED', 'IN_PROGRESS', 'FINISHED')),
		organizer_id           TEXT NOT NULL,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT tournaments_organizer_id_fkey FOREIGN KEY (organizer_id) REFERENCES players (id)
	)`,

	`CREATE INDEX IF NOT EXISTS tournaments_start_date_idx ON tournaments (start_date DESC)`,

	`CREATE TABLE IF NOT EXISTS registrations (
		id                TEXT PRIMARY KEY,
		tournament_id     TEXT NOT NULL,
		player1_id        TEXT NOT NULL,
		partner_player_id TEXT,
		partner_name      TEXT,
		partner_phone     TEXT,
		gender            TEXT NOT NULL CHECK (gender IN ('masculine', 'feminine')),
		category          TEXT NOT NULL,
		registration_date TIMESTAMPTZ NOT NULL,
		status            TEXT NOT NULL CHECK (status IN ('ACTIVE', 'CANCELLED')),
		time_preferences  JSONB NOT NULL DEFAULT '[]',
		cancelled_at      TIMESTAMPTZ,
		cancelled_by      TEXT,
		CONSTRAINT registrations_tournament_id_fkey FOREIGN KEY (tournament_id)
			REFERENCES tournaments (id) ON DELETE CASCADE,
		CONSTRAINT registrations_player1_id_fkey FOREIGN KEY (player1_id) REFERENCES players (id),
		CONSTRAINT registrations_partner_player_id_fkey FOREIGN KEY (partner_player_id) REFERENCES players (id),
		CONSTRAINT registrations_partner_check CHECK (partner_player_id IS NULL OR partner_name IS NULL),
		CONSTRAINT registrations_self_partner_check CHECK (partner_player_id IS NULL OR partner_player_id <> player1_id)
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS registrations_active_player_idx
		ON registrations (tournament_id, player1_id) WHERE status = 'ACTIVE'`,

	`CREATE INDEX IF NOT EXISTS registrations_partner_idx ON registrations (partner_player_id)`,
}
