package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gespadel/gespadel/models"
)

var (
	ErrRegistrationNotFound          = errors.New("registration not found")
	ErrRegistrationConflict          = errors.New("player already holds an active registration for this tournament")
	ErrRegistrationTournamentInvalid = errors.New("invalid tournament reference")
	ErrRegistrationPlayerInvalid     = errors.New("invalid player reference")
)

type RegistrationRepository interface {
	// Create fails with ErrRegistrationConflict when player1 already holds an
	// active registration for the tournament.
	Create(ctx context.Context, registration *models.Registration) error
	GetByID(ctx context.Context, id string) (*models.Registration, error)
	FindActive(ctx context.Context, tournamentID, playerID string) (*models.Registration, error)
	ListByTournament(ctx context.Context, tournamentID string) ([]models.Registration, error)
	// ListByPlayer returns registrations where the player is registrant or referenced partner.
	ListByPlayer(ctx context.Context, playerID string) ([]models.Registration, error)
	List(ctx context.Context) ([]models.Registration, error)
	UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus, at time.Time, by string) error
	DeleteByTournament(ctx context.Context, tournamentID string) error
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

const registrationColumns = `
	id, tournament_id, player1_id, partner_player_id, partner_name, partner_phone,
	gender, category, registration_date, status, time_preferences, cancelled_at, cancelled_by`

func (r *postgresRegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	prefs, err := json.Marshal(slotsOrEmpty(reg.TimePreferences))
	if err != nil {
		return fmt.Errorf("failed to encode time preferences: %w", err)
	}
	partnerID, partnerName, partnerPhone := partnerColumns(reg.Partner)

	query := `
		INSERT INTO registrations (` + registrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = executor(ctx, r.db).ExecContext(ctx, query,
		reg.ID, reg.TournamentID, reg.Player1ID, partnerID, partnerName, partnerPhone,
		reg.Gender, reg.Category, reg.RegistrationDate, reg.Status, string(prefs),
		reg.CancelledAt, nullString(reg.CancelledBy),
	)
	return r.handleRegistrationError(err)
}

func (r *postgresRegistrationRepository) GetByID(ctx context.Context, id string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return r.scanRegistration(executor(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *postgresRegistrationRepository) FindActive(ctx context.Context, tournamentID, playerID string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE tournament_id = $1 AND player1_id = $2 AND status = 'ACTIVE'`
	return r.scanRegistration(executor(ctx, r.db).QueryRowContext(ctx, query, tournamentID, playerID))
}

func (r *postgresRegistrationRepository) ListByTournament(ctx context.Context, tournamentID string) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations WHERE tournament_id = $1 ORDER BY registration_date, id`
	return r.list(ctx, query, tournamentID)
}

func (r *postgresRegistrationRepository) ListByPlayer(ctx context.Context, playerID string) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations WHERE player1_id = $1 OR partner_player_id = $1
		ORDER BY registration_date, id`
	return r.list(ctx, query, playerID)
}

func (r *postgresRegistrationRepository) List(ctx context.Context) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations ORDER BY registration_date, id`
	return r.list(ctx, query)
}

func (r *postgresRegistrationRepository) UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus, at time.Time, by string) error {
	query := `UPDATE registrations SET status = $2, cancelled_at = $3, cancelled_by = $4 WHERE id = $1`

	var cancelledAt *time.Time
	var cancelledBy sql.NullString
	if status == models.RegistrationCancelled {
		cancelledAt = &at
		cancelledBy = sql.NullString{String: by, Valid: by != ""}
	}

	result, err := executor(ctx, r.db).ExecContext(ctx, query, id, status, cancelledAt, cancelledBy)
	if err != nil {
		return r.handleRegistrationError(err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) DeleteByTournament(ctx context.Context, tournamentID string) error {
	_, err := executor(ctx, r.db).ExecContext(ctx, `DELETE FROM registrations WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to delete registrations of tournament %s: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresRegistrationRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Registration, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	registrations := make([]models.Registration, 0)
	for rows.Next() {
		reg, err := r.scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		registrations = append(registrations, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registration rows: %w", err)
	}
	return registrations, nil
}

func (r *postgresRegistrationRepository) scanRegistration(row rowScanner) (*models.Registration, error) {
	var reg models.Registration
	var partnerID, partnerName, partnerPhone, cancelledBy sql.NullString
	var cancelledAt sql.NullTime
	var prefs []byte

	err := row.Scan(
		&reg.ID, &reg.TournamentID, &reg.Player1ID, &partnerID, &partnerName, &partnerPhone,
		&reg.Gender, &reg.Category, &reg.RegistrationDate, &reg.Status, &prefs,
		&cancelledAt, &cancelledBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to scan registration: %w", err)
	}

	switch {
	case partnerID.Valid:
		reg.Partner = models.ReferencedPartner(partnerID.String)
	case partnerName.Valid:
		reg.Partner = models.UnregisteredPartner(partnerName.String, stringPtr(partnerPhone))
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &reg.TimePreferences); err != nil {
			return nil, fmt.Errorf("failed to decode time preferences of registration %s: %w", reg.ID, err)
		}
	}
	if cancelledAt.Valid {
		at := cancelledAt.Time
		reg.CancelledAt = &at
	}
	reg.CancelledBy = stringPtr(cancelledBy)
	return &reg, nil
}

func (r *postgresRegistrationRepository) handleRegistrationError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok {
		switch pqErr.Code {
		case pqUniqueViolation:
			if pqErr.Constraint == "registrations_active_player_idx" {
				return ErrRegistrationConflict
			}
		case pqForeignKeyViolation:
			switch pqErr.Constraint {
			case "registrations_tournament_id_fkey":
				return ErrRegistrationTournamentInvalid
			case "registrations_player1_id_fkey", "registrations_partner_player_id_fkey":
				return ErrRegistrationPlayerInvalid
			}
		case pqCheckViolation:
			return fmt.Errorf("registration rejected by constraint %s: %w", pqErr.Constraint, err)
		}
	}
	return err
}

func partnerColumns(p *models.Partner) (id, name, phone sql.NullString) {
	if p == nil {
		return
	}
	switch p.Kind {
	case models.PartnerReferenced:
		id = sql.NullString{String: p.PlayerID, Valid: true}
	case models.PartnerUnregistered:
		name = sql.NullString{String: p.Name, Valid: true}
		phone = nullString(p.Phone)
	}
	return
}

func slotsOrEmpty(slots []models.TimeSlot) []models.TimeSlot {
	if slots == nil {
		return []models.TimeSlot{}
	}
	return slots
}
