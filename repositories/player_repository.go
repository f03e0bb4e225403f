package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gespadel/gespadel/models"
)

var (
	ErrPlayerNotFound         = errors.New("player not found")
	ErrPlayerEmailConflict    = errors.New("player email conflict")
	ErrPlayerIdentityConflict = errors.New("player identity already bound")
)

type PlayerRepository interface {
	Create(ctx context.Context, player *models.Player) error
	GetByID(ctx context.Context, id string) (*models.Player, error)
	GetByIdentity(ctx context.Context, identityID string) (*models.Player, error)
	GetByEmail(ctx context.Context, email string) (*models.Player, error)
	Update(ctx context.Context, player *models.Player) error
	List(ctx context.Context) ([]models.Player, error)
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

const playerColumns = `id, identity_id, name, email, phone, gender, category, role, profile_picture, created_at, updated_at`

func (r *postgresPlayerRepository) Create(ctx context.Context, p *models.Player) error {
	query := `
		INSERT INTO players (id, identity_id, name, email, phone, gender, category, role, profile_picture, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := executor(ctx, r.db).ExecContext(ctx, query,
		p.ID, nullString(p.IdentityID), p.Name, p.Email, nullString(p.Phone),
		genderValue(p.Gender), categoryValue(p.Category), p.Role, nullString(p.ProfilePicture),
		p.CreatedAt, p.UpdatedAt,
	)
	return r.handlePlayerError(err)
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, id string) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`
	return r.scanPlayer(executor(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *postgresPlayerRepository) GetByIdentity(ctx context.Context, identityID string) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE identity_id = $1`
	return r.scanPlayer(executor(ctx, r.db).QueryRowContext(ctx, query, identityID))
}

func (r *postgresPlayerRepository) GetByEmail(ctx context.Context, email string) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE email = $1 LIMIT 1`
	return r.scanPlayer(executor(ctx, r.db).QueryRowContext(ctx, query, email))
}

func (r *postgresPlayerRepository) Update(ctx context.Context, p *models.Player) error {
	query := `
		UPDATE players
		SET identity_id = $2, name = $3, email = $4, phone = $5, gender = $6,
			category = $7, role = $8, profile_picture = $9, updated_at = $10
		WHERE id = $1`

	result, err := executor(ctx, r.db).ExecContext(ctx, query,
		p.ID, nullString(p.IdentityID), p.Name, p.Email, nullString(p.Phone),
		genderValue(p.Gender), categoryValue(p.Category), p.Role, nullString(p.ProfilePicture),
		p.UpdatedAt,
	)
	if err != nil {
		return r.handlePlayerError(err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) List(ctx context.Context) ([]models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players ORDER BY name, id`

	rows, err := executor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	players := make([]models.Player, 0)
	for rows.Next() {
		p, err := r.scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player rows: %w", err)
	}
	return players, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *postgresPlayerRepository) scanPlayer(row rowScanner) (*models.Player, error) {
	var p models.Player
	var identityID, phone, picture, gender, category sql.NullString
	err := row.Scan(&p.ID, &identityID, &p.Name, &p.Email, &phone, &gender, &category,
		&p.Role, &picture, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan player: %w", err)
	}
	p.IdentityID = stringPtr(identityID)
	p.Phone = stringPtr(phone)
	p.ProfilePicture = stringPtr(picture)
	if gender.Valid {
		g := models.Gender(gender.String)
		p.Gender = &g
	}
	if category.Valid {
		c := models.Category(category.String)
		p.Category = &c
	}
	return &p, nil
}

func (r *postgresPlayerRepository) handlePlayerError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok && pqErr.Code == pqUniqueViolation {
		switch pqErr.Constraint {
		case "players_email_key":
			return ErrPlayerEmailConflict
		case "players_identity_id_key", "players_pkey":
			return ErrPlayerIdentityConflict
		}
	}
	return err
}

func genderValue(g *models.Gender) sql.NullString {
	if g == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*g), Valid: true}
}

func categoryValue(c *models.Category) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*c), Valid: true}
}
