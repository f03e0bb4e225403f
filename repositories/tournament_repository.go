package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gespadel/gespadel/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound       = errors.New("tournament not found")
	ErrTournamentStatusConflict = errors.New("tournament status changed concurrently")
	ErrTournamentInvalidOrg     = errors.New("invalid organizer reference")
	ErrTournamentNotEditable    = errors.New("tournament is no longer open for edits")
)

type ListTournamentsFilter struct {
	Status      *models.TournamentStatus
	OrganizerID *string
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id string) (*models.Tournament, error)
	// List orders by start date, newest first.
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	// Update writes every field except status, and only while the stored
	// status is OPEN.
	Update(ctx context.Context, tournament *models.Tournament) error
	// UpdateStatus applies the change only if the stored status is still from.
	UpdateStatus(ctx context.Context, id string, from, to models.TournamentStatus) error
	Delete(ctx context.Context, id string) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `
	id, name, club_name, description, contact_phone, contact_email,
	inscription_start_date, start_date, end_date, categories_masculine, categories_feminine,
	price, poster_image, rules_pdf_url, status, organizer_id, created_at, updated_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (` + tournamentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := executor(ctx, r.db).ExecContext(ctx, query,
		t.ID, t.Name, t.ClubName, t.Description, t.ContactPhone, t.ContactEmail,
		t.InscriptionStartDate, t.StartDate, t.EndDate,
		pq.Array(categoryStrings(t.Categories.Masculine)), pq.Array(categoryStrings(t.Categories.Feminine)),
		t.Price, nullString(t.PosterImage), nullString(t.RulesPdfURL), t.Status, t.OrganizerID,
		t.CreatedAt, t.UpdatedAt,
	)
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id string) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return r.scanTournament(executor(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND organizer_id = $%d", argID)
		args = append(args, *filter.OrganizerID)
	}
	query += " ORDER BY start_date DESC, created_at DESC"

	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		t, err := r.scanTournament(rows)
		if err != nil {
			return nil, err
		}
		tournaments = append(tournaments, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	query := `
		UPDATE tournaments SET
			name = $2,
			club_name = $3,
			description = $4,
			contact_phone = $5,
			contact_email = $6,
			inscription_start_date = $7,
			start_date = $8,
			end_date = $9,
			categories_masculine = $10,
			categories_feminine = $11,
			price = $12,
			poster_image = $13,
			rules_pdf_url = $14,
			updated_at = $15
		WHERE id = $1 AND status = 'OPEN'`

	exec := executor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		t.ID, t.Name, t.ClubName, t.Description, t.ContactPhone, t.ContactEmail,
		t.InscriptionStartDate, t.StartDate, t.EndDate,
		pq.Array(categoryStrings(t.Categories.Masculine)), pq.Array(categoryStrings(t.Categories.Feminine)),
		t.Price, nullString(t.PosterImage), nullString(t.RulesPdfURL), t.UpdatedAt,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	if err := checkAffectedRows(result, ErrTournamentNotEditable); err == nil {
		return nil
	} else if !errors.Is(err, ErrTournamentNotEditable) {
		return err
	}
	return r.missingOr(ctx, exec, t.ID, ErrTournamentNotEditable)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, id string, from, to models.TournamentStatus) error {
	exec := executor(ctx, r.db)
	query := `UPDATE tournaments SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	result, err := exec.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return r.handleTournamentError(err)
	}
	if err := checkAffectedRows(result, ErrTournamentStatusConflict); err == nil {
		return nil
	} else if !errors.Is(err, ErrTournamentStatusConflict) {
		return err
	}

	return r.missingOr(ctx, exec, id, ErrTournamentStatusConflict)
}

// missingOr tells a guarded update that matched no row apart: a missing
// tournament yields ErrTournamentNotFound, an existing one yields guardErr.
func (r *postgresTournamentRepository) missingOr(ctx context.Context, exec SQLExecutor, id string, guardErr error) error {
	var exists bool
	if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tournaments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check tournament existence: %w", err)
	}
	if !exists {
		return ErrTournamentNotFound
	}
	return guardErr
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id string) error {
	result, err := executor(ctx, r.db).ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) scanTournament(row rowScanner) (*models.Tournament, error) {
	var t models.Tournament
	var masculine, feminine pq.StringArray
	var poster, rules sql.NullString

	err := row.Scan(
		&t.ID, &t.Name, &t.ClubName, &t.Description, &t.ContactPhone, &t.ContactEmail,
		&t.InscriptionStartDate, &t.StartDate, &t.EndDate, &masculine, &feminine,
		&t.Price, &poster, &rules, &t.Status, &t.OrganizerID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament: %w", err)
	}
	t.Categories = models.CategoryOffer{
		Masculine: toCategories(masculine),
		Feminine:  toCategories(feminine),
	}
	t.PosterImage = stringPtr(poster)
	t.RulesPdfURL = stringPtr(rules)
	return &t, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok && pqErr.Code == pqForeignKeyViolation {
		if pqErr.Constraint == "tournaments_organizer_id_fkey" {
			return ErrTournamentInvalidOrg
		}
	}
	return err
}

func categoryStrings(cs []models.Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

func toCategories(ss []string) []models.Category {
	out := make([]models.Category, len(ss))
	for i, s := range ss {
		out[i] = models.Category(s)
	}
	return out
}
