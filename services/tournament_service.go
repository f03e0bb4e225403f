package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gespadel/gespadel/feed"
	"github.com/gespadel/gespadel/models"
	"github.com/gespadel/gespadel/repositories"
	"github.com/gespadel/gespadel/storage"
)

// TournamentInput carries the editable tournament fields. A nil poster or
// rules reference keeps the stored one on update.
type TournamentInput struct {
	Name                 string               `json:"name"`
	ClubName             string               `json:"club_name"`
	Description          string               `json:"description"`
	ContactPhone         string               `json:"contact_phone"`
	ContactEmail         string               `json:"contact_email"`
	InscriptionStartDate time.Time            `json:"inscription_start_date"`
	StartDate            time.Time            `json:"start_date"`
	EndDate              time.Time            `json:"end_date"`
	Categories           models.CategoryOffer `json:"categories"`
	Price                float64              `json:"price"`
	PosterImage          *string              `json:"poster_image,omitempty"`
	RulesPdfURL          *string              `json:"rules_pdf_url,omitempty"`
}

type TournamentService struct {
	tournaments   repositories.TournamentRepository
	registrations repositories.RegistrationRepository
	tx            repositories.Transactor
	uploader      storage.FileUploader
	notifier
	now   Clock
	newID func() string
}

func NewTournamentService(
	tournaments repositories.TournamentRepository,
	registrations repositories.RegistrationRepository,
	tx repositories.Transactor,
	uploader storage.FileUploader,
	publisher feed.Publisher,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		tournaments:   tournaments,
		registrations: registrations,
		tx:            tx,
		uploader:      uploader,
		notifier:      notifier{publisher: publisher, logger: logger},
		now:           systemClock,
		newID:         models.NewID,
	}
}

func (s *TournamentService) CreateTournament(ctx context.Context, in TournamentInput, creator *models.Player) (*models.Tournament, error) {
	if err := requireOrganizer(creator); err != nil {
		return nil, err
	}
	if err := validateTournamentInput(&in); err != nil {
		return nil, err
	}

	now := s.now()
	t := &models.Tournament{
		ID:          s.newID(),
		Status:      models.StatusOpen,
		OrganizerID: creator.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyTournamentInput(t, in)

	if err := s.tournaments.Create(ctx, t); err != nil {
		return nil, persistenceError(err, "failed to create tournament")
	}

	s.logger.InfoContext(ctx, "tournament created", slog.String("tournament_id", t.ID), slog.String("organizer_id", creator.ID))
	s.emit(ctx, feed.CollectionTournaments, feed.OpCreated, t.ID, t.ID, t)
	return t, nil
}

func (s *TournamentService) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	t, err := s.tournaments.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentError(err)
	}
	return t, nil
}

// ListTournaments returns tournaments ordered by start date, newest first.
func (s *TournamentService) ListTournaments(ctx context.Context, status *models.TournamentStatus) ([]models.Tournament, error) {
	if status != nil && !status.Valid() {
		return nil, newError(KindValidation, "unknown tournament status %q", *status)
	}
	ts, err := s.tournaments.List(ctx, repositories.ListTournamentsFilter{Status: status})
	if err != nil {
		return nil, persistenceError(err, "failed to list tournaments")
	}
	return ts, nil
}

// UpdateTournament replaces the editable fields. Status never changes here
// and a tournament that left OPEN is frozen.
func (s *TournamentService) UpdateTournament(ctx context.Context, id string, in TournamentInput, editor *models.Player) (*models.Tournament, error) {
	if err := requireOrganizer(editor); err != nil {
		return nil, err
	}
	if err := validateTournamentInput(&in); err != nil {
		return nil, err
	}

	t, err := s.tournaments.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentError(err)
	}
	if err := requireEditable(t); err != nil {
		return nil, err
	}

	applyTournamentInput(t, in)
	t.UpdatedAt = s.now()
	if err := s.tournaments.Update(ctx, t); err != nil {
		return nil, mapTournamentError(err)
	}

	s.emit(ctx, feed.CollectionTournaments, feed.OpUpdated, t.ID, t.ID, t)
	return t, nil
}

// TransitionStatus moves the tournament to its immediate successor status.
func (s *TournamentService) TransitionStatus(ctx context.Context, id string, next models.TournamentStatus, editor *models.Player) (*models.Tournament, error) {
	if err := requireOrganizer(editor); err != nil {
		return nil, err
	}
	if !next.Valid() {
		return nil, newError(KindValidation, "unknown tournament status %q", next)
	}

	t, err := s.tournaments.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentError(err)
	}
	if !t.Status.CanTransitionTo(next) {
		return nil, newError(KindInvalidTransition, "cannot move tournament from %s to %s", t.Status, next)
	}

	if err := s.tournaments.UpdateStatus(ctx, id, t.Status, next); err != nil {
		if errors.Is(err, repositories.ErrTournamentStatusConflict) {
			return nil, wrapError(KindInvalidTransition, err, "tournament %s changed status concurrently", id)
		}
		return nil, mapTournamentError(err)
	}

	prev := t.Status
	t.Status = next
	t.UpdatedAt = s.now()
	s.logger.InfoContext(ctx, "tournament status changed", slog.String("tournament_id", id),
		slog.String("from", string(prev)), slog.String("to", string(next)))
	s.emit(ctx, feed.CollectionTournaments, feed.OpUpdated, t.ID, t.ID, t)
	return t, nil
}

// DeleteTournament removes the tournament together with its registrations.
func (s *TournamentService) DeleteTournament(ctx context.Context, id string, editor *models.Player) error {
	if err := requireOrganizer(editor); err != nil {
		return err
	}
	t, err := s.tournaments.GetByID(ctx, id)
	if err != nil {
		return mapTournamentError(err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.registrations.DeleteByTournament(ctx, id); err != nil {
			return err
		}
		return s.tournaments.Delete(ctx, id)
	})
	if err != nil {
		return mapTournamentError(err)
	}

	if t.PosterImage != nil {
		s.deleteObject(ctx, storage.PosterKey(id))
	}
	if t.RulesPdfURL != nil {
		s.deleteObject(ctx, storage.RulesKey(id))
	}

	s.logger.InfoContext(ctx, "tournament deleted", slog.String("tournament_id", id))
	s.emit(ctx, feed.CollectionTournaments, feed.OpDeleted, id, id, nil)
	return nil
}

func (s *TournamentService) UploadPoster(ctx context.Context, id, contentType string, r io.Reader, editor *models.Player) (*models.Tournament, error) {
	if err := checkContentType(contentType, "image/*"); err != nil {
		return nil, err
	}
	return s.attach(ctx, id, storage.PosterKey(id), contentType, r, editor, func(t *models.Tournament, url *string) {
		t.PosterImage = url
	})
}

func (s *TournamentService) UploadRules(ctx context.Context, id, contentType string, r io.Reader, editor *models.Player) (*models.Tournament, error) {
	if err := checkContentType(contentType, "application/pdf"); err != nil {
		return nil, err
	}
	return s.attach(ctx, id, storage.RulesKey(id), contentType, r, editor, func(t *models.Tournament, url *string) {
		t.RulesPdfURL = url
	})
}

// RemoveRules drops the rules document. A missing stored object is not an error.
func (s *TournamentService) RemoveRules(ctx context.Context, id string, editor *models.Player) (*models.Tournament, error) {
	if err := requireOrganizer(editor); err != nil {
		return nil, err
	}
	t, err := s.tournaments.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentError(err)
	}
	if err := requireEditable(t); err != nil {
		return nil, err
	}
	if t.RulesPdfURL == nil {
		return t, nil
	}

	if err := s.uploader.Delete(ctx, storage.RulesKey(id)); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return nil, persistenceError(err, "failed to delete rules document")
	}
	t.RulesPdfURL = nil
	t.UpdatedAt = s.now()
	if err := s.tournaments.Update(ctx, t); err != nil {
		return nil, mapTournamentError(err)
	}

	s.emit(ctx, feed.CollectionTournaments, feed.OpUpdated, t.ID, t.ID, t)
	return t, nil
}

func (s *TournamentService) attach(ctx context.Context, id, key, contentType string, r io.Reader, editor *models.Player, set func(*models.Tournament, *string)) (*models.Tournament, error) {
	if err := requireOrganizer(editor); err != nil {
		return nil, err
	}
	t, err := s.tournaments.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentError(err)
	}
	if err := requireEditable(t); err != nil {
		return nil, err
	}

	res, err := s.uploader.Upload(ctx, key, contentType, r)
	if err != nil {
		return nil, persistenceError(err, "failed to upload %s", key)
	}
	location := res.Location
	set(t, &location)
	t.UpdatedAt = s.now()
	if err := s.tournaments.Update(ctx, t); err != nil {
		return nil, mapTournamentError(err)
	}

	s.emit(ctx, feed.CollectionTournaments, feed.OpUpdated, t.ID, t.ID, t)
	return t, nil
}

func (s *TournamentService) deleteObject(ctx context.Context, key string) {
	if err := s.uploader.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.WarnContext(ctx, "failed to delete stored object", slog.String("key", key), slog.Any("error", err))
	}
}

func requireOrganizer(p *models.Player) error {
	if p == nil || !p.Role.CanOrganize() {
		return ErrAuthorization
	}
	return nil
}

// requireEditable freezes every field once the tournament left OPEN.
func requireEditable(t *models.Tournament) error {
	if t.Status != models.StatusOpen {
		return newError(KindTournamentClosed, "tournament %s is %s and can no longer be edited", t.ID, t.Status)
	}
	return nil
}

func validateTournamentInput(in *TournamentInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return newError(KindValidation, "tournament name is required")
	}
	if in.Price < 0 {
		return newError(KindValidation, "price must not be negative")
	}
	if in.InscriptionStartDate.IsZero() || in.StartDate.IsZero() || in.EndDate.IsZero() {
		return newError(KindValidation, "inscription start, start and end dates are required")
	}
	if in.EndDate.Before(in.StartDate) {
		return newError(KindValidation, "end date must not be before start date")
	}
	for _, g := range models.Genders {
		for _, c := range in.Categories.For(g) {
			if !c.Valid() {
				return newError(KindValidation, "unknown category %q", c)
			}
		}
	}
	in.Categories = in.Categories.Normalized()
	if in.Categories.Empty() {
		return newError(KindValidation, "at least one category must be offered")
	}
	return nil
}

func applyTournamentInput(t *models.Tournament, in TournamentInput) {
	t.Name = in.Name
	t.ClubName = strings.TrimSpace(in.ClubName)
	t.Description = in.Description
	t.ContactPhone = strings.TrimSpace(in.ContactPhone)
	t.ContactEmail = strings.TrimSpace(in.ContactEmail)
	t.InscriptionStartDate = in.InscriptionStartDate
	t.StartDate = in.StartDate
	t.EndDate = in.EndDate
	t.Categories = in.Categories
	t.Price = in.Price
	if in.PosterImage != nil {
		t.PosterImage = in.PosterImage
	}
	if in.RulesPdfURL != nil {
		t.RulesPdfURL = in.RulesPdfURL
	}
}

func mapTournamentError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return wrapError(KindNotFound, err, "tournament not found")
	case errors.Is(err, repositories.ErrTournamentNotEditable):
		return wrapError(KindTournamentClosed, err, "tournament is no longer open for edits")
	case errors.Is(err, repositories.ErrTournamentInvalidOrg):
		return wrapError(KindValidation, err, "organizer does not exist")
	default:
		return persistenceError(err, "tournament storage failed")
	}
}
