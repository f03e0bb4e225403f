package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/gespadel/gespadel/feed"
	"github.com/gespadel/gespadel/models"
	"github.com/gespadel/gespadel/repositories"
	"github.com/gespadel/gespadel/storage"
)

// ProfileInput holds the fields a player may edit on their own profile.
type ProfileInput struct {
	Name     string           `json:"name"`
	Phone    *string          `json:"phone,omitempty"`
	Gender   *models.Gender   `json:"gender,omitempty"`
	Category *models.Category `json:"category,omitempty"`
}

type PlayerService struct {
	players  repositories.PlayerRepository
	uploader storage.FileUploader
	notifier
	now Clock
}

func NewPlayerService(players repositories.PlayerRepository, uploader storage.FileUploader, publisher feed.Publisher, logger *slog.Logger) *PlayerService {
	return &PlayerService{
		players:  players,
		uploader: uploader,
		notifier: notifier{publisher: publisher, logger: logger},
		now:      systemClock,
	}
}

// GetPlayer returns a player profile. Organizers see anyone, players only themselves.
func (s *PlayerService) GetPlayer(ctx context.Context, id string, viewer *models.Player) (*models.Player, error) {
	if viewer == nil || (viewer.ID != id && !viewer.Role.CanOrganize()) {
		return nil, ErrAuthorization
	}
	p, err := s.players.GetByID(ctx, id)
	if err != nil {
		return nil, mapPlayerError(err)
	}
	return p, nil
}

func (s *PlayerService) UpdateProfile(ctx context.Context, actor *models.Player, in ProfileInput) (*models.Player, error) {
	if actor == nil {
		return nil, ErrAuthorization
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, newError(KindValidation, "name is required")
	}
	if in.Gender != nil && !in.Gender.Valid() {
		return nil, newError(KindValidation, "unknown gender %q", *in.Gender)
	}
	if in.Category != nil && !in.Category.Valid() {
		return nil, newError(KindValidation, "unknown category %q", *in.Category)
	}

	p, err := s.players.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, mapPlayerError(err)
	}
	p.Name = name
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if phone == "" {
			p.Phone = nil
		} else {
			p.Phone = &phone
		}
	}
	p.Gender = in.Gender
	p.Category = in.Category
	p.UpdatedAt = s.now()

	if err := s.players.Update(ctx, p); err != nil {
		return nil, mapPlayerError(err)
	}

	s.emit(ctx, feed.CollectionPlayers, feed.OpUpdated, p.ID, "", p)
	return p, nil
}

func (s *PlayerService) UpdateProfilePicture(ctx context.Context, actor *models.Player, contentType string, r io.Reader) (*models.Player, error) {
	if actor == nil {
		return nil, ErrAuthorization
	}
	if err := checkContentType(contentType, "image/*"); err != nil {
		return nil, err
	}

	p, err := s.players.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, mapPlayerError(err)
	}
	res, err := s.uploader.Upload(ctx, storage.ProfilePictureKey(p.ID), contentType, r)
	if err != nil {
		return nil, persistenceError(err, "failed to upload profile picture")
	}
	location := res.Location
	p.ProfilePicture = &location
	p.UpdatedAt = s.now()
	if err := s.players.Update(ctx, p); err != nil {
		return nil, mapPlayerError(err)
	}

	s.logger.InfoContext(ctx, "profile picture updated", slog.String("player_id", p.ID))
	s.emit(ctx, feed.CollectionPlayers, feed.OpUpdated, p.ID, "", p)
	return p, nil
}

func mapPlayerError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrPlayerNotFound):
		return wrapError(KindNotFound, err, "player not found")
	case errors.Is(err, repositories.ErrPlayerEmailConflict):
		return wrapError(KindValidation, err, "email already in use")
	default:
		return persistenceError(err, "player storage failed")
	}
}
