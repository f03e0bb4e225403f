package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gespadel/gespadel/feed"
	"github.com/gespadel/gespadel/models"
	"github.com/gespadel/gespadel/repositories"
)

const defaultPlayerName = "New Player"

// Identity is what the identity provider asserts about the caller.
type Identity struct {
	ID    string
	Name  string
	Email string
	Phone *string
}

type IdentityService struct {
	players repositories.PlayerRepository
	notifier
	now Clock
}

func NewIdentityService(players repositories.PlayerRepository, publisher feed.Publisher, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		players:  players,
		notifier: notifier{publisher: publisher, logger: logger},
		now:      systemClock,
	}
}

// ResolveOrCreatePlayer returns the player bound to the identity, creating
// it on first sign-in. A partner record created earlier under the same
// email is claimed instead of duplicated. The role is organizer only when
// intendedRole asks for it.
func (s *IdentityService) ResolveOrCreatePlayer(ctx context.Context, identity Identity, intendedRole models.Role) (*models.Player, error) {
	if strings.TrimSpace(identity.ID) == "" {
		return nil, newError(KindValidation, "identity has no subject")
	}

	player, err := s.players.GetByIdentity(ctx, identity.ID)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, repositories.ErrPlayerNotFound) {
		return nil, persistenceError(err, "failed to look up player for identity")
	}

	role := models.RolePlayer
	if intendedRole == models.RoleOrganizer {
		role = models.RoleOrganizer
	}

	// Identities without an email cannot match a partner record.
	email := models.NormalizeEmail(identity.Email)
	if email != "" {
		claimed, err := s.claimByEmail(ctx, identity, email, role)
		if err != nil || claimed != nil {
			return claimed, err
		}
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = defaultPlayerName
	}

	now := s.now()
	identityID := identity.ID
	player = &models.Player{
		ID:         identity.ID,
		IdentityID: &identityID,
		Name:       name,
		Email:      email,
		Phone:      identity.Phone,
		Role:       role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.players.Create(ctx, player); err != nil {
		if errors.Is(err, repositories.ErrPlayerIdentityConflict) {
			// A concurrent sign-in for the same identity won the race.
			existing, getErr := s.players.GetByIdentity(ctx, identity.ID)
			if getErr == nil {
				return existing, nil
			}
		}
		return nil, persistenceError(err, "failed to create player")
	}

	s.logger.InfoContext(ctx, "player created", slog.String("player_id", player.ID), slog.String("role", string(role)))
	s.emit(ctx, feed.CollectionPlayers, feed.OpCreated, player.ID, "", player)
	return player, nil
}

// CurrentPlayer returns the player bound to the identity without creating it.
func (s *IdentityService) CurrentPlayer(ctx context.Context, identityID string) (*models.Player, error) {
	player, err := s.players.GetByIdentity(ctx, identityID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, newError(KindNotFound, "no player bound to this identity")
		}
		return nil, persistenceError(err, "failed to look up player for identity")
	}
	return player, nil
}

// claimByEmail binds an unclaimed partner record to the identity. Partner
// records are created as players, so an organizer sign-in upgrades the
// record to organizer_player and keeps its registrations playable.
func (s *IdentityService) claimByEmail(ctx context.Context, identity Identity, email string, role models.Role) (*models.Player, error) {
	existing, err := s.players.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrPlayerNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError(err, "failed to look up player by email")
	}
	if existing.Claimed() {
		return nil, newError(KindPersistence, "email %s is bound to another identity", email)
	}

	identityID := identity.ID
	existing.IdentityID = &identityID
	if name := strings.TrimSpace(identity.Name); name != "" && (existing.Name == "" || existing.Name == existing.Email) {
		existing.Name = name
	}
	if existing.Phone == nil {
		existing.Phone = identity.Phone
	}
	if role == models.RoleOrganizer && existing.Role == models.RolePlayer {
		existing.Role = models.RoleOrganizerPlayer
	}
	existing.UpdatedAt = s.now()

	if err := s.players.Update(ctx, existing); err != nil {
		if errors.Is(err, repositories.ErrPlayerIdentityConflict) {
			if winner, getErr := s.players.GetByIdentity(ctx, identity.ID); getErr == nil {
				return winner, nil
			}
		}
		return nil, persistenceError(err, "failed to claim player record")
	}

	s.logger.InfoContext(ctx, "partner record claimed", slog.String("player_id", existing.ID))
	s.emit(ctx, feed.CollectionPlayers, feed.OpUpdated, existing.ID, "", existing)
	return existing, nil
}
