package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/gespadel/gespadel/config"
	"github.com/gespadel/gespadel/feed"
	"github.com/gespadel/gespadel/models"
	"github.com/gespadel/gespadel/repositories"
	"golang.org/x/sync/errgroup"
)

// PartnerInput names the partner either by email, which links or creates a
// player record, or by free-text name and phone.
type PartnerInput struct {
	Email string  `json:"email,omitempty"`
	Name  string  `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

func (p *PartnerInput) empty() bool {
	return p == nil || (strings.TrimSpace(p.Email) == "" && strings.TrimSpace(p.Name) == "")
}

type Selection struct {
	Gender          models.Gender     `json:"gender"`
	Category        models.Category   `json:"category"`
	Partner         *PartnerInput     `json:"partner,omitempty"`
	TimePreferences []models.TimeSlot `json:"time_preferences,omitempty"`
}

// IsOffered reports whether the tournament opened the category for the gender.
func IsOffered(t *models.Tournament, g models.Gender, c models.Category) bool {
	return t != nil && t.Offers(g, c)
}

type RegistrationService struct {
	tournaments   repositories.TournamentRepository
	registrations repositories.RegistrationRepository
	players       repositories.PlayerRepository
	tx            repositories.Transactor
	rules         config.Rules
	notifier
	now   Clock
	newID func() string
}

func NewRegistrationService(
	tournaments repositories.TournamentRepository,
	registrations repositories.RegistrationRepository,
	players repositories.PlayerRepository,
	tx repositories.Transactor,
	rules config.Rules,
	publisher feed.Publisher,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		tournaments:   tournaments,
		registrations: registrations,
		players:       players,
		tx:            tx,
		rules:         rules,
		notifier:      notifier{publisher: publisher, logger: logger},
		now:           systemClock,
		newID:         models.NewID,
	}
}

func (s *RegistrationService) Rules() config.Rules {
	return s.rules
}

// Register enrolls the registrant, optionally with a partner. The checks run
// in a fixed order so that each rejection is reported by its own kind, and
// nothing is written unless all of them pass.
func (s *RegistrationService) Register(ctx context.Context, tournamentID string, registrant *models.Player, sel Selection) (*models.Registration, error) {
	if registrant == nil || !registrant.Role.CanPlay() {
		return nil, newError(KindAuthorization, "only players can register for tournaments")
	}

	t, err := s.tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentError(err)
	}
	if t.Status != models.StatusOpen {
		return nil, newError(KindTournamentClosed, "tournament %s is %s", t.ID, t.Status)
	}

	if !IsOffered(t, sel.Gender, sel.Category) {
		return nil, newError(KindInvalidCategory, "category %s is not offered for %s", sel.Category, sel.Gender)
	}

	if _, err := s.registrations.FindActive(ctx, t.ID, registrant.ID); err == nil {
		return nil, ErrDuplicateRegistration
	} else if !errors.Is(err, repositories.ErrRegistrationNotFound) {
		return nil, persistenceError(err, "failed to check existing registration")
	}

	partnerEmail := ""
	if !sel.Partner.empty() {
		partnerEmail = models.NormalizeEmail(sel.Partner.Email)
		if partnerEmail != "" && partnerEmail == models.NormalizeEmail(registrant.Email) {
			return nil, ErrSelfPartner
		}
	}

	slots := DedupeSlots(sel.TimePreferences)
	if len(slots) > s.rules.MaxUnavailableSlots {
		return nil, newError(KindTooManyPreferences, "at most %d unavailable slots are allowed, got %d",
			s.rules.MaxUnavailableSlots, len(slots))
	}
	if err := ValidateTimePreferences(t, slots, s.rules.SlotHours); err != nil {
		return nil, err
	}

	reg := &models.Registration{
		ID:               s.newID(),
		TournamentID:     t.ID,
		Player1ID:        registrant.ID,
		Gender:           sel.Gender,
		Category:         sel.Category,
		RegistrationDate: s.now(),
		Status:           models.RegistrationActive,
		TimePreferences:  slots,
	}

	var createdPartner *models.Player
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		createdPartner = nil
		switch {
		case partnerEmail != "":
			partner, created, err := s.resolvePartner(ctx, partnerEmail, sel.Partner)
			if err != nil {
				return err
			}
			if partner.ID == registrant.ID {
				return ErrSelfPartner
			}
			if created {
				createdPartner = partner
			}
			reg.Partner = models.ReferencedPartner(partner.ID)
		case !sel.Partner.empty():
			reg.Partner = models.UnregisteredPartner(strings.TrimSpace(sel.Partner.Name), sel.Partner.Phone)
		}
		return s.registrations.Create(ctx, reg)
	})
	if err != nil {
		return nil, mapRegistrationError(err)
	}

	s.logger.InfoContext(ctx, "registration created",
		slog.String("registration_id", reg.ID), slog.String("tournament_id", t.ID), slog.String("player_id", registrant.ID))
	if createdPartner != nil {
		s.emit(ctx, feed.CollectionPlayers, feed.OpCreated, createdPartner.ID, "", createdPartner)
	}
	s.emit(ctx, feed.CollectionRegistrations, feed.OpCreated, reg.ID, reg.TournamentID, reg)
	return reg, nil
}

// resolvePartner finds the player with the email or creates a minimal one.
func (s *RegistrationService) resolvePartner(ctx context.Context, email string, in *PartnerInput) (*models.Player, bool, error) {
	partner, err := s.players.GetByEmail(ctx, email)
	if err == nil {
		return partner, false, nil
	}
	if !errors.Is(err, repositories.ErrPlayerNotFound) {
		return nil, false, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = email
	}
	now := s.now()
	partner = &models.Player{
		ID:        s.newID(),
		Name:      name,
		Email:     email,
		Phone:     in.Phone,
		Role:      models.RolePlayer,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.players.Create(ctx, partner); err != nil {
		return nil, false, err
	}
	return partner, true, nil
}

// Cancel soft-cancels a registration. The registrant may cancel while the
// tournament is open; organizers may cancel at any time. Cancelling twice
// succeeds without another write.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID string, actor *models.Player) (*models.Registration, error) {
	if actor == nil {
		return nil, ErrAuthorization
	}
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, mapRegistrationError(err)
	}

	organizer := actor.Role.CanOrganize()
	if !organizer && reg.Player1ID != actor.ID {
		return nil, ErrAuthorization
	}
	if reg.Status == models.RegistrationCancelled {
		return reg, nil
	}

	if !organizer {
		t, err := s.tournaments.GetByID(ctx, reg.TournamentID)
		if err != nil {
			return nil, mapTournamentError(err)
		}
		if t.Status != models.StatusOpen {
			return nil, newError(KindTournamentClosed, "registrations of tournament %s can no longer be cancelled", t.ID)
		}
	}

	now := s.now()
	if err := s.registrations.UpdateStatus(ctx, reg.ID, models.RegistrationCancelled, now, actor.ID); err != nil {
		return nil, mapRegistrationError(err)
	}
	reg.Status = models.RegistrationCancelled
	reg.CancelledAt = &now
	by := actor.ID
	reg.CancelledBy = &by

	s.logger.InfoContext(ctx, "registration cancelled",
		slog.String("registration_id", reg.ID), slog.String("tournament_id", reg.TournamentID), slog.String("by", actor.ID))
	s.emit(ctx, feed.CollectionRegistrations, feed.OpUpdated, reg.ID, reg.TournamentID, reg)
	return reg, nil
}

func (s *RegistrationService) ListActiveForTournament(ctx context.Context, tournamentID string) ([]models.Registration, error) {
	regs, err := s.registrations.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, persistenceError(err, "failed to list registrations")
	}
	return activeOnly(regs), nil
}

func (s *RegistrationService) ListActiveForPlayer(ctx context.Context, playerID string) ([]models.Registration, error) {
	regs, err := s.registrations.ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, persistenceError(err, "failed to list registrations")
	}
	return activeOnly(regs), nil
}

type ReviewEntry struct {
	Registration models.Registration `json:"registration"`
	Player1Name  string              `json:"player1_name"`
	PartnerName  string              `json:"partner_name,omitempty"`
}

type RegistrationGroup struct {
	Gender   models.Gender   `json:"gender"`
	Category models.Category `json:"category"`
	Entries  []ReviewEntry   `json:"entries"`
}

// GroupForReview groups the active registrations of a tournament by gender
// and category. Masculine comes first, categories ascend by rank, and every
// offered category is listed even when nobody registered.
func (s *RegistrationService) GroupForReview(ctx context.Context, tournamentID string, actor *models.Player) ([]RegistrationGroup, error) {
	if err := requireOrganizer(actor); err != nil {
		return nil, err
	}

	var t *models.Tournament
	var regs []models.Registration
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t, err = s.tournaments.GetByID(gctx, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		regs, err = s.registrations.ListByTournament(gctx, tournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, mapTournamentError(err)
		}
		return nil, persistenceError(err, "failed to load tournament registrations")
	}
	regs = activeOnly(regs)

	names, err := s.playerNames(ctx, regs)
	if err != nil {
		return nil, err
	}

	type key struct {
		g models.Gender
		c models.Category
	}
	groups := make(map[key]*RegistrationGroup)
	for _, gender := range models.Genders {
		for _, c := range t.Categories.For(gender) {
			groups[key{gender, c}] = &RegistrationGroup{Gender: gender, Category: c, Entries: []ReviewEntry{}}
		}
	}
	for _, reg := range regs {
		k := key{reg.Gender, reg.Category}
		grp, ok := groups[k]
		if !ok {
			grp = &RegistrationGroup{Gender: reg.Gender, Category: reg.Category, Entries: []ReviewEntry{}}
			groups[k] = grp
		}
		entry := ReviewEntry{Registration: reg, Player1Name: names[reg.Player1ID]}
		if reg.Partner != nil {
			switch reg.Partner.Kind {
			case models.PartnerReferenced:
				entry.PartnerName = names[reg.Partner.PlayerID]
			case models.PartnerUnregistered:
				entry.PartnerName = reg.Partner.Name
			}
		}
		grp.Entries = append(grp.Entries, entry)
	}

	out := make([]RegistrationGroup, 0, len(groups))
	for _, grp := range groups {
		out = append(out, *grp)
	}
	sortGroups(out)
	return out, nil
}

func (s *RegistrationService) playerNames(ctx context.Context, regs []models.Registration) (map[string]string, error) {
	ids := make(map[string]bool)
	for _, reg := range regs {
		ids[reg.Player1ID] = true
		if reg.Partner != nil && reg.Partner.Kind == models.PartnerReferenced {
			ids[reg.Partner.PlayerID] = true
		}
	}

	names := make(map[string]string, len(ids))
	for id := range ids {
		p, err := s.players.GetByID(ctx, id)
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			continue
		}
		if err != nil {
			return nil, persistenceError(err, "failed to load player %s", id)
		}
		names[id] = p.Name
	}
	return names, nil
}

func sortGroups(groups []RegistrationGroup) {
	genderRank := func(g models.Gender) int {
		for i, known := range models.Genders {
			if g == known {
				return i
			}
		}
		return len(models.Genders)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		gi, gj := genderRank(groups[i].Gender), genderRank(groups[j].Gender)
		if gi != gj {
			return gi < gj
		}
		return groups[i].Category.Rank() < groups[j].Category.Rank()
	})
}

func activeOnly(regs []models.Registration) []models.Registration {
	out := make([]models.Registration, 0, len(regs))
	for _, r := range regs {
		if r.IsActive() {
			out = append(out, r)
		}
	}
	return out
}

func mapRegistrationError(err error) error {
	var domainErr *Error
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, repositories.ErrRegistrationConflict):
		return wrapError(KindDuplicateRegistration, err, "player is already registered for this tournament")
	case errors.Is(err, repositories.ErrRegistrationNotFound):
		return wrapError(KindNotFound, err, "registration not found")
	case errors.Is(err, repositories.ErrRegistrationTournamentInvalid):
		return wrapError(KindNotFound, err, "tournament not found")
	case errors.Is(err, repositories.ErrRegistrationPlayerInvalid):
		return wrapError(KindNotFound, err, "player not found")
	default:
		return persistenceError(err, "registration storage failed")
	}
}
