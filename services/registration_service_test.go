package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/gespadel/gespadel/config"
	"github.com/gespadel/gespadel/models"
	"github.com/gespadel/gespadel/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterOnlyOfferedCategories(t *testing.T) {
	f := newFixture(t)
	cup := f.createTournament(t, "Summer Cup", masculine(models.Category3))

	reg, err := f.registrations.Register(f.ctx, cup.ID, f.ana, sel(models.GenderMasculine, models.Category3))
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationActive, reg.Status)
	assert.Equal(t, fixedNow, reg.RegistrationDate)

	_, err = f.registrations.Register(f.ctx, cup.ID, f.bruno, sel(models.GenderMasculine, models.Category4))
	assert.ErrorIs(t, err, ErrInvalidCategory)

	_, err = f.registrations.Register(f.ctx, cup.ID, f.bruno, sel(models.GenderFeminine, models.Category3))
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestRegisterAgainAfterCancel(t *testing.T) {
	f := newFixture(t)
	tour := f.createTournament(t, "Open Norte", masculine(models.Category2))

	first, err := f.registrations.Register(f.ctx, tour.ID, f.ana, sel(models.GenderMasculine, models.Category2))
	require.NoError(t, err)

	_, err = f.registrations.Register(f.ctx, tour.ID, f.ana, sel(models.GenderMasculine, models.Category2))
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	_, err = f.registrations.Cancel(f.ctx, first.ID, f.ana)
	require.NoError(t, err)

	second, err := f.registrations.Register(f.ctx, tour.ID, f.ana, sel(models.GenderMasculine, models.Category2))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	active, err := f.registrations.ListActiveForTournament(f.ctx, tour.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestRegisterRejectsSelfPartner(t *testing.T) {
	f := newFixture(t)
	tour := f.createTournament(t, "Open Norte", masculine(models.Category2))
	f.pub.reset()

	before, err := f.store.Players().List(f.ctx)
	require.NoError(t, err)

	s := sel(models.GenderMasculine, models.Category2)
	s.Partner = &PartnerInput{Email: "  ANA@Club.es "}
	_, err = f.registrations.Register(f.ctx, tour.ID, f.ana, s)
	assert.ErrorIs(t, err, ErrSelfPartner)

	after, err := f.store.Players().List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	_, err = f.store.Registrations().FindActive(f.ctx, tour.ID, f.ana.ID)
	assert.ErrorIs(t, err, repositories.ErrRegistrationNotFound)
	assert.Empty(t, f.pub.types())
}

func TestRegisterOnClosedTournament(t *testing.T) {
	f := newFixture(t)
	tour := f.createTournament(t, "Open Norte", masculine(models.Category2))

	_, err := f.tournaments.TransitionStatus(f.ctx, tour.ID, models.StatusClosed, f.organizer)
	require.NoError(t, err)

	_, err = f.registrations.Register(f.ctx, tour.ID, f.ana, sel(models.GenderMasculine, models.Category2))
	assert.ErrorIs(t, err, ErrTournamentClosed)

	_, err = f.tournaments.TransitionStatus(f.ctx, tour.ID, models.StatusOpen, f.organizer)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRegisterCheckOrder(t *testing.T) {
	f := newFixture(t)
	tour := f.createTournament(t, "Open Norte", masculine(models.Category2))
	_, err := f.registrations.Register(f.ctx, tour.ID, f.ana, sel(models.GenderMasculine, models.Category2))
	require.NoError(t, err)

	tooMany := []models.TimeSlot{{Date: "2024-07-10", Hour: 18}, {Date: "2024-07-10", Hour: 19}, {Date: "2024-07-11", Hour: 20}}

	t.Run("duplicate before self partner and slot bound", func(t *testing.T) {
		s := sel(models.GenderMasculine, models.Category2)
		s.Partner = &PartnerInput{Email: f.ana.Email}
		s.TimePreferences = tooMany
		_, err := f.registrations.Register(f.ctx, tour.ID, f.ana, s)
		assert.ErrorIs(t, err, ErrDuplicateRegistration)
	})

	t.Run("category before duplicate", func(t *testing.T) {
		_, err := f.registrations.Register(f.ctx, tour.ID, f.ana, sel(models.GenderMasculine, models.Category5))
		assert.ErrorIs(t, err, ErrInvalidCategory)
	})

	t.Run("self partner before slot bound", func(t *testing.T) {
		s := sel(models.GenderMasculine, models.Category2)
		s.Partner = &PartnerInput{Email: f.bruno.Email}
		s.TimePreferences = tooMany
		_, err := f.registrations.Register(f.ctx, tour.ID, f.bruno, s)
		assert.ErrorIs(t, err, ErrSelfPartner)
	})

	t.Run("closed before category", func(t *testing.T) {
		_, err := f.tournaments.TransitionStatus(f.ctx, tour.ID, models.StatusClosed, f.organizer)
		require.NoError(t, err)
		_, err = f.registrations.Register(f.ctx, tour.ID, f.bruno, sel(models.GenderFeminine, models.Category5))
		assert.ErrorIs(t, err, ErrTournamentClosed)
	})
}

func TestRegisterRequiresPlayerRole(t *testing.T) {
	f := newFixture(t)
	tour := f.createTournament(t, "Open Norte", masculine(models.Category2))

	_, err := f.registrations.Register(f.ctx, tour.ID, f.organizer, sel(models.GenderMasculine, models.Category2))
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = f.registrations.Register(f.ctx, tour.ID, nil, sel(models.GenderMasculine, models.Category2))
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = f.registrations.Register(f.ctx, "missing", f.ana, sel(models.GenderMasculine, models.Category2))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterTimePreferences(t *testing.T) {
	f := newFixture(t)
	tour := f.createTournament(t, "Open Norte", masculine(models.Category2))

	s := sel(models.GenderMasculine, models.Category2)
	s.TimePreferences = []models.TimeSlot{
		{Date: "2024-07-10", Hour: 18},
		{Date: "2024-07-11", Hour: 19},
		{Date: "2024-07-12", Hour: 20},
	}
	_, err := f.registrations.Register(f.ctx, tour.ID, f.ana, s)
	assert.ErrorIs(t, err, ErrTooManyPreferences)

	s.TimePreferences = []models.TimeSlot{{Date: "2024-07-20", Hour: 18}}
	_, err = f.registrations.Register(f.ctx, tour.ID, f.ana, s)
	assert.ErrorIs(t, err, ErrValidation)

	s.TimePreferences = []models.TimeSlot{{Date: "2024-07-10", Hour: 9}}
	_, err = f.registrations.Register(f.ctx, tour.ID, f.ana, s)
	assert.ErrorIs(t, err, ErrValidation)

	s.TimePreferences = []models.TimeSlot{
		{Date: "2024-07-10", Hour: 18},
		{Date: "2024-07-10", Hour: 18},
		{Date: "2024-07-12", Hour: 23},
	}
	reg, err := f.registrations.Register(f.ctx, tour.ID, f.ana, s)
	require.NoError(t, err)
	assert.Equal(t, []models.TimeSlot{{Date: "2024-07-10", Hour: 18}, {Date: "2024-07-12", Hour: 23}}, reg.TimePreferences)
}

func TestRegisterPartnerByEmail(t *testing.T) {
	f := newFixture(t)
	tour := f.createTournament(t, "Open Norte", masculine(models.Category2))

	t.Run("existing player is referenced", func(t *testing.T) {
		s := sel(models.GenderMasculine, models.Category2)
		s.Partner = &PartnerInput{Email: "Bruno@club.es"}
		reg, err := f.registrations.Register(f.ctx, tour.ID, f.ana, s)
		require.NoError(t, err)
		require.NotNil(t, reg.Partner)
		assert.Equal(t, models.PartnerReferenced, reg.Partner.Kind)
		assert.Equal(t, f.bruno.ID, reg.Partner.PlayerID)
	})

	t.Run("unknown email creates a player who can claim it later", func(t *testing.T) {
		f.pub.reset()
		carla := f.signIn(t, "idp-carla", "Carla", "carla@club.es", models.RolePlayer)
		f.pub.reset()

		s := sel(models.GenderMasculine, models.Category2)
		s.Partner = &PartnerInput{Email: "dani@club.es", Name: "Dani"}
		reg, err := f.registrations.Register(f.ctx, tour.ID, carla, s)
		require.NoError(t, err)
		require.NotNil(t, reg.Partner)

		partner, err := f.store.Players().GetByEmail(f.ctx, "dani@club.es")
		require.NoError(t, err)
		assert.Equal(t, partner.ID, reg.Partner.PlayerID)
		assert.Equal(t, "Dani", partner.Name)
		assert.Equal(t, models.RolePlayer, partner.Role)
		assert.False(t, partner.Claimed())
		assert.Equal(t, []string{"players.created", "registrations.created"}, f.pub.types())

		dani := f.signIn(t, "idp-dani", "Daniel", "dani@club.es", models.RolePlayer)
		assert.Equal(t, partner.ID, dani.ID)
		assert.True(t, dani.Claimed())

		mine, err := f.registrations.ListActiveForPlayer(f.ctx, dani.ID)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, reg.ID, mine[0].ID)
	})
}

func TestRegisterUnregisteredPartner(t *testing.T) {
	f := newFixture(t)
	tour := f.createTournament(t, "Open Norte", masculine(models.Category2))
	before, err := f.store.Players().List(f.ctx)
	require.NoError(t, err)

	phone := "600111222"
	s := sel(models.GenderMasculine, models.Category2)
	s.Partner = &PartnerInput{Name: "  Eva  ", Phone: &phone}
	reg, err := f.registrations.Register(f.ctx, tour.ID, f.ana, s)
	require.NoError(t, err)

	require.NotNil(t, reg.Partner)
	assert.Equal(t, models.PartnerUnregistered, reg.Partner.Kind)
	assert.Equal(t, "Eva", reg.Partner.Name)
	assert.Equal(t, &phone, reg.Partner.Phone)
	assert.Empty(t, reg.Partner.PlayerID)

	after, err := f.store.Players().List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	tour := f.createTournament(t, "Open Norte", masculine(models.Category2))
	reg, err := f.registrations.Register(f.ctx, tour.ID, f.ana, sel(models.GenderMasculine, models.Category2))
	require.NoError(t, err)
	f.pub.reset()

	first, err := f.registrations.Cancel(f.ctx, reg.ID, f.ana)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationCancelled, first.Status)
	require.NotNil(t, first.CancelledBy)
	assert.Equal(t, f.ana.ID, *first.CancelledBy)

	second, err := f.registrations.Cancel(f.ctx, reg.ID, f.ana)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationCancelled, second.Status)
	assert.Equal(t, []string{"registrations.updated"}, f.pub.types())

	stored, err := f.store.Registrations().GetByID(f.ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationCancelled, stored.Status)
}

func TestCancelPermissions(t *testing.T) {
	f := newFixture(t)
	tour := f.createTournament(t, "Open Norte", masculine(models.Category2))
	reg, err := f.registrations.Register(f.ctx, tour.ID, f.ana, sel(models.GenderMasculine, models.Category2))
	require.NoError(t, err)

	_, err = f.registrations.Cancel(f.ctx, reg.ID, f.bruno)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = f.registrations.Cancel(f.ctx, "missing", f.ana)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.tournaments.TransitionStatus(f.ctx, tour.ID, models.StatusClosed, f.organizer)
	require.NoError(t, err)

	_, err = f.registrations.Cancel(f.ctx, reg.ID, f.ana)
	assert.ErrorIs(t, err, ErrTournamentClosed)

	cancelled, err := f.registrations.Cancel(f.ctx, reg.ID, f.organizer)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationCancelled, cancelled.Status)
}

func TestListActiveForPlayerIncludesPartnerSide(t *testing.T) {
	f := newFixture(t)
	one := f.createTournament(t, "One", masculine(models.Category2))
	two := f.createTournament(t, "Two", masculine(models.Category2))

	s := sel(models.GenderMasculine, models.Category2)
	s.Partner = &PartnerInput{Email: f.bruno.Email}
	_, err := f.registrations.Register(f.ctx, one.ID, f.ana, s)
	require.NoError(t, err)
	own, err := f.registrations.Register(f.ctx, two.ID, f.bruno, sel(models.GenderMasculine, models.Category2))
	require.NoError(t, err)
	_, err = f.registrations.Cancel(f.ctx, own.ID, f.bruno)
	require.NoError(t, err)

	regs, err := f.registrations.ListActiveForPlayer(f.ctx, f.bruno.ID)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, one.ID, regs[0].TournamentID)
}

func TestGroupForReview(t *testing.T) {
	f := newFixture(t)
	tour := f.createTournament(t, "Open Norte", models.CategoryOffer{
		Masculine: []models.Category{models.Category3, models.Category1},
		Feminine:  []models.Category{models.Category2},
	})

	s := sel(models.GenderMasculine, models.Category3)
	s.Partner = &PartnerInput{Email: f.bruno.Email}
	_, err := f.registrations.Register(f.ctx, tour.ID, f.ana, s)
	require.NoError(t, err)

	carla := f.signIn(t, "idp-carla", "Carla", "carla@club.es", models.RolePlayer)
	s = sel(models.GenderFeminine, models.Category2)
	s.Partner = &PartnerInput{Name: "Eva"}
	_, err = f.registrations.Register(f.ctx, tour.ID, carla, s)
	require.NoError(t, err)

	dani := f.signIn(t, "idp-dani", "Dani", "dani@club.es", models.RolePlayer)
	gone, err := f.registrations.Register(f.ctx, tour.ID, dani, sel(models.GenderMasculine, models.Category1))
	require.NoError(t, err)
	_, err = f.registrations.Cancel(f.ctx, gone.ID, dani)
	require.NoError(t, err)

	_, err = f.registrations.GroupForReview(f.ctx, tour.ID, f.ana)
	assert.ErrorIs(t, err, ErrAuthorization)

	groups, err := f.registrations.GroupForReview(f.ctx, tour.ID, f.organizer)
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, models.GenderMasculine, groups[0].Gender)
	assert.Equal(t, models.Category1, groups[0].Category)
	assert.Empty(t, groups[0].Entries)

	assert.Equal(t, models.Category3, groups[1].Category)
	require.Len(t, groups[1].Entries, 1)
	assert.Equal(t, "Ana", groups[1].Entries[0].Player1Name)
	assert.Equal(t, "Bruno", groups[1].Entries[0].PartnerName)

	assert.Equal(t, models.GenderFeminine, groups[2].Gender)
	require.Len(t, groups[2].Entries, 1)
	assert.Equal(t, "Carla", groups[2].Entries[0].Player1Name)
	assert.Equal(t, "Eva", groups[2].Entries[0].PartnerName)

	_, err = f.registrations.GroupForReview(f.ctx, "missing", f.organizer)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentRegistrationsNeverDoubleBook(t *testing.T) {
	f := newFixture(t)
	tour := f.createTournament(t, "Open Norte", masculine(models.Category2))

	const attempts = 16
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.registrations.Register(f.ctx, tour.ID, f.ana, sel(models.GenderMasculine, models.Category2))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateRegistration)
	}
	assert.Equal(t, 1, succeeded)

	active, err := f.registrations.ListActiveForTournament(f.ctx, tour.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

// conflictingRegistrations rejects every insert as if a concurrent
// registration for the same player had just committed.
type conflictingRegistrations struct {
	repositories.RegistrationRepository
}

func (conflictingRegistrations) Create(context.Context, *models.Registration) error {
	return repositories.ErrRegistrationConflict
}

func TestRegisterRollsBackPartnerWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	tour := f.createTournament(t, "Summer Cup", masculine(models.Category3))
	f.pub.reset()

	before, err := f.store.Players().List(f.ctx)
	require.NoError(t, err)

	svc := NewRegistrationService(f.store.Tournaments(), conflictingRegistrations{f.store.Registrations()}, f.store.Players(),
		f.store, config.DefaultRules(), f.pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = fixedClock

	s := sel(models.GenderMasculine, models.Category3)
	s.Partner = &PartnerInput{Email: "fresh@club.es", Name: "Fresh"}
	_, err = svc.Register(f.ctx, tour.ID, f.ana, s)
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	_, err = f.store.Players().GetByEmail(f.ctx, "fresh@club.es")
	assert.ErrorIs(t, err, repositories.ErrPlayerNotFound)
	after, err := f.store.Players().List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	assert.Empty(t, f.pub.types())
}
