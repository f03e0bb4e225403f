package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gespadel/gespadel/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T) (*MemoryStore, context.Context) {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()

	org := &models.Player{ID: "org", Name: "Org", Email: "org@club.es", Role: models.RoleOrganizer}
	ana := &models.Player{ID: "ana", Name: "Ana", Email: "ana@club.es", Role: models.RolePlayer}
	require.NoError(t, s.Players().Create(ctx, org))
	require.NoError(t, s.Players().Create(ctx, ana))

	tour := &models.Tournament{
		ID:          "t1",
		Name:        "Spring Open",
		OrganizerID: "org",
		Status:      models.StatusOpen,
		StartDate:   time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
		Categories:  models.CategoryOffer{Masculine: []models.Category{models.Category3}},
	}
	require.NoError(t, s.Tournaments().Create(ctx, tour))
	return s, ctx
}

func activeRegistration(id string) *models.Registration {
	return &models.Registration{
		ID:               id,
		TournamentID:     "t1",
		Player1ID:        "ana",
		Gender:           models.GenderMasculine,
		Category:         models.Category3,
		Status:           models.RegistrationActive,
		RegistrationDate: time.Now(),
	}
}

func TestMemoryPlayerUniqueness(t *testing.T) {
	s, ctx := seedStore(t)
	players := s.Players()

	err := players.Create(ctx, &models.Player{ID: "other", Email: "ana@club.es"})
	assert.ErrorIs(t, err, ErrPlayerEmailConflict)

	err = players.Create(ctx, &models.Player{ID: "ana", Email: "new@club.es"})
	assert.ErrorIs(t, err, ErrPlayerIdentityConflict)

	identity := "idp-1"
	require.NoError(t, players.Create(ctx, &models.Player{ID: "p3", Email: "p3@club.es", IdentityID: &identity}))
	err = players.Create(ctx, &models.Player{ID: "p4", Email: "p4@club.es", IdentityID: &identity})
	assert.ErrorIs(t, err, ErrPlayerIdentityConflict)

	got, err := players.GetByIdentity(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, "p3", got.ID)

	_, err = players.GetByEmail(ctx, "nobody@club.es")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	phone1, phone2 := "idp-phone-1", "idp-phone-2"
	require.NoError(t, players.Create(ctx, &models.Player{ID: "p5", IdentityID: &phone1}))
	require.NoError(t, players.Create(ctx, &models.Player{ID: "p6", IdentityID: &phone2}))
}

func TestMemoryReturnsCopies(t *testing.T) {
	s, ctx := seedStore(t)

	got, err := s.Tournaments().GetByID(ctx, "t1")
	require.NoError(t, err)
	got.Categories.Masculine[0] = models.Category1
	got.Name = "changed"

	again, err := s.Tournaments().GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Spring Open", again.Name)
	assert.Equal(t, models.Category3, again.Categories.Masculine[0])
}

func TestMemoryActiveRegistrationIsUnique(t *testing.T) {
	s, ctx := seedStore(t)
	regs := s.Registrations()

	require.NoError(t, regs.Create(ctx, activeRegistration("r1")))
	assert.ErrorIs(t, regs.Create(ctx, activeRegistration("r2")), ErrRegistrationConflict)

	require.NoError(t, regs.UpdateStatus(ctx, "r1", models.RegistrationCancelled, time.Now(), "ana"))
	require.NoError(t, regs.Create(ctx, activeRegistration("r3")))

	active, err := regs.FindActive(ctx, "t1", "ana")
	require.NoError(t, err)
	assert.Equal(t, "r3", active.ID)
}

func TestMemoryConcurrentRegistrationsKeepOneActive(t *testing.T) {
	s, ctx := seedStore(t)
	regs := s.Registrations()

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- regs.Create(ctx, activeRegistration(models.NewID()))
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrRegistrationConflict)
	}
	assert.Equal(t, 1, succeeded)
}

func TestMemoryReferenceChecks(t *testing.T) {
	s, ctx := seedStore(t)

	reg := activeRegistration("r1")
	reg.TournamentID = "missing"
	assert.ErrorIs(t, s.Registrations().Create(ctx, reg), ErrRegistrationTournamentInvalid)

	reg = activeRegistration("r1")
	reg.Partner = models.ReferencedPartner("ghost")
	assert.ErrorIs(t, s.Registrations().Create(ctx, reg), ErrRegistrationPlayerInvalid)

	err := s.Tournaments().Create(ctx, &models.Tournament{ID: "t2", OrganizerID: "ghost"})
	assert.ErrorIs(t, err, ErrTournamentInvalidOrg)
}

func TestMemoryTransactionRollsBack(t *testing.T) {
	s, ctx := seedStore(t)
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Players().Create(ctx, &models.Player{ID: "partner", Email: "partner@club.es"}); err != nil {
			return err
		}
		if err := s.Registrations().Create(ctx, activeRegistration("r1")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Players().GetByID(ctx, "partner")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	_, err = s.Registrations().GetByID(ctx, "r1")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestMemoryTransactionCommits(t *testing.T) {
	s, ctx := seedStore(t)

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		return s.WithinTx(ctx, func(ctx context.Context) error {
			return s.Registrations().Create(ctx, activeRegistration("r1"))
		})
	})
	require.NoError(t, err)

	_, err = s.Registrations().GetByID(ctx, "r1")
	assert.NoError(t, err)
}

func TestMemoryTournamentStatusCompareAndSwap(t *testing.T) {
	s, ctx := seedStore(t)
	tours := s.Tournaments()

	require.NoError(t, tours.UpdateStatus(ctx, "t1", models.StatusOpen, models.StatusClosed))
	assert.ErrorIs(t, tours.UpdateStatus(ctx, "t1", models.StatusOpen, models.StatusClosed), ErrTournamentStatusConflict)
	assert.ErrorIs(t, tours.UpdateStatus(ctx, "nope", models.StatusOpen, models.StatusClosed), ErrTournamentNotFound)

	got, err := tours.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, got.Status)
}

func TestMemoryTournamentUpdateKeepsStatus(t *testing.T) {
	s, ctx := seedStore(t)

	tour, err := s.Tournaments().GetByID(ctx, "t1")
	require.NoError(t, err)
	tour.Status = models.StatusFinished
	tour.Name = "Renamed"
	require.NoError(t, s.Tournaments().Update(ctx, tour))

	got, err := s.Tournaments().GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, models.StatusOpen, got.Status)
}

func TestMemoryTournamentUpdateRequiresOpen(t *testing.T) {
	s, ctx := seedStore(t)
	tours := s.Tournaments()

	tour, err := tours.GetByID(ctx, "t1")
	require.NoError(t, err)
	require.NoError(t, tours.UpdateStatus(ctx, "t1", models.StatusOpen, models.StatusClosed))

	tour.Name = "Too Late"
	assert.ErrorIs(t, tours.Update(ctx, tour), ErrTournamentNotEditable)

	got, err := tours.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Spring Open", got.Name)

	tour.ID = "missing"
	assert.ErrorIs(t, tours.Update(ctx, tour), ErrTournamentNotFound)
}

func TestMemoryTournamentListOrder(t *testing.T) {
	s, ctx := seedStore(t)
	later := &models.Tournament{
		ID:          "t2",
		OrganizerID: "org",
		Status:      models.StatusClosed,
		StartDate:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Tournaments().Create(ctx, later))

	all, err := s.Tournaments().List(ctx, ListTournamentsFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t2", all[0].ID)
	assert.Equal(t, "t1", all[1].ID)

	open := models.StatusOpen
	filtered, err := s.Tournaments().List(ctx, ListTournamentsFilter{Status: &open})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "t1", filtered[0].ID)
}

func TestMemoryDeleteTournamentCascades(t *testing.T) {
	s, ctx := seedStore(t)
	require.NoError(t, s.Registrations().Create(ctx, activeRegistration("r1")))

	require.NoError(t, s.Tournaments().Delete(ctx, "t1"))

	regs, err := s.Registrations().ListByTournament(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, regs)
	assert.ErrorIs(t, s.Tournaments().Delete(ctx, "t1"), ErrTournamentNotFound)
}

func TestMemoryListByPlayerIncludesPartner(t *testing.T) {
	s, ctx := seedStore(t)
	require.NoError(t, s.Players().Create(ctx, &models.Player{ID: "bea", Email: "bea@club.es"}))

	reg := activeRegistration("r1")
	reg.Partner = models.ReferencedPartner("bea")
	require.NoError(t, s.Registrations().Create(ctx, reg))

	regs, err := s.Registrations().ListByPlayer(ctx, "bea")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "r1", regs[0].ID)
}
