package mirror

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gespadel/gespadel/feed"
	"github.com/gespadel/gespadel/models"
	"github.com/gespadel/gespadel/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tournament(id string, start time.Time, status models.TournamentStatus) *models.Tournament {
	return &models.Tournament{
		ID:          id,
		Name:        "Tournament " + id,
		OrganizerID: "org",
		Status:      status,
		StartDate:   start,
		EndDate:     start.AddDate(0, 0, 2),
		Categories:  models.CategoryOffer{Masculine: []models.Category{models.Category1}},
	}
}

func event(t *testing.T, c feed.Collection, op feed.Op, id, tournamentID string, doc interface{}) feed.Event {
	t.Helper()
	ev, err := feed.NewEvent(c, op, id, tournamentID, doc)
	require.NoError(t, err)
	return ev
}

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	require.NoError(t, store.Players().Create(ctx, &models.Player{ID: "org", Name: "Org", Email: "org@club.es", Role: models.RoleOrganizer}))
	require.NoError(t, store.Players().Create(ctx, &models.Player{ID: "ana", Name: "Ana", Email: "ana@club.es", Role: models.RolePlayer}))
	june := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Tournaments().Create(ctx, tournament("t1", june, models.StatusOpen)))
	require.NoError(t, store.Tournaments().Create(ctx, tournament("t2", june.AddDate(0, 1, 0), models.StatusOpen)))
	require.NoError(t, store.Registrations().Create(ctx, &models.Registration{
		ID: "r1", TournamentID: "t1", Player1ID: "ana",
		Gender: models.GenderMasculine, Category: models.Category1, Status: models.RegistrationActive,
	}))

	m := New(discardLogger())
	require.NoError(t, m.Load(ctx, store.Players(), store.Tournaments(), store.Registrations()))

	ts := m.Tournaments()
	require.Len(t, ts, 2)
	assert.Equal(t, "t2", ts[0].ID)

	p, ok := m.Player("ana")
	require.True(t, ok)
	assert.Equal(t, "Ana", p.Name)

	dash := m.PlayerDashboard("ana")
	require.Len(t, dash.Registered, 1)
	assert.Equal(t, "t1", dash.Registered[0].Tournament.ID)
	require.Len(t, dash.Available, 1)
	assert.Equal(t, "t2", dash.Available[0].ID)
}

func TestApplyEvents(t *testing.T) {
	ctx := context.Background()
	m := New(discardLogger())
	june := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	m.Handle(ctx, event(t, feed.CollectionTournaments, feed.OpCreated, "t1", "t1", tournament("t1", june, models.StatusOpen)))
	m.Handle(ctx, event(t, feed.CollectionTournaments, feed.OpCreated, "t2", "t2", tournament("t2", june, models.StatusClosed)))
	reg := &models.Registration{
		ID: "r1", TournamentID: "t1", Player1ID: "ana",
		Partner: models.ReferencedPartner("bruno"),
		Gender:  models.GenderMasculine, Category: models.Category1, Status: models.RegistrationActive,
	}
	m.Handle(ctx, event(t, feed.CollectionRegistrations, feed.OpCreated, "r1", "t1", reg))

	org := m.OrganizerDashboard()
	require.Len(t, org.Tournaments, 2)
	counts := map[string]int{}
	for _, s := range org.Tournaments {
		counts[s.Tournament.ID] = s.ActiveRegistrations
	}
	assert.Equal(t, map[string]int{"t1": 1, "t2": 0}, counts)

	partnerView := m.PlayerDashboard("bruno")
	require.Len(t, partnerView.Registered, 1)
	assert.Empty(t, partnerView.Available)

	stranger := m.PlayerDashboard("carla")
	assert.Empty(t, stranger.Registered)
	require.Len(t, stranger.Available, 1)
	assert.Equal(t, "t1", stranger.Available[0].ID)

	reg.Status = models.RegistrationCancelled
	m.Handle(ctx, event(t, feed.CollectionRegistrations, feed.OpUpdated, "r1", "t1", reg))
	assert.Empty(t, m.PlayerDashboard("bruno").Registered)

	m.Handle(ctx, event(t, feed.CollectionTournaments, feed.OpDeleted, "t1", "t1", nil))
	_, ok := m.Tournament("t1")
	assert.False(t, ok)
	assert.Len(t, m.Tournaments(), 1)
	m.mu.RLock()
	assert.Empty(t, m.registrations)
	m.mu.RUnlock()
}

func TestApplyRejectsBadEvents(t *testing.T) {
	m := New(discardLogger())

	err := m.Apply(feed.Event{Collection: "matches", Op: feed.OpCreated, EntityID: "x"})
	assert.Error(t, err)

	err = m.Apply(feed.Event{Collection: feed.CollectionPlayers, Op: feed.OpCreated, EntityID: "x", Data: []byte("{")})
	assert.Error(t, err)

	m.Handle(context.Background(), feed.Event{Collection: "matches"})
	assert.Empty(t, m.Tournaments())
}
