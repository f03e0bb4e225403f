package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gespadel/gespadel/config"
	"github.com/gespadel/gespadel/feed"
	"github.com/gespadel/gespadel/mirror"
	"github.com/gespadel/gespadel/models"
	"github.com/gespadel/gespadel/repositories"
	"github.com/gespadel/gespadel/storage"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type recordingPublisher struct {
	mu     sync.Mutex
	events []feed.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev feed.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type())
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

type fixture struct {
	ctx      context.Context
	store    *repositories.MemoryStore
	pub      *recordingPublisher
	uploader *storage.MemoryUploader
	mirror   *mirror.Mirror

	identity      *IdentityService
	tournaments   *TournamentService
	registrations *RegistrationService
	players       *PlayerService
	dashboards    DashboardService

	organizer *models.Player
	ana       *models.Player
	bruno     *models.Player
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		ctx:      context.Background(),
		store:    repositories.NewMemoryStore(),
		pub:      &recordingPublisher{},
		uploader: storage.NewMemoryUploader("https://cdn.test"),
		mirror:   mirror.New(logger),
	}

	broker := feed.NewBroker()
	broker.Subscribe(f.mirror.Handle)
	publisher := feed.MultiPublisher{f.pub, broker}

	f.identity = NewIdentityService(f.store.Players(), publisher, logger)
	f.identity.now = fixedClock
	f.tournaments = NewTournamentService(f.store.Tournaments(), f.store.Registrations(), f.store, f.uploader, publisher, logger)
	f.tournaments.now = fixedClock
	f.registrations = NewRegistrationService(f.store.Tournaments(), f.store.Registrations(), f.store.Players(), f.store, config.DefaultRules(), publisher, logger)
	f.registrations.now = fixedClock
	f.players = NewPlayerService(f.store.Players(), f.uploader, publisher, logger)
	f.players.now = fixedClock
	f.dashboards = NewDashboardService(f.mirror)

	f.organizer = f.signIn(t, "idp-olga", "Olga", "olga@club.es", models.RoleOrganizer)
	f.ana = f.signIn(t, "idp-ana", "Ana", "ana@club.es", models.RolePlayer)
	f.bruno = f.signIn(t, "idp-bruno", "Bruno", "bruno@club.es", models.RolePlayer)
	f.pub.reset()
	return f
}

func (f *fixture) signIn(t *testing.T, id, name, email string, role models.Role) *models.Player {
	t.Helper()
	p, err := f.identity.ResolveOrCreatePlayer(f.ctx, Identity{ID: id, Name: name, Email: email}, role)
	require.NoError(t, err)
	return p
}

func tournamentInput(name string, offer models.CategoryOffer) TournamentInput {
	return TournamentInput{
		Name:                 name,
		ClubName:             "Club Padel Norte",
		InscriptionStartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		StartDate:            time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC),
		EndDate:              time.Date(2024, 7, 12, 0, 0, 0, 0, time.UTC),
		Categories:           offer,
		Price:                10,
	}
}

func (f *fixture) createTournament(t *testing.T, name string, offer models.CategoryOffer) *models.Tournament {
	t.Helper()
	tour, err := f.tournaments.CreateTournament(f.ctx, tournamentInput(name, offer), f.organizer)
	require.NoError(t, err)
	return tour
}

func masculine(cs ...models.Category) models.CategoryOffer {
	return models.CategoryOffer{Masculine: cs}
}

func sel(g models.Gender, c models.Category) Selection {
	return Selection{Gender: g, Category: c}
}
