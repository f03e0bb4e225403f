// Package mirror keeps an in-process copy of the stored collections that is
// refreshed by change events and serves the dashboards.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gespadel/gespadel/feed"
	"github.com/gespadel/gespadel/models"
	"github.com/gespadel/gespadel/repositories"
	"golang.org/x/sync/errgroup"
)

type Mirror struct {
	mu            sync.RWMutex
	players       map[string]models.Player
	tournaments   map[string]models.Tournament
	registrations map[string]models.Registration
	logger        *slog.Logger
}

func New(logger *slog.Logger) *Mirror {
	return &Mirror{
		players:       make(map[string]models.Player),
		tournaments:   make(map[string]models.Tournament),
		registrations: make(map[string]models.Registration),
		logger:        logger,
	}
}

// Load replaces the mirror content with a fresh snapshot of the store.
func (m *Mirror) Load(ctx context.Context, players repositories.PlayerRepository, tournaments repositories.TournamentRepository, registrations repositories.RegistrationRepository) error {
	var (
		ps []models.Player
		ts []models.Tournament
		rs []models.Registration
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ps, err = players.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ts, err = tournaments.List(gctx, repositories.ListTournamentsFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		rs, err = registrations.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("loading mirror snapshot: %w", err)
	}

	playerMap := make(map[string]models.Player, len(ps))
	for _, p := range ps {
		playerMap[p.ID] = p
	}
	tournamentMap := make(map[string]models.Tournament, len(ts))
	for _, t := range ts {
		tournamentMap[t.ID] = t
	}
	registrationMap := make(map[string]models.Registration, len(rs))
	for _, r := range rs {
		registrationMap[r.ID] = r
	}

	m.mu.Lock()
	m.players, m.tournaments, m.registrations = playerMap, tournamentMap, registrationMap
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "mirror loaded",
		slog.Int("players", len(ps)), slog.Int("tournaments", len(ts)), slog.Int("registrations", len(rs)))
	return nil
}

// Handle applies a change event. It matches feed.Handler.
func (m *Mirror) Handle(ctx context.Context, ev feed.Event) {
	if err := m.Apply(ev); err != nil {
		m.logger.WarnContext(ctx, "mirror could not apply event",
			slog.String("event", ev.Type()), slog.String("entity_id", ev.EntityID), slog.Any("error", err))
	}
}

func (m *Mirror) Apply(ev feed.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Collection {
	case feed.CollectionPlayers:
		if ev.Op == feed.OpDeleted {
			delete(m.players, ev.EntityID)
			return nil
		}
		var p models.Player
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		m.players[p.ID] = p

	case feed.CollectionTournaments:
		if ev.Op == feed.OpDeleted {
			delete(m.tournaments, ev.EntityID)
			for id, r := range m.registrations {
				if r.TournamentID == ev.EntityID {
					delete(m.registrations, id)
				}
			}
			return nil
		}
		var t models.Tournament
		if err := json.Unmarshal(ev.Data, &t); err != nil {
			return err
		}
		m.tournaments[t.ID] = t

	case feed.CollectionRegistrations:
		if ev.Op == feed.OpDeleted {
			delete(m.registrations, ev.EntityID)
			return nil
		}
		var r models.Registration
		if err := json.Unmarshal(ev.Data, &r); err != nil {
			return err
		}
		m.registrations[r.ID] = r

	default:
		return fmt.Errorf("unknown collection %q", ev.Collection)
	}
	return nil
}

func (m *Mirror) Tournament(id string) (models.Tournament, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tournaments[id]
	return t, ok
}

func (m *Mirror) Player(id string) (models.Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	return p, ok
}

// Tournaments returns every tournament, newest start date first.
func (m *Mirror) Tournaments() []models.Tournament {
	m.mu.RLock()
	out := make([]models.Tournament, 0, len(m.tournaments))
	for _, t := range m.tournaments {
		out = append(out, t)
	}
	m.mu.RUnlock()

	repositories.SortTournaments(out)
	return out
}

// OrganizerDashboard lists every tournament with its active registration count.
func (m *Mirror) OrganizerDashboard() models.OrganizerDashboard {
	m.mu.RLock()
	counts := make(map[string]int, len(m.tournaments))
	for _, r := range m.registrations {
		if r.IsActive() {
			counts[r.TournamentID]++
		}
	}
	m.mu.RUnlock()

	tournaments := m.Tournaments()
	summaries := make([]models.TournamentSummary, 0, len(tournaments))
	for _, t := range tournaments {
		summaries = append(summaries, models.TournamentSummary{Tournament: t, ActiveRegistrations: counts[t.ID]})
	}
	return models.OrganizerDashboard{Tournaments: summaries}
}

// PlayerDashboard splits tournaments into the ones the player holds an
// active registration for and the open ones still available.
func (m *Mirror) PlayerDashboard(playerID string) models.PlayerDashboard {
	m.mu.RLock()
	mine := make(map[string]models.Registration)
	for _, r := range m.registrations {
		if r.IsActive() && r.Involves(playerID) {
			mine[r.TournamentID] = r
		}
	}
	m.mu.RUnlock()

	dash := models.PlayerDashboard{
		Registered: []models.PlayerTournament{},
		Available:  []models.Tournament{},
	}
	for _, t := range m.Tournaments() {
		if r, ok := mine[t.ID]; ok {
			dash.Registered = append(dash.Registered, models.PlayerTournament{Tournament: t, Registration: r})
			continue
		}
		if t.Status == models.StatusOpen {
			dash.Available = append(dash.Available, t)
		}
	}
	return dash
}
