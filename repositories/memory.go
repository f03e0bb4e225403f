package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gespadel/gespadel/models"
)

// MemoryStore keeps the three collections in process. It enforces the same
// uniqueness and reference rules as the Postgres schema. Writers are
// serialized; a transaction holds the writer lock until it finishes and
// undoes its writes on error. Readers may observe uncommitted writes.
type MemoryStore struct {
	writeMu sync.Mutex
	mu      sync.RWMutex

	players       map[string]models.Player
	tournaments   map[string]models.Tournament
	registrations map[string]models.Registration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players:       make(map[string]models.Player),
		tournaments:   make(map[string]models.Tournament),
		registrations: make(map[string]models.Registration),
	}
}

func (s *MemoryStore) Players() PlayerRepository             { return &memoryPlayerRepository{s: s} }
func (s *MemoryStore) Tournaments() TournamentRepository     { return &memoryTournamentRepository{s: s} }
func (s *MemoryStore) Registrations() RegistrationRepository { return &memoryRegistrationRepository{s: s} }

type memTxKey struct{}

type memTx struct {
	undo []func()
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx := &memTx{}
	defer func() {
		if p := recover(); p != nil {
			s.rollback(tx)
			panic(p)
		}
		if err != nil {
			s.rollback(tx)
		}
	}()
	return fn(context.WithValue(ctx, memTxKey{}, tx))
}

func (s *MemoryStore) rollback(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}

// write applies a mutation under the data lock. apply returns the function
// that reverts it.
func (s *MemoryStore) write(ctx context.Context, apply func() (func(), error)) error {
	tx, inTx := ctx.Value(memTxKey{}).(*memTx)
	if !inTx {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}

	s.mu.Lock()
	undo, err := apply()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if inTx && undo != nil {
		tx.undo = append(tx.undo, undo)
	}
	return nil
}

func (s *MemoryStore) restorePlayer(id string, prev models.Player, existed bool) func() {
	return func() {
		if existed {
			s.players[id] = prev
		} else {
			delete(s.players, id)
		}
	}
}

func (s *MemoryStore) restoreTournament(id string, prev models.Tournament, existed bool) func() {
	return func() {
		if existed {
			s.tournaments[id] = prev
		} else {
			delete(s.tournaments, id)
		}
	}
}

func (s *MemoryStore) restoreRegistration(id string, prev models.Registration, existed bool) func() {
	return func() {
		if existed {
			s.registrations[id] = prev
		} else {
			delete(s.registrations, id)
		}
	}
}

// --- players ---

type memoryPlayerRepository struct {
	s *MemoryStore
}

func (r *memoryPlayerRepository) Create(ctx context.Context, p *models.Player) error {
	return r.s.write(ctx, func() (func(), error) {
		if err := r.checkUnique(p); err != nil {
			return nil, err
		}
		if _, exists := r.s.players[p.ID]; exists {
			return nil, ErrPlayerIdentityConflict
		}
		r.s.players[p.ID] = clonePlayer(*p)
		return r.s.restorePlayer(p.ID, models.Player{}, false), nil
	})
}

func (r *memoryPlayerRepository) GetByID(_ context.Context, id string) (*models.Player, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	out := clonePlayer(p)
	return &out, nil
}

func (r *memoryPlayerRepository) GetByIdentity(_ context.Context, identityID string) (*models.Player, error) {
	return r.find(func(p *models.Player) bool {
		return p.IdentityID != nil && *p.IdentityID == identityID
	})
}

func (r *memoryPlayerRepository) GetByEmail(_ context.Context, email string) (*models.Player, error) {
	return r.find(func(p *models.Player) bool { return p.Email == email })
}

func (r *memoryPlayerRepository) Update(ctx context.Context, p *models.Player) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.players[p.ID]
		if !ok {
			return nil, ErrPlayerNotFound
		}
		if err := r.checkUnique(p); err != nil {
			return nil, err
		}
		updated := clonePlayer(*p)
		updated.CreatedAt = prev.CreatedAt
		r.s.players[p.ID] = updated
		return r.s.restorePlayer(p.ID, prev, true), nil
	})
}

func (r *memoryPlayerRepository) List(_ context.Context) ([]models.Player, error) {
	r.s.mu.RLock()
	players := make([]models.Player, 0, len(r.s.players))
	for _, p := range r.s.players {
		players = append(players, clonePlayer(p))
	}
	r.s.mu.RUnlock()

	sort.Slice(players, func(i, j int) bool {
		if players[i].Name != players[j].Name {
			return players[i].Name < players[j].Name
		}
		return players[i].ID < players[j].ID
	})
	return players, nil
}

func (r *memoryPlayerRepository) find(match func(p *models.Player) bool) (*models.Player, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.players {
		if match(&p) {
			out := clonePlayer(p)
			return &out, nil
		}
	}
	return nil, ErrPlayerNotFound
}

// checkUnique must be called with the data lock held.
func (r *memoryPlayerRepository) checkUnique(p *models.Player) error {
	for id, other := range r.s.players {
		if id == p.ID {
			continue
		}
		if p.Email != "" && other.Email == p.Email {
			return ErrPlayerEmailConflict
		}
		if p.Claimed() && other.Claimed() && *other.IdentityID == *p.IdentityID {
			return ErrPlayerIdentityConflict
		}
	}
	return nil
}

// --- tournaments ---

type memoryTournamentRepository struct {
	s *MemoryStore
}

func (r *memoryTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	return r.s.write(ctx, func() (func(), error) {
		if _, ok := r.s.players[t.OrganizerID]; !ok {
			return nil, ErrTournamentInvalidOrg
		}
		r.s.tournaments[t.ID] = cloneTournament(*t)
		return r.s.restoreTournament(t.ID, models.Tournament{}, false), nil
	})
}

func (r *memoryTournamentRepository) GetByID(_ context.Context, id string) (*models.Tournament, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	out := cloneTournament(t)
	return &out, nil
}

func (r *memoryTournamentRepository) List(_ context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	r.s.mu.RLock()
	tournaments := make([]models.Tournament, 0, len(r.s.tournaments))
	for _, t := range r.s.tournaments {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.OrganizerID != nil && t.OrganizerID != *filter.OrganizerID {
			continue
		}
		tournaments = append(tournaments, cloneTournament(t))
	}
	r.s.mu.RUnlock()

	SortTournaments(tournaments)
	return tournaments, nil
}

func (r *memoryTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.tournaments[t.ID]
		if !ok {
			return nil, ErrTournamentNotFound
		}
		if prev.Status != models.StatusOpen {
			return nil, ErrTournamentNotEditable
		}
		updated := cloneTournament(*t)
		updated.Status = prev.Status
		updated.CreatedAt = prev.CreatedAt
		updated.OrganizerID = prev.OrganizerID
		r.s.tournaments[t.ID] = updated
		return r.s.restoreTournament(t.ID, prev, true), nil
	})
}

func (r *memoryTournamentRepository) UpdateStatus(ctx context.Context, id string, from, to models.TournamentStatus) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.tournaments[id]
		if !ok {
			return nil, ErrTournamentNotFound
		}
		if prev.Status != from {
			return nil, ErrTournamentStatusConflict
		}
		updated := cloneTournament(prev)
		updated.Status = to
		updated.UpdatedAt = time.Now().UTC()
		r.s.tournaments[id] = updated
		return r.s.restoreTournament(id, prev, true), nil
	})
}

func (r *memoryTournamentRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.tournaments[id]
		if !ok {
			return nil, ErrTournamentNotFound
		}
		undo := []func(){r.s.restoreTournament(id, prev, true)}
		delete(r.s.tournaments, id)
		for regID, reg := range r.s.registrations {
			if reg.TournamentID == id {
				undo = append(undo, r.s.restoreRegistration(regID, reg, true))
				delete(r.s.registrations, regID)
			}
		}
		return func() {
			for _, u := range undo {
				u()
			}
		}, nil
	})
}

// SortTournaments orders by start date, newest first, then by creation time.
func SortTournaments(ts []models.Tournament) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].StartDate.Equal(ts[j].StartDate) {
			return ts[i].StartDate.After(ts[j].StartDate)
		}
		return ts[i].CreatedAt.After(ts[j].CreatedAt)
	})
}

// --- registrations ---

type memoryRegistrationRepository struct {
	s *MemoryStore
}

func (r *memoryRegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	return r.s.write(ctx, func() (func(), error) {
		if _, ok := r.s.tournaments[reg.TournamentID]; !ok {
			return nil, ErrRegistrationTournamentInvalid
		}
		if _, ok := r.s.players[reg.Player1ID]; !ok {
			return nil, ErrRegistrationPlayerInvalid
		}
		if reg.Partner != nil && reg.Partner.Kind == models.PartnerReferenced {
			if _, ok := r.s.players[reg.Partner.PlayerID]; !ok {
				return nil, ErrRegistrationPlayerInvalid
			}
		}
		if reg.Status == models.RegistrationActive {
			for _, other := range r.s.registrations {
				if other.IsActive() && other.TournamentID == reg.TournamentID && other.Player1ID == reg.Player1ID {
					return nil, ErrRegistrationConflict
				}
			}
		}
		r.s.registrations[reg.ID] = cloneRegistration(*reg)
		return r.s.restoreRegistration(reg.ID, models.Registration{}, false), nil
	})
}

func (r *memoryRegistrationRepository) GetByID(_ context.Context, id string) (*models.Registration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	reg, ok := r.s.registrations[id]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	out := cloneRegistration(reg)
	return &out, nil
}

func (r *memoryRegistrationRepository) FindActive(_ context.Context, tournamentID, playerID string) (*models.Registration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, reg := range r.s.registrations {
		if reg.IsActive() && reg.TournamentID == tournamentID && reg.Player1ID == playerID {
			out := cloneRegistration(reg)
			return &out, nil
		}
	}
	return nil, ErrRegistrationNotFound
}

func (r *memoryRegistrationRepository) ListByTournament(_ context.Context, tournamentID string) ([]models.Registration, error) {
	return r.filter(func(reg *models.Registration) bool { return reg.TournamentID == tournamentID }), nil
}

func (r *memoryRegistrationRepository) ListByPlayer(_ context.Context, playerID string) ([]models.Registration, error) {
	return r.filter(func(reg *models.Registration) bool { return reg.Involves(playerID) }), nil
}

func (r *memoryRegistrationRepository) List(_ context.Context) ([]models.Registration, error) {
	return r.filter(func(*models.Registration) bool { return true }), nil
}

func (r *memoryRegistrationRepository) UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus, at time.Time, by string) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.registrations[id]
		if !ok {
			return nil, ErrRegistrationNotFound
		}
		updated := cloneRegistration(prev)
		updated.Status = status
		updated.CancelledAt, updated.CancelledBy = nil, nil
		if status == models.RegistrationCancelled {
			updated.CancelledAt = &at
			if by != "" {
				updated.CancelledBy = &by
			}
		}
		r.s.registrations[id] = updated
		return r.s.restoreRegistration(id, prev, true), nil
	})
}

func (r *memoryRegistrationRepository) DeleteByTournament(ctx context.Context, tournamentID string) error {
	return r.s.write(ctx, func() (func(), error) {
		var undo []func()
		for id, reg := range r.s.registrations {
			if reg.TournamentID == tournamentID {
				undo = append(undo, r.s.restoreRegistration(id, reg, true))
				delete(r.s.registrations, id)
			}
		}
		return func() {
			for _, u := range undo {
				u()
			}
		}, nil
	})
}

func (r *memoryRegistrationRepository) filter(match func(reg *models.Registration) bool) []models.Registration {
	r.s.mu.RLock()
	out := make([]models.Registration, 0)
	for _, reg := range r.s.registrations {
		if match(&reg) {
			out = append(out, cloneRegistration(reg))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegistrationDate.Equal(out[j].RegistrationDate) {
			return out[i].RegistrationDate.Before(out[j].RegistrationDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// --- copies ---

func clonePlayer(p models.Player) models.Player {
	p.IdentityID = cloneString(p.IdentityID)
	p.Phone = cloneString(p.Phone)
	p.ProfilePicture = cloneString(p.ProfilePicture)
	if p.Gender != nil {
		g := *p.Gender
		p.Gender = &g
	}
	if p.Category != nil {
		c := *p.Category
		p.Category = &c
	}
	return p
}

func cloneTournament(t models.Tournament) models.Tournament {
	t.Categories = models.CategoryOffer{
		Masculine: append([]models.Category(nil), t.Categories.Masculine...),
		Feminine:  append([]models.Category(nil), t.Categories.Feminine...),
	}
	t.PosterImage = cloneString(t.PosterImage)
	t.RulesPdfURL = cloneString(t.RulesPdfURL)
	return t
}

func cloneRegistration(r models.Registration) models.Registration {
	if r.Partner != nil {
		partner := *r.Partner
		partner.Phone = cloneString(partner.Phone)
		r.Partner = &partner
	}
	r.TimePreferences = append([]models.TimeSlot(nil), r.TimePreferences...)
	if r.CancelledAt != nil {
		at := *r.CancelledAt
		r.CancelledAt = &at
	}
	r.CancelledBy = cloneString(r.CancelledBy)
	return r
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
