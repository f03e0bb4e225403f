// Package feed carries change notifications for players, tournaments and
// registrations from the writers to the live readers.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Collection string

const (
	CollectionPlayers       Collection = "players"
	CollectionTournaments   Collection = "tournaments"
	CollectionRegistrations Collection = "registrations"
)

type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Event describes one committed write. Data holds the full document after
// the write, or is empty for deletions.
type Event struct {
	ID           string          `json:"id"`
	Collection   Collection      `json:"collection"`
	Op           Op              `json:"op"`
	EntityID     string          `json:"entity_id"`
	TournamentID string          `json:"tournament_id,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	At           time.Time       `json:"at"`
	Origin       string          `json:"origin,omitempty"`
}

// Type is the name used on the websocket wire, e.g. "registrations.created".
func (e Event) Type() string {
	return string(e.Collection) + "." + string(e.Op)
}

func NewEvent(collection Collection, op Op, entityID, tournamentID string, doc interface{}) (Event, error) {
	ev := Event{
		ID:           uuid.NewString(),
		Collection:   collection,
		Op:           op,
		EntityID:     entityID,
		TournamentID: tournamentID,
		At:           time.Now().UTC(),
	}
	if doc != nil {
		data, err := json.Marshal(doc)
		if err != nil {
			return Event{}, fmt.Errorf("failed to encode %s %s: %w", collection, entityID, err)
		}
		ev.Data = data
	}
	return ev, nil
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
