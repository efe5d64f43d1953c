// Package memory provides an in-memory event store for tests and wiring
// without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/tutormark/internal/marking/domain/event"
	"github.com/louisbranch/tutormark/internal/marking/storage"
	"github.com/louisbranch/tutormark/internal/platform/id"
)

// Store is a mutex-guarded in-memory event journal. It mirrors the SQLite
// store's append semantics, including storage-assigned ids and versions.
type Store struct {
	mu      sync.Mutex
	streams map[string][]event.Event
	newID   func() (string, error)
	clock   func() time.Time
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		streams: make(map[string][]event.Event),
		newID:   id.NewID,
		clock:   time.Now,
	}
}

// Append normalizes and stores one event, assigning id, version, and
// timestamp.
func (s *Store) Append(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}

	normalized, err := event.NormalizeForAppend(evt)
	if err != nil {
		return event.Event{}, err
	}
	evt = normalized

	eventID, err := s.newID()
	if err != nil {
		return event.Event{}, fmt.Errorf("generate event id: %w", err)
	}
	evt.ID = eventID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.clock()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	evt.Version = uint64(len(s.streams[evt.AggregateID])) + 1
	s.streams[evt.AggregateID] = append(s.streams[evt.AggregateID], evt)
	return evt, nil
}

// EventsForAggregate returns a copy of one aggregate's stream in version
// order, or storage.ErrNotFound for an unknown aggregate.
func (s *Store) EventsForAggregate(ctx context.Context, aggregateID string) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stream, ok := s.streams[aggregateID]
	if !ok || len(stream) == 0 {
		return nil, storage.ErrNotFound
	}
	out := make([]event.Event, len(stream))
	copy(out, stream)
	return out, nil
}

// AllEvents returns every stored event in timestamp order, independent of
// aggregate. Ties break on aggregate and version so the order is stable.
func (s *Store) AllEvents(ctx context.Context) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, stream := range s.streams {
		out = append(out, stream...)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		if out[i].AggregateID != out[j].AggregateID {
			return out[i].AggregateID < out[j].AggregateID
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// EventsByType returns every event of one type across all aggregates.
func (s *Store) EventsByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	if !eventType.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	all, err := s.AllEvents(ctx)
	if err != nil {
		return nil, err
	}
	var out []event.Event
	for _, evt := range all {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out, nil
}

// LatestVersion returns the highest version for an aggregate, or 0 when it
// has no events.
func (s *Store) LatestVersion(ctx context.Context, aggregateID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.streams[aggregateID])), nil
}
