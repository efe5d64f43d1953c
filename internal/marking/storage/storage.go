// Package storage defines the event store contract shared by every backend.
package storage

import (
	"context"

	"github.com/louisbranch/tutormark/internal/marking/domain/event"
	apperrors "github.com/louisbranch/tutormark/internal/platform/errors"
)

// ErrNotFound is returned when a lookup targets an aggregate with no events.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "not found")

// EventStore is an append-only journal of domain events. Implementations
// assign the event ID and the per-aggregate version on append; callers must
// leave both unset. Appended events are immutable.
type EventStore interface {
	// Append normalizes and persists one event, returning the stored copy
	// with its assigned ID, version, and timestamp.
	Append(ctx context.Context, evt event.Event) (event.Event, error)

	// EventsForAggregate returns every event for one aggregate in version
	// order. It returns ErrNotFound when the aggregate has no events.
	EventsForAggregate(ctx context.Context, aggregateID string) ([]event.Event, error)

	// AllEvents returns the full journal ordered by aggregate and version.
	AllEvents(ctx context.Context) ([]event.Event, error)

	// EventsByType returns every event of one type across all aggregates.
	EventsByType(ctx context.Context, eventType event.Type) ([]event.Event, error)

	// LatestVersion returns the highest stored version for an aggregate,
	// or 0 when the aggregate has no events.
	LatestVersion(ctx context.Context, aggregateID string) (uint64, error)
}
