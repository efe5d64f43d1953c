package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/tutormark/internal/marking/domain/event"
	"github.com/louisbranch/tutormark/internal/marking/storage"
	apperrors "github.com/louisbranch/tutormark/internal/platform/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("tutormark/storage/sqlite")

// Append normalizes and persists one event inside a single transaction.
// Storage assigns the event ID, the gapless per-aggregate version, and the
// timestamp when the caller left it zero.
func (s *Store) Append(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}

	ctx, span := tracer.Start(ctx, "events.append", trace.WithAttributes(
		attribute.String("event.aggregate_id", evt.AggregateID),
		attribute.String("event.type", string(evt.Type)),
	))
	defer span.End()

	stored, err := s.appendTx(ctx, evt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "append failed")
	}
	return stored, err
}

func (s *Store) appendTx(ctx context.Context, evt event.Event) (event.Event, error) {
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

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	version, err := allocateVersion(ctx, tx, evt.AggregateID)
	if err != nil {
		return event.Event{}, err
	}
	evt.Version = version

	if _, err := tx.ExecContext(ctx, `
INSERT INTO events (aggregate_id, version, event_id, event_type, timestamp, payload_json)
VALUES (?, ?, ?, ?, ?, ?)`,
		evt.AggregateID, int64(evt.Version), evt.ID, string(evt.Type),
		toMillis(evt.Timestamp), string(evt.PayloadJSON),
	); err != nil {
		return event.Event{}, apperrors.Wrap(apperrors.CodeStorageAppend, "insert event", err)
	}

	if err := tx.Commit(); err != nil {
		return event.Event{}, apperrors.Wrap(apperrors.CodeStorageAppend, "commit append tx", err)
	}
	return evt, nil
}

// allocateVersion hands out the next gapless version for an aggregate. The
// row is created lazily on the aggregate's first append and bumped inside the
// caller's transaction so concurrent appends serialize on it.
func allocateVersion(ctx context.Context, tx *sql.Tx, aggregateID string) (uint64, error) {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO event_seq (aggregate_id, next_version) VALUES (?, 1)
ON CONFLICT(aggregate_id) DO NOTHING`, aggregateID); err != nil {
		return 0, fmt.Errorf("init event seq: %w", err)
	}

	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT next_version FROM event_seq WHERE aggregate_id = ?`, aggregateID,
	).Scan(&next); err != nil {
		return 0, fmt.Errorf("get event seq: %w", err)
	}
	if next <= 0 {
		return 0, fmt.Errorf("event seq is required")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE event_seq SET next_version = next_version + 1 WHERE aggregate_id = ?`, aggregateID,
	); err != nil {
		return 0, fmt.Errorf("increment event seq: %w", err)
	}
	return uint64(next), nil
}

// EventsForAggregate returns one aggregate's stream in version order.
func (s *Store) EventsForAggregate(ctx context.Context, aggregateID string) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	events, err := s.queryEvents(ctx, `
SELECT aggregate_id, version, event_id, event_type, timestamp, payload_json
FROM events WHERE aggregate_id = ? ORDER BY version ASC`, aggregateID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return events, nil
}

// AllEvents returns the full journal in timestamp order, independent of
// aggregate. Ties break on aggregate and version so the order is stable.
func (s *Store) AllEvents(ctx context.Context) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	return s.queryEvents(ctx, `
SELECT aggregate_id, version, event_id, event_type, timestamp, payload_json
FROM events ORDER BY timestamp ASC, aggregate_id ASC, version ASC`)
}

// EventsByType returns every event of one type across all aggregates.
func (s *Store) EventsByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if !eventType.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	return s.queryEvents(ctx, `
SELECT aggregate_id, version, event_id, event_type, timestamp, payload_json
FROM events WHERE event_type = ? ORDER BY aggregate_id ASC, version ASC`, string(eventType))
}

// LatestVersion returns the highest stored version for an aggregate, or 0
// when the aggregate has no events.
func (s *Store) LatestVersion(ctx context.Context, aggregateID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var latest sql.NullInt64
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT MAX(version) FROM events WHERE aggregate_id = ?`, aggregateID,
	).Scan(&latest); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeStorageRead, "query latest version", err)
	}
	if !latest.Valid {
		return 0, nil
	}
	return uint64(latest.Int64), nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]event.Event, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageRead, "query events", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageRead, "read events", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (event.Event, error) {
	var (
		evt       event.Event
		version   int64
		eventType string
		timestamp int64
		payload   string
	)
	if err := rows.Scan(&evt.AggregateID, &version, &evt.ID, &eventType, &timestamp, &payload); err != nil {
		return event.Event{}, apperrors.Wrap(apperrors.CodeStorageRead, "scan event row", err)
	}
	evt.Version = uint64(version)
	evt.Type = event.Type(eventType)
	evt.Timestamp = fromMillis(timestamp)
	evt.PayloadJSON = []byte(payload)
	return evt, nil
}
