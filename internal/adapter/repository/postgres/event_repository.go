package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/user/persona-engine/internal/domain"
)

// EventRepository implements domain.EventRepository for PostgreSQL. The
// event log is append-only; this repository never updates or deletes rows.
type EventRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEventRepository creates a new PostgreSQL event repository.
func NewEventRepository(db *sql.DB, logger *slog.Logger) *EventRepository {
	return &EventRepository{db: db, logger: logger.With("component", "event_repository")}
}

const eventColumns = "id, external_id, event_name, user_id, event_params, event_timestamp, received_at"

// SaveEvents writes a batch of events using the COPY protocol, staging into
// a temp table and merging with ON CONFLICT DO NOTHING so re-delivered
// events are dropped rather than duplicated.
func (r *EventRepository) SaveEvents(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	tempTableName := "analytics_raw_temp_import"
	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+tempTableName+` (LIKE analytics_raw INCLUDING DEFAULTS) ON COMMIT DROP;`)
	if err != nil {
		return err
	}

	stmt, err := txn.Prepare(pq.CopyIn(tempTableName, "external_id", "event_name", "user_id", "event_params", "event_timestamp", "received_at"))
	if err != nil {
		return err
	}

	for _, event := range events {
		params, err := marshalParams(event.Params)
		if err != nil {
			_ = stmt.Close()
			return err
		}
		received := event.ReceivedAt
		if received.IsZero() {
			received = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, event.ExternalID, event.Name, event.UserID, params, event.Timestamp, received); err != nil {
			_ = stmt.Close()
			return err
		}
	}

	if err := stmt.Close(); err != nil {
		return err
	}

	mergeQuery := `
		INSERT INTO analytics_raw (external_id, event_name, user_id, event_params, event_timestamp, received_at)
		SELECT external_id, event_name, user_id, event_params, event_timestamp, received_at FROM ` + tempTableName + `
		ON CONFLICT (external_id) DO NOTHING;
	`
	if _, err := txn.ExecContext(ctx, mergeQuery); err != nil {
		return err
	}

	return txn.Commit()
}

// ListRecentEvents returns all events received after the given instant.
func (r *EventRepository) ListRecentEvents(ctx context.Context, since time.Time) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM analytics_raw WHERE received_at > $1`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListEventsForUser returns the most recent events for a user, newest first.
func (r *EventRepository) ListEventsForUser(ctx context.Context, userID string, limit int) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM analytics_raw WHERE user_id = $1 ORDER BY received_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for user: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListEventsForSegment returns events belonging to users whose current
// classification matches the segment, joining the event log against the
// classification table.
func (r *EventRepository) ListEventsForSegment(ctx context.Context, segment domain.Segment, limit int) ([]domain.Event, error) {
	query := `
		SELECT e.id, e.external_id, e.event_name, e.user_id, e.event_params, e.event_timestamp, e.received_at
		FROM analytics_raw e
		JOIN user_segments s ON e.user_id = s.user_id
		WHERE s.segment = $1
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, string(segment), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for segment: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var params []byte
		if err := rows.Scan(&event.ID, &event.ExternalID, &event.Name, &event.UserID, &params, &event.Timestamp, &event.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &event.Params); err != nil {
				return nil, fmt.Errorf("failed to decode event params: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func marshalParams(params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event params: %w", err)
	}
	return payload, nil
}
