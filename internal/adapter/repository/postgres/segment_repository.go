package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/persona-engine/internal/domain"
)

// SegmentRepository implements domain.SegmentRepository for PostgreSQL.
// user_segments holds exactly one row per user; the upsert relies on the
// unique constraint for last-write-wins semantics under concurrent writers.
type SegmentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSegmentRepository creates a new PostgreSQL segment repository.
func NewSegmentRepository(db *sql.DB, logger *slog.Logger) *SegmentRepository {
	return &SegmentRepository{db: db, logger: logger.With("component", "segment_repository")}
}

// UpsertSegment inserts or replaces the classification row for a user.
func (r *SegmentRepository) UpsertSegment(ctx context.Context, segment domain.UserSegment) error {
	explanation, err := json.Marshal(segment.Explanation)
	if err != nil {
		return fmt.Errorf("failed to encode explanation: %w", err)
	}
	summary, err := json.Marshal(segment.EventSummary)
	if err != nil {
		return fmt.Errorf("failed to encode event summary: %w", err)
	}

	query := `
		INSERT INTO user_segments (user_id, segment, confidence, reasoning, xai_explanation, event_summary, analyzed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			segment = EXCLUDED.segment,
			confidence = EXCLUDED.confidence,
			reasoning = EXCLUDED.reasoning,
			xai_explanation = EXCLUDED.xai_explanation,
			event_summary = EXCLUDED.event_summary,
			analyzed_at = EXCLUDED.analyzed_at,
			expires_at = EXCLUDED.expires_at;
	`
	_, err = r.db.ExecContext(ctx, query,
		segment.UserID, string(segment.Segment), segment.Confidence, segment.Reasoning,
		explanation, summary, segment.AnalyzedAt, segment.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert segment for user %s: %w", segment.UserID, err)
	}
	return nil
}

// GetSegment returns the current classification for a user.
func (r *SegmentRepository) GetSegment(ctx context.Context, userID string) (domain.UserSegment, error) {
	query := `
		SELECT user_id, segment, confidence, reasoning, xai_explanation, event_summary, analyzed_at, expires_at
		FROM user_segments WHERE user_id = $1`

	var segment domain.UserSegment
	var explanation, summary []byte
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&segment.UserID, &segment.Segment, &segment.Confidence, &segment.Reasoning,
		&explanation, &summary, &segment.AnalyzedAt, &segment.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserSegment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.UserSegment{}, fmt.Errorf("failed to query segment for user %s: %w", userID, err)
	}

	if len(explanation) > 0 {
		if err := json.Unmarshal(explanation, &segment.Explanation); err != nil {
			return domain.UserSegment{}, fmt.Errorf("failed to decode explanation: %w", err)
		}
	}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &segment.EventSummary); err != nil {
			return domain.UserSegment{}, fmt.Errorf("failed to decode event summary: %w", err)
		}
	}
	return segment, nil
}
