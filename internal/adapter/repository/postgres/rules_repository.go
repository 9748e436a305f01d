package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/user/persona-engine/internal/domain"
)

// RulesRepository implements domain.RulesRepository for PostgreSQL.
// personalization_rules holds at most one active row per segment; batch
// cycles and admin overrides both go through the same upsert, so the last
// writer wins.
type RulesRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRulesRepository creates a new PostgreSQL rules repository.
func NewRulesRepository(db *sql.DB, logger *slog.Logger) *RulesRepository {
	return &RulesRepository{db: db, logger: logger.With("component", "rules_repository")}
}

// UpsertRules inserts or replaces the ruleset for a segment.
func (r *RulesRepository) UpsertRules(ctx context.Context, rules domain.PersonalizationRules) error {
	explanation, err := json.Marshal(rules.Explanation)
	if err != nil {
		return fmt.Errorf("failed to encode explanation: %w", err)
	}
	overrides, err := json.Marshal(rules.StyleOverrides)
	if err != nil {
		return fmt.Errorf("failed to encode style overrides: %w", err)
	}

	query := `
		INSERT INTO personalization_rules (segment, priority_sections, featured_projects, highlight_skills, style_overrides, reasoning, xai_explanation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (segment) DO UPDATE SET
			priority_sections = EXCLUDED.priority_sections,
			featured_projects = EXCLUDED.featured_projects,
			highlight_skills = EXCLUDED.highlight_skills,
			style_overrides = EXCLUDED.style_overrides,
			reasoning = EXCLUDED.reasoning,
			xai_explanation = EXCLUDED.xai_explanation,
			created_at = EXCLUDED.created_at;
	`
	_, err = r.db.ExecContext(ctx, query,
		string(rules.Segment),
		pq.Array(rules.PrioritySections),
		pq.Array(rules.FeaturedProjects),
		pq.Array(rules.HighlightSkills),
		overrides, rules.Reasoning, explanation, rules.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rules for segment %s: %w", rules.Segment, err)
	}
	return nil
}

// GetRules returns the active ruleset for a segment.
func (r *RulesRepository) GetRules(ctx context.Context, segment domain.Segment) (domain.PersonalizationRules, error) {
	query := `
		SELECT segment, priority_sections, featured_projects, highlight_skills, style_overrides, reasoning, xai_explanation, created_at
		FROM personalization_rules WHERE segment = $1`

	var rules domain.PersonalizationRules
	var explanation, overrides []byte
	err := r.db.QueryRowContext(ctx, query, string(segment)).Scan(
		&rules.Segment,
		pq.Array(&rules.PrioritySections),
		pq.Array(&rules.FeaturedProjects),
		pq.Array(&rules.HighlightSkills),
		&overrides, &rules.Reasoning, &explanation, &rules.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PersonalizationRules{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PersonalizationRules{}, fmt.Errorf("failed to query rules for segment %s: %w", segment, err)
	}

	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &rules.StyleOverrides); err != nil {
			return domain.PersonalizationRules{}, fmt.Errorf("failed to decode style overrides: %w", err)
		}
	}
	if len(explanation) > 0 {
		if err := json.Unmarshal(explanation, &rules.Explanation); err != nil {
			return domain.PersonalizationRules{}, fmt.Errorf("failed to decode explanation: %w", err)
		}
	}
	return rules, nil
}
