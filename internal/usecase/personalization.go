package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/persona-engine/internal/domain"
)

// CreateOrUpdateRule applies an operator-supplied ruleset for a segment,
// bypassing the LLM. The explanation always states that this is a manual
// override, regardless of the operator's reasoning text. Writes are
// last-write-wins on the unique-by-segment row.
func (e *AnalysisEngine) CreateOrUpdateRule(ctx context.Context, rules domain.PersonalizationRules) (domain.PersonalizationRules, error) {
	if !rules.Segment.Valid() {
		return domain.PersonalizationRules{}, fmt.Errorf("unknown segment %q", rules.Segment)
	}

	rules.PrioritySections = capSections(rules.PrioritySections)
	if rules.Reasoning == "" {
		rules.Reasoning = "Manual override by administrator"
	}
	rules.Explanation = domain.Explanation{
		What:           "Manual rule override by administrator",
		Why:            "Operator supplied explicit personalization rules, bypassing the LLM",
		SoWhat:         "These rules replace any generated ruleset for this segment",
		Recommendation: "Review after the next scheduled analysis cycle",
	}
	rules.CreatedAt = time.Now().UTC()

	if err := e.rules.UpsertRules(ctx, rules); err != nil {
		return domain.PersonalizationRules{}, fmt.Errorf("failed to persist rule override for segment %s: %w", rules.Segment, err)
	}

	e.logger.Info("rule override applied", "segment", rules.Segment)
	return rules, nil
}

// GetPersonalization is the public read path: it resolves the user's current
// segment and returns that segment's active rules. It never invokes the LLM
// and never reflects an upstream failure as an absent result — unknown users
// and segments without rules get defaults, because content must always render.
func (e *AnalysisEngine) GetPersonalization(ctx context.Context, userID string) (domain.PersonalizationRules, error) {
	segment := domain.SegmentCasual

	userSegment, err := e.segments.GetSegment(ctx, userID)
	switch {
	case err == nil:
		segment = userSegment.Segment
	case errors.Is(err, domain.ErrNotFound):
		e.logger.Info("no segment for user, serving defaults", "user_id", userID)
	default:
		return domain.PersonalizationRules{}, fmt.Errorf("failed to look up segment for user %s: %w", userID, err)
	}

	rules, err := e.rules.GetRules(ctx, segment)
	switch {
	case err == nil:
		return rules, nil
	case errors.Is(err, domain.ErrNotFound):
		e.logger.Info("no rules for segment, serving defaults", "segment", segment)
		return defaultRules(segment), nil
	default:
		return domain.PersonalizationRules{}, fmt.Errorf("failed to look up rules for segment %s: %w", segment, err)
	}
}

func defaultRules(segment domain.Segment) domain.PersonalizationRules {
	return domain.PersonalizationRules{
		Segment:          segment,
		PrioritySections: []string{"projects", "skills", "experience"},
		FeaturedProjects: []string{},
		HighlightSkills:  []string{},
		Reasoning:        "Default rules - no custom rules generated yet",
	}
}
