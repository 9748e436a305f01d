package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/user/persona-engine/internal/domain"
	"github.com/user/persona-engine/internal/domain/mocks"
)

func TestAnalysisEngine_CreateOrUpdateRule(t *testing.T) {
	t.Run("Override Round-Trips Through Read Path", func(t *testing.T) {
		segmentRepo := &mocks.MockSegmentRepository{
			Segments: map[string]domain.UserSegment{
				"u1": {UserID: "u1", Segment: domain.SegmentRecruiter},
			},
		}
		rulesRepo := &mocks.MockRulesRepository{}
		engine := newTestEngine(&mocks.MockEventRepository{}, segmentRepo, rulesRepo, &mocks.MockCache{}, &mocks.MockLLMGateway{})

		override := domain.PersonalizationRules{
			Segment:          domain.SegmentRecruiter,
			PrioritySections: []string{"contact", "experience"},
			FeaturedProjects: []string{"fullstack_apps"},
			HighlightSkills:  []string{"react", "aws"},
			Reasoning:        "recruiters need contact info first",
		}
		if _, err := engine.CreateOrUpdateRule(context.Background(), override); err != nil {
			t.Fatalf("override failed: %v", err)
		}

		got, err := engine.GetPersonalization(context.Background(), "u1")
		if err != nil {
			t.Fatalf("read path failed: %v", err)
		}
		if !reflect.DeepEqual(got.PrioritySections, override.PrioritySections) {
			t.Errorf("priority sections mismatch: got %v want %v", got.PrioritySections, override.PrioritySections)
		}
		if !reflect.DeepEqual(got.FeaturedProjects, override.FeaturedProjects) {
			t.Errorf("featured projects mismatch: got %v want %v", got.FeaturedProjects, override.FeaturedProjects)
		}
		if !reflect.DeepEqual(got.HighlightSkills, override.HighlightSkills) {
			t.Errorf("highlight skills mismatch: got %v want %v", got.HighlightSkills, override.HighlightSkills)
		}
	})

	t.Run("Explanation Always Marks Manual Override", func(t *testing.T) {
		rulesRepo := &mocks.MockRulesRepository{}
		engine := newTestEngine(&mocks.MockEventRepository{}, &mocks.MockSegmentRepository{}, rulesRepo, &mocks.MockCache{}, &mocks.MockLLMGateway{})

		saved, err := engine.CreateOrUpdateRule(context.Background(), domain.PersonalizationRules{
			Segment:   domain.SegmentStudent,
			Reasoning: "my own carefully written reasoning",
		})
		if err != nil {
			t.Fatalf("override failed: %v", err)
		}
		if !strings.Contains(saved.Explanation.What, "Manual rule override") {
			t.Errorf("expected override explanation regardless of operator reasoning, got %q", saved.Explanation.What)
		}
		if saved.Reasoning != "my own carefully written reasoning" {
			t.Errorf("operator reasoning should be preserved, got %q", saved.Reasoning)
		}
	})

	t.Run("Invalid Segment Rejected", func(t *testing.T) {
		engine := newTestEngine(&mocks.MockEventRepository{}, &mocks.MockSegmentRepository{}, &mocks.MockRulesRepository{}, &mocks.MockCache{}, &mocks.MockLLMGateway{})

		if _, err := engine.CreateOrUpdateRule(context.Background(), domain.PersonalizationRules{Segment: "NOT_A_SEGMENT"}); err == nil {
			t.Fatal("expected error for unknown segment")
		}
	})
}

func TestAnalysisEngine_GetPersonalization(t *testing.T) {
	t.Run("Unknown User Gets Casual Defaults", func(t *testing.T) {
		engine := newTestEngine(&mocks.MockEventRepository{}, &mocks.MockSegmentRepository{}, &mocks.MockRulesRepository{}, &mocks.MockCache{}, &mocks.MockLLMGateway{})

		rules, err := engine.GetPersonalization(context.Background(), "stranger")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if rules.Segment != domain.SegmentCasual {
			t.Errorf("expected CASUAL for unknown user, got %s", rules.Segment)
		}
		if len(rules.PrioritySections) == 0 {
			t.Error("expected non-empty default sections so content always renders")
		}
	})

	t.Run("Segment Without Rules Gets Defaults", func(t *testing.T) {
		segmentRepo := &mocks.MockSegmentRepository{
			Segments: map[string]domain.UserSegment{
				"u1": {UserID: "u1", Segment: domain.SegmentMLEngineer},
			},
		}
		engine := newTestEngine(&mocks.MockEventRepository{}, segmentRepo, &mocks.MockRulesRepository{}, &mocks.MockCache{}, &mocks.MockLLMGateway{})

		rules, err := engine.GetPersonalization(context.Background(), "u1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if rules.Segment != domain.SegmentMLEngineer {
			t.Errorf("defaults should carry the user's segment, got %s", rules.Segment)
		}
	})

	t.Run("Store Failure Propagates", func(t *testing.T) {
		segmentRepo := &mocks.MockSegmentRepository{GetErr: errors.New("connection refused")}
		engine := newTestEngine(&mocks.MockEventRepository{}, segmentRepo, &mocks.MockRulesRepository{}, &mocks.MockCache{}, &mocks.MockLLMGateway{})

		if _, err := engine.GetPersonalization(context.Background(), "u1"); err == nil {
			t.Fatal("expected store failure to propagate")
		}
	})
}
