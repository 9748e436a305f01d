package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/user/persona-engine/internal/domain"
	"github.com/user/persona-engine/internal/domain/mocks"
)

const mlEngineerResponse = `{
	"segment": "ML_ENGINEER",
	"confidence": 0.9,
	"reasoning": "Heavy AI project engagement",
	"xai_explanation": {
		"what": "Clicked AI projects repeatedly",
		"why": "Strong ML focus",
		"so_what": "Likely a technical peer",
		"recommendation": "Feature ML projects"
	}
}`

func newTestEngine(events *mocks.MockEventRepository, segments *mocks.MockSegmentRepository, rules *mocks.MockRulesRepository, cache *mocks.MockCache, gateway *mocks.MockLLMGateway) *AnalysisEngine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAnalysisEngine(&mocks.MockEventSource{}, events, segments, rules, cache, gateway, logger, nil, 2)
}

func TestAnalysisEngine_SegmentUser(t *testing.T) {
	t.Run("No Events Assigns Default Without LLM", func(t *testing.T) {
		eventRepo := &mocks.MockEventRepository{}
		segmentRepo := &mocks.MockSegmentRepository{}
		cache := &mocks.MockCache{}
		gateway := &mocks.MockLLMGateway{Response: mlEngineerResponse}
		engine := newTestEngine(eventRepo, segmentRepo, &mocks.MockRulesRepository{}, cache, gateway)

		record, err := engine.SegmentUser(context.Background(), "u-empty")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if record.Segment != domain.SegmentCasual {
			t.Errorf("expected CASUAL, got %s", record.Segment)
		}
		if record.Confidence != 0.3 {
			t.Errorf("expected confidence 0.3, got %v", record.Confidence)
		}
		if gateway.Calls != 0 {
			t.Errorf("expected no LLM calls for a user with no events, got %d", gateway.Calls)
		}
		if _, ok := segmentRepo.Segments["u-empty"]; !ok {
			t.Error("expected default segment to be persisted")
		}
	})

	t.Run("Classification Persists And Caches", func(t *testing.T) {
		eventRepo := &mocks.MockEventRepository{
			UserEvents: map[string][]domain.Event{
				"u1": {{Name: "project_click", UserID: "u1", Timestamp: 1700000000}},
			},
		}
		segmentRepo := &mocks.MockSegmentRepository{}
		cache := &mocks.MockCache{}
		gateway := &mocks.MockLLMGateway{Response: mlEngineerResponse}
		engine := newTestEngine(eventRepo, segmentRepo, &mocks.MockRulesRepository{}, cache, gateway)

		record, err := engine.SegmentUser(context.Background(), "u1")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if record.Segment != domain.SegmentMLEngineer {
			t.Errorf("expected ML_ENGINEER, got %s", record.Segment)
		}
		if record.Confidence != 0.9 {
			t.Errorf("expected confidence 0.9, got %v", record.Confidence)
		}
		if got, want := record.ExpiresAt, record.AnalyzedAt.Add(24*time.Hour); !got.Equal(want) {
			t.Errorf("expected expires_at exactly analyzed_at + 24h, got %v want %v", got, want)
		}
		if record.EventSummary.TotalEvents != 1 {
			t.Errorf("expected event summary snapshot, got %+v", record.EventSummary)
		}
		persisted, ok := segmentRepo.Segments["u1"]
		if !ok {
			t.Fatal("expected segment row to be persisted")
		}
		if persisted.Segment != domain.SegmentMLEngineer {
			t.Errorf("persisted segment mismatch: %s", persisted.Segment)
		}
		if _, ok := cache.Store["segment:u1"]; !ok {
			t.Error("expected segment to be cached")
		}
		if cache.TTLs["segment:u1"] != 24*time.Hour {
			t.Errorf("expected 24h cache TTL, got %v", cache.TTLs["segment:u1"])
		}
	})

	t.Run("Cache Idempotence", func(t *testing.T) {
		eventRepo := &mocks.MockEventRepository{
			UserEvents: map[string][]domain.Event{
				"u1": {{Name: "project_click", UserID: "u1"}},
			},
		}
		cache := &mocks.MockCache{}
		gateway := &mocks.MockLLMGateway{Response: mlEngineerResponse}
		engine := newTestEngine(eventRepo, &mocks.MockSegmentRepository{}, &mocks.MockRulesRepository{}, cache, gateway)

		first, err := engine.SegmentUser(context.Background(), "u1")
		if err != nil {
			t.Fatalf("first call failed: %v", err)
		}
		second, err := engine.SegmentUser(context.Background(), "u1")
		if err != nil {
			t.Fatalf("second call failed: %v", err)
		}

		if gateway.Calls != 1 {
			t.Errorf("expected exactly 1 LLM call across both invocations, got %d", gateway.Calls)
		}
		if eventRepo.ListUserCalls != 1 {
			t.Errorf("expected exactly 1 event fetch across both invocations, got %d", eventRepo.ListUserCalls)
		}
		if first.Segment != second.Segment || first.Confidence != second.Confidence ||
			!first.AnalyzedAt.Equal(second.AnalyzedAt) || !first.ExpiresAt.Equal(second.ExpiresAt) {
			t.Errorf("expected identical results from cache: first=%+v second=%+v", first, second)
		}
	})

	t.Run("All Providers Fail Degrades To Default", func(t *testing.T) {
		eventRepo := &mocks.MockEventRepository{
			UserEvents: map[string][]domain.Event{
				"u2": {{Name: "section_view", UserID: "u2"}},
			},
		}
		gateway := &mocks.MockLLMGateway{Err: errors.New("all llm providers failed")}
		engine := newTestEngine(eventRepo, &mocks.MockSegmentRepository{}, &mocks.MockRulesRepository{}, &mocks.MockCache{}, gateway)

		record, err := engine.SegmentUser(context.Background(), "u2")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if record.Segment != domain.SegmentCasual {
			t.Errorf("expected CASUAL fallback, got %s", record.Segment)
		}
		if record.Confidence != 0.5 {
			t.Errorf("expected confidence 0.5, got %v", record.Confidence)
		}
		if !strings.Contains(strings.ToLower(record.Reasoning), "default") {
			t.Errorf("expected reasoning to mention default, got %q", record.Reasoning)
		}
		if !strings.Contains(record.Explanation.Why, "LLM provider unavailable") {
			t.Errorf("expected explanation to report provider unavailability, got %q", record.Explanation.Why)
		}
	})

	t.Run("Malformed LLM Output Degrades To Default", func(t *testing.T) {
		eventRepo := &mocks.MockEventRepository{
			UserEvents: map[string][]domain.Event{
				"u3": {{Name: "skill_hover", UserID: "u3"}},
			},
		}
		gateway := &mocks.MockLLMGateway{Response: "sorry, I cannot respond in JSON today"}
		engine := newTestEngine(eventRepo, &mocks.MockSegmentRepository{}, &mocks.MockRulesRepository{}, &mocks.MockCache{}, gateway)

		record, err := engine.SegmentUser(context.Background(), "u3")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if record.Segment != domain.SegmentCasual || record.Confidence != 0.5 {
			t.Errorf("expected CASUAL/0.5 fallback, got %s/%v", record.Segment, record.Confidence)
		}
	})

	t.Run("Unknown Segment Label Degrades To Default", func(t *testing.T) {
		eventRepo := &mocks.MockEventRepository{
			UserEvents: map[string][]domain.Event{
				"u4": {{Name: "project_click", UserID: "u4"}},
			},
		}
		gateway := &mocks.MockLLMGateway{Response: `{"segment":"WIZARD","confidence":0.8,"reasoning":"?"}`}
		engine := newTestEngine(eventRepo, &mocks.MockSegmentRepository{}, &mocks.MockRulesRepository{}, &mocks.MockCache{}, gateway)

		record, err := engine.SegmentUser(context.Background(), "u4")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if record.Segment != domain.SegmentCasual {
			t.Errorf("expected CASUAL fallback for unknown label, got %s", record.Segment)
		}
	})

	t.Run("Persistence Failure Propagates", func(t *testing.T) {
		eventRepo := &mocks.MockEventRepository{}
		segmentRepo := &mocks.MockSegmentRepository{UpsertErr: errors.New("connection refused")}
		engine := newTestEngine(eventRepo, segmentRepo, &mocks.MockRulesRepository{}, &mocks.MockCache{}, &mocks.MockLLMGateway{})

		if _, err := engine.SegmentUser(context.Background(), "u5"); err == nil {
			t.Fatal("expected persistence error to propagate")
		}
	})
}

func TestAnalysisEngine_GenerateRulesForSegment(t *testing.T) {
	const rulesJSON = `{
		"priority_sections": ["projects", "skills", "experience"],
		"featured_projects": ["ai_projects"],
		"highlight_skills": ["python", "tensorflow"],
		"reasoning": "ML engineers want depth",
		"xai_explanation": {"what": "w", "why": "y", "so_what": "s", "recommendation": "r"}
	}`

	t.Run("Successful Generation", func(t *testing.T) {
		eventRepo := &mocks.MockEventRepository{
			SegmentEvents: map[domain.Segment][]domain.Event{
				domain.SegmentMLEngineer: {{Name: "project_click", UserID: "u1"}},
			},
		}
		rulesRepo := &mocks.MockRulesRepository{}
		gateway := &mocks.MockLLMGateway{Response: rulesJSON}
		engine := newTestEngine(eventRepo, &mocks.MockSegmentRepository{}, rulesRepo, &mocks.MockCache{}, gateway)

		rules, err := engine.GenerateRulesForSegment(context.Background(), domain.SegmentMLEngineer)

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rules.PrioritySections) == 0 || rules.PrioritySections[0] != "projects" {
			t.Errorf("unexpected priority sections: %v", rules.PrioritySections)
		}
		if _, ok := rulesRepo.Rules[domain.SegmentMLEngineer]; !ok {
			t.Error("expected rules to be upserted")
		}
	})

	t.Run("Always Failing Gateway Yields Safe Defaults", func(t *testing.T) {
		rulesRepo := &mocks.MockRulesRepository{}
		gateway := &mocks.MockLLMGateway{Err: errors.New("provider down")}
		engine := newTestEngine(&mocks.MockEventRepository{}, &mocks.MockSegmentRepository{}, rulesRepo, &mocks.MockCache{}, gateway)

		rules, err := engine.GenerateRulesForSegment(context.Background(), domain.SegmentRecruiter)

		if err != nil {
			t.Fatalf("expected no error even with failing gateway, got %v", err)
		}
		want := []string{"projects", "skills"}
		if len(rules.PrioritySections) != len(want) || rules.PrioritySections[0] != want[0] || rules.PrioritySections[1] != want[1] {
			t.Errorf("expected safe default sections %v, got %v", want, rules.PrioritySections)
		}
		if len(rules.FeaturedProjects) != 0 || len(rules.HighlightSkills) != 0 {
			t.Error("expected empty project and skill lists in fallback")
		}
		if !strings.Contains(rules.Explanation.Why, "fallback to safe defaults") {
			t.Errorf("expected fallback explanation, got %q", rules.Explanation.Why)
		}
	})

	t.Run("Priority Sections Are Capped", func(t *testing.T) {
		oversized := `{"priority_sections":["a","b","c","d","e","f","g"],"featured_projects":[],"highlight_skills":[],"reasoning":"r"}`
		gateway := &mocks.MockLLMGateway{Response: oversized}
		engine := newTestEngine(&mocks.MockEventRepository{}, &mocks.MockSegmentRepository{}, &mocks.MockRulesRepository{}, &mocks.MockCache{}, gateway)

		rules, err := engine.GenerateRulesForSegment(context.Background(), domain.SegmentStudent)

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rules.PrioritySections) > maxPrioritySections {
			t.Errorf("expected at most %d sections, got %d", maxPrioritySections, len(rules.PrioritySections))
		}
	})

	t.Run("Invalid Segment Rejected", func(t *testing.T) {
		engine := newTestEngine(&mocks.MockEventRepository{}, &mocks.MockSegmentRepository{}, &mocks.MockRulesRepository{}, &mocks.MockCache{}, &mocks.MockLLMGateway{})

		if _, err := engine.GenerateRulesForSegment(context.Background(), "WIZARD"); err == nil {
			t.Fatal("expected error for unknown segment")
		}
	})
}

func TestAnalysisEngine_RunHourlyAnalysis(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("No Events Short-Circuits", func(t *testing.T) {
		eventRepo := &mocks.MockEventRepository{}
		rulesRepo := &mocks.MockRulesRepository{}
		gateway := &mocks.MockLLMGateway{Response: mlEngineerResponse}
		engine := newTestEngine(eventRepo, &mocks.MockSegmentRepository{}, rulesRepo, &mocks.MockCache{}, gateway)

		if err := engine.RunHourlyAnalysis(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if gateway.Calls != 0 {
			t.Errorf("expected no LLM calls without events, got %d", gateway.Calls)
		}
		if rulesRepo.UpsertCalls != 0 {
			t.Errorf("expected no rule churn without events, got %d upserts", rulesRepo.UpsertCalls)
		}
	})

	t.Run("Partial Failure Isolation", func(t *testing.T) {
		eventRepo := &mocks.MockEventRepository{
			RecentEvents: []domain.Event{
				{Name: "project_click", UserID: "u1"},
				{Name: "section_view", UserID: "u2"},
				{Name: "project_click", UserID: "u1"},
			},
			UserEvents: map[string][]domain.Event{
				"u1": {{Name: "project_click", UserID: "u1"}},
				"u2": {{Name: "section_view", UserID: "u2"}},
			},
		}
		segmentRepo := &mocks.MockSegmentRepository{
			UpsertErrFor: map[string]error{"u1": errors.New("injected failure")},
		}
		rulesRepo := &mocks.MockRulesRepository{}
		gateway := &mocks.MockLLMGateway{Response: mlEngineerResponse}
		engine := newTestEngine(eventRepo, segmentRepo, rulesRepo, &mocks.MockCache{}, gateway)

		if err := engine.RunHourlyAnalysis(context.Background()); err != nil {
			t.Fatalf("expected batch to survive a single user failure, got %v", err)
		}
		if _, ok := segmentRepo.Segments["u2"]; !ok {
			t.Error("expected u2 to be segmented despite u1 failing")
		}
		if _, ok := segmentRepo.Segments["u1"]; ok {
			t.Error("u1 upsert was injected to fail but a row was stored")
		}
	})

	t.Run("Rules Refreshed For All Segments", func(t *testing.T) {
		eventRepo := &mocks.MockEventRepository{
			RecentEvents: []domain.Event{{Name: "project_click", UserID: "u1"}},
			UserEvents: map[string][]domain.Event{
				"u1": {{Name: "project_click", UserID: "u1"}},
			},
		}
		rulesRepo := &mocks.MockRulesRepository{}
		gateway := &mocks.MockLLMGateway{Response: mlEngineerResponse}
		engine := newTestEngine(eventRepo, &mocks.MockSegmentRepository{}, rulesRepo, &mocks.MockCache{}, gateway)

		if err := engine.RunHourlyAnalysis(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got, want := rulesRepo.UpsertCalls, len(domain.AllSegments()); got != want {
			t.Errorf("expected rules refreshed for all %d segments, got %d upserts", want, got)
		}
	})

	t.Run("Source Events Are Persisted Before Analysis", func(t *testing.T) {
		source := &mocks.MockEventSource{
			Events: []domain.Event{{ExternalID: "ext-1", Name: "deep_read", UserID: "u9"}},
		}
		eventRepo := &mocks.MockEventRepository{}
		engine := NewAnalysisEngine(source, eventRepo, &mocks.MockSegmentRepository{}, &mocks.MockRulesRepository{}, &mocks.MockCache{}, &mocks.MockLLMGateway{Response: mlEngineerResponse}, logger, nil, 2)

		if err := engine.RunHourlyAnalysis(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if source.Calls != 1 {
			t.Errorf("expected the event source to be polled once, got %d", source.Calls)
		}
		if len(eventRepo.SavedEvents) != 1 || eventRepo.SavedEvents[0].ExternalID != "ext-1" {
			t.Errorf("expected fetched events to be persisted, got %+v", eventRepo.SavedEvents)
		}
	})
}
