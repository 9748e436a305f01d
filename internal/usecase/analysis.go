package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/persona-engine/internal/adapter/llm"
	"github.com/user/persona-engine/internal/adapter/metrics"
	"github.com/user/persona-engine/internal/domain"
)

const (
	// segmentTTL governs both re-analysis eligibility and the cache TTL.
	segmentTTL = 24 * time.Hour

	// analysisWindow is the trailing window the batch job looks at.
	analysisWindow = 1 * time.Hour

	maxUserEvents       = 50
	maxSegmentEvents    = 100
	maxPrioritySections = 5

	defaultConcurrency = 4
)

const segmentCacheKeyPrefix = "segment:"

// AnalysisEngine owns the business rules of the pipeline: event aggregation,
// segmentation, rule generation, and the recurring batch job. All I/O goes
// through the injected interfaces so the engine is testable without live
// infrastructure.
type AnalysisEngine struct {
	source      domain.EventSource
	events      domain.EventRepository
	segments    domain.SegmentRepository
	rules       domain.RulesRepository
	cache       domain.Cache
	gateway     domain.LLMGateway
	logger      *slog.Logger
	metrics     *metrics.AnalysisMetrics
	concurrency int
}

// NewAnalysisEngine creates a new AnalysisEngine. concurrency bounds the
// per-user parallelism of the batch job; values below 1 fall back to the
// default.
func NewAnalysisEngine(
	source domain.EventSource,
	events domain.EventRepository,
	segments domain.SegmentRepository,
	rules domain.RulesRepository,
	cache domain.Cache,
	gateway domain.LLMGateway,
	logger *slog.Logger,
	m *metrics.AnalysisMetrics,
	concurrency int,
) *AnalysisEngine {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &AnalysisEngine{
		source:      source,
		events:      events,
		segments:    segments,
		rules:       rules,
		cache:       cache,
		gateway:     gateway,
		logger:      logger.With("component", "analysis_engine"),
		metrics:     m,
		concurrency: concurrency,
	}
}

// segmentResponse mirrors the JSON the classification prompt asks for.
type segmentResponse struct {
	Segment     string             `json:"segment"`
	Confidence  float64            `json:"confidence"`
	Reasoning   string             `json:"reasoning"`
	Explanation domain.Explanation `json:"xai_explanation"`
}

// rulesResponse mirrors the JSON the rule generation prompt asks for.
type rulesResponse struct {
	PrioritySections []string           `json:"priority_sections"`
	FeaturedProjects []string           `json:"featured_projects"`
	HighlightSkills  []string           `json:"highlight_skills"`
	Reasoning        string             `json:"reasoning"`
	Explanation      domain.Explanation `json:"xai_explanation"`
}

// SegmentUser classifies a user into a segment. It never fails because of
// the LLM: generation and parse errors degrade to a CASUAL default. Only
// persistence failures are returned, since silently losing the write would
// break the latest-classification-wins invariant.
func (e *AnalysisEngine) SegmentUser(ctx context.Context, userID string) (domain.UserSegment, error) {
	cacheKey := segmentCacheKeyPrefix + userID

	if payload, ok := e.cache.Get(ctx, cacheKey); ok {
		var cached domain.UserSegment
		if err := json.Unmarshal(payload, &cached); err == nil {
			e.logger.Info("segment cache hit", "user_id", userID)
			e.countSegmentation("cached")
			if e.metrics != nil {
				e.metrics.CacheHits.Inc()
			}
			return cached, nil
		}
		e.logger.Warn("discarding malformed cached segment", "user_id", userID)
	}
	if e.metrics != nil {
		e.metrics.CacheMisses.Inc()
	}

	events, err := e.events.ListEventsForUser(ctx, userID, maxUserEvents)
	if err != nil {
		return domain.UserSegment{}, fmt.Errorf("failed to list events for user %s: %w", userID, err)
	}

	summary := aggregateEvents(events)
	now := time.Now().UTC()

	record := domain.UserSegment{
		UserID:       userID,
		EventSummary: summary,
		AnalyzedAt:   now,
		ExpiresAt:    now.Add(segmentTTL),
	}

	if len(events) == 0 {
		// A user with no signal never reaches the LLM.
		e.logger.Warn("no events found for user, assigning default segment", "user_id", userID)
		record.Segment = domain.SegmentCasual
		record.Confidence = 0.3
		record.Reasoning = "No events found"
		e.countSegmentation("no_events")
	} else {
		resp, err := e.classify(ctx, summary)
		if err != nil {
			e.logger.Error("classification failed, using default segment", "user_id", userID, "error", err)
			record.Segment = domain.SegmentCasual
			record.Confidence = 0.5
			record.Reasoning = "Default due to error"
			record.Explanation = domain.Explanation{
				What:           "Error during analysis",
				Why:            "LLM provider unavailable or data malformed",
				SoWhat:         "Cannot determine user intent reliably",
				Recommendation: "Show default content, no personalization",
			}
			e.countSegmentation("fallback")
		} else {
			record.Segment = domain.Segment(resp.Segment)
			record.Confidence = resp.Confidence
			record.Reasoning = resp.Reasoning
			record.Explanation = resp.Explanation
			e.logger.Info("user classified", "user_id", userID, "segment", record.Segment, "confidence", record.Confidence)
			e.countSegmentation("classified")
		}
	}

	if err := e.segments.UpsertSegment(ctx, record); err != nil {
		return domain.UserSegment{}, fmt.Errorf("failed to persist segment for user %s: %w", userID, err)
	}

	// Best effort: a cache write failure degrades to store reads next time.
	e.cache.Set(ctx, cacheKey, record, segmentTTL)

	return record, nil
}

func (e *AnalysisEngine) classify(ctx context.Context, summary domain.EventSummary) (segmentResponse, error) {
	raw, err := e.gateway.GenerateWithFallback(ctx, segmentationPrompt, summary)
	if err != nil {
		return segmentResponse{}, err
	}

	payload, err := llm.ExtractJSON(raw)
	if err != nil {
		return segmentResponse{}, err
	}

	var resp segmentResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return segmentResponse{}, fmt.Errorf("failed to decode classification: %w", err)
	}
	if !domain.Segment(resp.Segment).Valid() {
		return segmentResponse{}, fmt.Errorf("classification returned unknown segment %q", resp.Segment)
	}
	return resp, nil
}

// GenerateRulesForSegment produces and persists the active ruleset for a
// segment. LLM and parse failures degrade to safe defaults; only invalid
// input and persistence failures are returned.
func (e *AnalysisEngine) GenerateRulesForSegment(ctx context.Context, segment domain.Segment) (domain.PersonalizationRules, error) {
	if !segment.Valid() {
		return domain.PersonalizationRules{}, fmt.Errorf("unknown segment %q", segment)
	}

	events, err := e.events.ListEventsForSegment(ctx, segment, maxSegmentEvents)
	if err != nil {
		// Aggregation input is non-critical; generate from an empty summary.
		e.logger.Warn("failed to list events for segment, using empty summary", "segment", segment, "error", err)
		events = nil
	}
	summary := aggregateEvents(events)

	record := domain.PersonalizationRules{
		Segment:   segment,
		CreatedAt: time.Now().UTC(),
	}

	resp, err := e.generateRules(ctx, segment, summary)
	if err != nil {
		e.logger.Error("rule generation failed, using safe defaults", "segment", segment, "error", err)
		record.PrioritySections = []string{"projects", "skills"}
		record.FeaturedProjects = []string{}
		record.HighlightSkills = []string{}
		record.Reasoning = "Default rules due to error"
		record.Explanation = domain.Explanation{
			What:           "Applying default prioritization",
			Why:            "LLM generation failed, fallback to safe defaults",
			SoWhat:         "No personalization applied, showing standard content",
			Recommendation: "Monitor LLM provider health and retry",
		}
		e.countRuleGen("fallback")
	} else {
		record.PrioritySections = capSections(resp.PrioritySections)
		record.FeaturedProjects = resp.FeaturedProjects
		record.HighlightSkills = resp.HighlightSkills
		record.Reasoning = resp.Reasoning
		record.Explanation = resp.Explanation
		e.logger.Info("rules generated", "segment", segment)
		e.countRuleGen("generated")
	}

	if err := e.rules.UpsertRules(ctx, record); err != nil {
		return domain.PersonalizationRules{}, fmt.Errorf("failed to persist rules for segment %s: %w", segment, err)
	}

	return record, nil
}

func (e *AnalysisEngine) generateRules(ctx context.Context, segment domain.Segment, summary domain.EventSummary) (rulesResponse, error) {
	prompt := fmt.Sprintf(rulesPromptTemplate, segment)
	raw, err := e.gateway.GenerateWithFallback(ctx, prompt, summary)
	if err != nil {
		return rulesResponse{}, err
	}

	payload, err := llm.ExtractJSON(raw)
	if err != nil {
		return rulesResponse{}, err
	}

	var resp rulesResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return rulesResponse{}, fmt.Errorf("failed to decode rules: %w", err)
	}
	return resp, nil
}

// RunHourlyAnalysis is the batch job the scheduler fires once per interval.
// It re-segments every user active in the trailing window and refreshes the
// rules of all five segments. A single user's or segment's failure never
// aborts the rest of the batch.
func (e *AnalysisEngine) RunHourlyAnalysis(ctx context.Context) error {
	e.logger.Info("starting batch analysis job")
	since := time.Now().UTC().Add(-analysisWindow)

	// Pull fresh events from the external source first. The source degrades
	// to an empty slice on failure, and SaveEvents is idempotent, so
	// re-delivery across ticks is harmless.
	if fetched := e.source.FetchRecentEvents(ctx, since); len(fetched) > 0 {
		if err := e.events.SaveEvents(ctx, fetched); err != nil {
			e.logger.Error("failed to persist fetched events, analyzing stored events only", "error", err)
		} else {
			e.logger.Info("persisted events from source", "count", len(fetched))
			if e.metrics != nil {
				e.metrics.EventsIngestedTotal.Add(float64(len(fetched)))
			}
		}
	}

	events, err := e.events.ListRecentEvents(ctx, since)
	if err != nil {
		e.countBatch("error")
		return fmt.Errorf("failed to list recent events: %w", err)
	}
	if len(events) == 0 {
		e.logger.Info("no new events to analyze")
		e.countBatch("empty")
		return nil
	}

	users := distinctUsers(events)
	e.logger.Info("analyzing active users", "events", len(events), "users", len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, userID := range users {
		g.Go(func() error {
			if _, err := e.SegmentUser(gctx, userID); err != nil {
				// Partial-failure isolation: log and move on.
				e.logger.Error("failed to segment user", "user_id", userID, "error", err)
				e.countSegmentation("error")
			}
			return nil
		})
	}
	_ = g.Wait()

	// Always refresh all five segments, not just the ones touched this hour.
	for _, segment := range domain.AllSegments() {
		if _, err := e.GenerateRulesForSegment(ctx, segment); err != nil {
			e.logger.Error("failed to generate rules for segment", "segment", segment, "error", err)
			e.countRuleGen("error")
		}
	}

	e.logger.Info("batch analysis job completed")
	e.countBatch("completed")
	return nil
}

func (e *AnalysisEngine) countBatch(status string) {
	if e.metrics != nil {
		e.metrics.BatchRunsTotal.WithLabelValues(status).Inc()
	}
}

func (e *AnalysisEngine) countSegmentation(outcome string) {
	if e.metrics != nil {
		e.metrics.SegmentationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (e *AnalysisEngine) countRuleGen(outcome string) {
	if e.metrics != nil {
		e.metrics.RuleGensTotal.WithLabelValues(outcome).Inc()
	}
}

// aggregateEvents reduces an event list to the summary handed to the LLM.
// Raw events never leave the engine.
func aggregateEvents(events []domain.Event) domain.EventSummary {
	distribution := make(map[string]int, len(events))
	for _, event := range events {
		distribution[event.Name]++
	}

	names := make([]string, 0, len(distribution))
	for name := range distribution {
		names = append(names, name)
	}
	sort.Strings(names)

	return domain.EventSummary{
		TotalEvents:       len(events),
		UniqueEventTypes:  names,
		EventDistribution: distribution,
	}
}

func distinctUsers(events []domain.Event) []string {
	seen := make(map[string]struct{}, len(events))
	users := make([]string, 0, len(events))
	for _, event := range events {
		if _, ok := seen[event.UserID]; ok {
			continue
		}
		seen[event.UserID] = struct{}{}
		users = append(users, event.UserID)
	}
	return users
}

func capSections(sections []string) []string {
	if len(sections) > maxPrioritySections {
		return sections[:maxPrioritySections]
	}
	return sections
}
