package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AnalysisMetrics holds all Prometheus metrics for the analysis pipeline.
type AnalysisMetrics struct {
	BatchRunsTotal      *prometheus.CounterVec
	SegmentationsTotal  *prometheus.CounterVec
	RuleGensTotal       *prometheus.CounterVec
	LLMCallsTotal       *prometheus.CounterVec
	LLMExhaustionsTotal prometheus.Counter
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	EventsIngestedTotal prometheus.Counter
}

// NewAnalysisMetrics initializes and registers the Prometheus metrics.
func NewAnalysisMetrics() *AnalysisMetrics {
	return &AnalysisMetrics{
		BatchRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "persona_engine",
			Subsystem: "analysis",
			Name:      "batch_runs_total",
			Help:      "Total number of batch analysis runs by status.",
		}, []string{"status"}), // status: completed, empty, error
		SegmentationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "persona_engine",
			Subsystem: "analysis",
			Name:      "segmentations_total",
			Help:      "Total number of user segmentations by outcome.",
		}, []string{"outcome"}), // outcome: cached, classified, no_events, fallback, error
		RuleGensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "persona_engine",
			Subsystem: "analysis",
			Name:      "rule_generations_total",
			Help:      "Total number of per-segment rule generations by outcome.",
		}, []string{"outcome"}), // outcome: generated, fallback, error
		LLMCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "persona_engine",
			Subsystem: "llm",
			Name:      "provider_calls_total",
			Help:      "Total number of LLM provider calls by provider and status.",
		}, []string{"provider", "status"}),
		LLMExhaustionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "persona_engine",
			Subsystem: "llm",
			Name:      "provider_exhaustions_total",
			Help:      "Total number of calls where every provider failed.",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "persona_engine",
			Subsystem: "cache",
			Name:      "segment_cache_hits_total",
			Help:      "Total number of segment cache hits.",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "persona_engine",
			Subsystem: "cache",
			Name:      "segment_cache_misses_total",
			Help:      "Total number of segment cache misses.",
		}),
		EventsIngestedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "persona_engine",
			Subsystem: "events",
			Name:      "ingested_total",
			Help:      "Total number of behavior events persisted.",
		}),
	}
}
