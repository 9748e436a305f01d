package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/persona-engine/internal/adapter/metrics"
)

// ErrAllProvidersFailed is returned when every configured provider has been
// tried and none produced a response.
var ErrAllProvidersFailed = errors.New("all llm providers failed")

// Provider is the single capability every text-generation backend must
// satisfy. Concrete providers differ only in endpoint, authentication, and
// request shaping.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Generate transforms a prompt plus a JSON-serializable context object
	// into raw model output text.
	Generate(ctx context.Context, prompt string, contextData any) (string, error)
}

// Gateway wraps an ordered list of providers behind a uniform generate
// contract. Each call makes a single attempt per provider, in priority
// order; there is no per-provider retry with backoff. Transient failures
// are expected to be corrected on the next scheduled analysis cycle.
type Gateway struct {
	providers   []Provider
	limiter     *rate.Limiter
	callTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.AnalysisMetrics
	lastSuccess atomic.Int32
}

// NewGateway creates a Gateway over the given providers. rps bounds the
// aggregate request rate across all providers (0 disables limiting);
// callTimeout bounds each individual provider call (0 disables the bound).
func NewGateway(providers []Provider, rps float64, callTimeout time.Duration, logger *slog.Logger, m *metrics.AnalysisMetrics) *Gateway {
	g := &Gateway{
		providers:   providers,
		callTimeout: callTimeout,
		logger:      logger.With("component", "llm_gateway"),
		metrics:     m,
	}
	if rps > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	g.lastSuccess.Store(-1)
	return g
}

// GenerateWithFallback iterates the providers in priority order and returns
// the first successful response. Provider failures are logged and skipped.
// When every provider fails, the returned error wraps ErrAllProvidersFailed.
func (g *Gateway) GenerateWithFallback(ctx context.Context, prompt string, contextData any) (string, error) {
	var lastErr error

	for i, provider := range g.providers {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if g.callTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.callTimeout)
		}

		g.logger.Info("attempting generation", "provider", provider.Name(), "priority", i)
		result, err := provider.Generate(callCtx, prompt, contextData)
		if cancel != nil {
			cancel()
		}

		if err != nil {
			g.logger.Warn("provider failed, trying next", "provider", provider.Name(), "error", err)
			if g.metrics != nil {
				g.metrics.LLMCallsTotal.WithLabelValues(provider.Name(), "error").Inc()
			}
			lastErr = err
			continue
		}

		if g.metrics != nil {
			g.metrics.LLMCallsTotal.WithLabelValues(provider.Name(), "success").Inc()
		}
		// Informational only: no routing decision is made from this index.
		g.lastSuccess.Store(int32(i))
		return result, nil
	}

	g.logger.Error("all providers exhausted", "last_error", lastErr)
	if g.metrics != nil {
		g.metrics.LLMExhaustionsTotal.Inc()
	}
	return "", fmt.Errorf("%w: last error: %v", ErrAllProvidersFailed, lastErr)
}

// LastSuccessfulProvider returns the index of the provider that served the
// most recent successful call, or -1 when none has succeeded yet.
func (g *Gateway) LastSuccessfulProvider() int {
	return int(g.lastSuccess.Load())
}
