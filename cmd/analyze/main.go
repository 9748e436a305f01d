// Command analyze runs a single batch analysis cycle and exits. It is meant
// for operators and cron-less deployments; the server binary runs the same
// job on a schedule.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/user/persona-engine/internal/adapter/eventsource"
	"github.com/user/persona-engine/internal/adapter/llm"
	"github.com/user/persona-engine/internal/adapter/repository/postgres"
	"github.com/user/persona-engine/internal/adapter/repository/rediscache"
	"github.com/user/persona-engine/internal/pkg/config"
	"github.com/user/persona-engine/internal/pkg/logger"
	"github.com/user/persona-engine/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	eventRepo := postgres.NewEventRepository(db, logger)
	segmentRepo := postgres.NewSegmentRepository(db, logger)
	rulesRepo := postgres.NewRulesRepository(db, logger)
	segmentCache := rediscache.New(redisClient, logger)

	providers := []llm.Provider{
		llm.NewGeminiProvider(cfg.GeminiAPIKey, "", nil, logger),
		llm.NewDeepSeekProvider(cfg.DeepSeekAPIKey, "", nil, logger),
	}
	gateway := llm.NewGateway(providers, cfg.LLMRequestsPerSec, cfg.LLMCallTimeout, logger, nil)

	source := eventsource.NewGA4Client(cfg.GA4BaseURL, cfg.GA4PropertyID, cfg.GA4AccessToken, nil, logger)

	engine := usecase.NewAnalysisEngine(source, eventRepo, segmentRepo, rulesRepo, segmentCache, gateway, logger, nil, cfg.AnalysisConcurrency)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BatchTimeout)
	defer cancel()

	if err := engine.RunHourlyAnalysis(ctx); err != nil {
		logger.Error("batch analysis failed", "error", err)
		os.Exit(1)
	}

	logger.Info("batch analysis completed")
}
