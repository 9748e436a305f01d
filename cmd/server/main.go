package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/user/persona-engine/internal/adapter/api"
	"github.com/user/persona-engine/internal/adapter/api/middleware"
	"github.com/user/persona-engine/internal/adapter/eventsource"
	"github.com/user/persona-engine/internal/adapter/llm"
	"github.com/user/persona-engine/internal/adapter/metrics"
	"github.com/user/persona-engine/internal/adapter/repository/postgres"
	"github.com/user/persona-engine/internal/adapter/repository/rediscache"
	"github.com/user/persona-engine/internal/adapter/scheduler"
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

	m := metrics.NewAnalysisMetrics()

	// --- Metrics Server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database and Redis Connections ---
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

	// --- Repositories and Adapters ---
	eventRepo := postgres.NewEventRepository(db, logger)
	segmentRepo := postgres.NewSegmentRepository(db, logger)
	rulesRepo := postgres.NewRulesRepository(db, logger)
	segmentCache := rediscache.New(redisClient, logger)

	providers := []llm.Provider{
		llm.NewGeminiProvider(cfg.GeminiAPIKey, "", nil, logger),
		llm.NewDeepSeekProvider(cfg.DeepSeekAPIKey, "", nil, logger),
	}
	gateway := llm.NewGateway(providers, cfg.LLMRequestsPerSec, cfg.LLMCallTimeout, logger, m)

	source := eventsource.NewGA4Client(cfg.GA4BaseURL, cfg.GA4PropertyID, cfg.GA4AccessToken, nil, logger)

	// --- Analysis Engine and Scheduler ---
	engine := usecase.NewAnalysisEngine(source, eventRepo, segmentRepo, rulesRepo, segmentCache, gateway, logger, m, cfg.AnalysisConcurrency)

	batchScheduler := scheduler.New(engine, cfg.AnalysisInterval, cfg.BatchTimeout, logger)
	if err := batchScheduler.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer batchScheduler.Stop()

	// --- API Server ---
	router := api.NewRouter(cfg, logger, eventRepo, engine)
	apiServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      middleware.Logging(logger)(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting api server", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}

	logger.Info("shut down gracefully")
}
