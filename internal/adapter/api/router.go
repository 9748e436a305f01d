package api

import (
	"log/slog"
	"net/http"

	"github.com/user/persona-engine/internal/adapter/api/handler"
	"github.com/user/persona-engine/internal/adapter/api/middleware"
	"github.com/user/persona-engine/internal/domain"
	"github.com/user/persona-engine/internal/pkg/config"
	"github.com/user/persona-engine/internal/usecase"
)

// NewRouter creates and configures the main HTTP router for the service.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	events domain.EventRepository,
	engine *usecase.AnalysisEngine,
) http.Handler {
	mux := http.NewServeMux()

	eventHandler := handler.NewEventHandler(events, logger, cfg.MaxEventSize)
	personalizationHandler := handler.NewPersonalizationHandler(engine, logger)
	adminHandler := handler.NewAdminHandler(engine, cfg.BatchTimeout, logger)

	adminAuth := middleware.AdminAuth(cfg.AdminToken, logger)

	// Public routes
	mux.Handle("POST /api/events", eventHandler)
	mux.Handle("GET /api/personalization", personalizationHandler)

	// Admin routes
	mux.Handle("POST /api/admin/trigger-analysis", adminAuth(http.HandlerFunc(adminHandler.TriggerAnalysis)))
	mux.Handle("PUT /api/admin/rules/{segment}", adminAuth(http.HandlerFunc(adminHandler.UpsertRule)))
	mux.Handle("GET /api/admin/segments/{user_id}", adminAuth(http.HandlerFunc(adminHandler.GetSegment)))

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}
