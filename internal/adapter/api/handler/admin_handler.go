package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/persona-engine/internal/domain"
	"github.com/user/persona-engine/internal/usecase"
)

// AdminHandler exposes operator endpoints: manual analysis trigger, rule
// overrides, and segment inspection.
type AdminHandler struct {
	engine       *usecase.AnalysisEngine
	logger       *slog.Logger
	batchTimeout time.Duration
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(engine *usecase.AnalysisEngine, batchTimeout time.Duration, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		engine:       engine,
		logger:       logger,
		batchTimeout: batchTimeout,
	}
}

// TriggerAnalysis starts a batch analysis run in the background and returns
// immediately. The run is detached from the request context so a closed
// connection does not cancel it.
func (h *AdminHandler) TriggerAnalysis(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.batchTimeout)
		defer cancel()
		if err := h.engine.RunHourlyAnalysis(ctx); err != nil {
			h.logger.Error("manually triggered analysis failed", "error", err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "triggered"})
}

// UpsertRule applies an operator-supplied ruleset for the segment in the path.
func (h *AdminHandler) UpsertRule(w http.ResponseWriter, r *http.Request) {
	segment := domain.Segment(r.PathValue("segment"))

	var rules domain.PersonalizationRules
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	rules.Segment = segment

	saved, err := h.engine.CreateOrUpdateRule(r.Context(), rules)
	if err != nil {
		if !segment.Valid() {
			http.Error(w, "unknown segment", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to apply rule override", "segment", segment, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(saved); err != nil {
		h.logger.Error("failed to encode rule override response", "error", err)
	}
}

// GetSegment returns the current (or freshly computed) classification for a user.
func (h *AdminHandler) GetSegment(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	segment, err := h.engine.SegmentUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to segment user", "user_id", userID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(segment); err != nil {
		h.logger.Error("failed to encode segment response", "error", err)
	}
}
