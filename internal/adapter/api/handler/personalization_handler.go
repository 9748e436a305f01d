package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/user/persona-engine/internal/usecase"
)

// PersonalizationHandler serves the public read path. It only reads
// persisted rules; classification never runs synchronously here because
// it must not block a page render.
type PersonalizationHandler struct {
	engine *usecase.AnalysisEngine
	logger *slog.Logger
}

// NewPersonalizationHandler creates a new PersonalizationHandler.
func NewPersonalizationHandler(engine *usecase.AnalysisEngine, logger *slog.Logger) *PersonalizationHandler {
	return &PersonalizationHandler{engine: engine, logger: logger}
}

// ServeHTTP returns the active rules for the requesting user's segment.
func (h *PersonalizationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	rules, err := h.engine.GetPersonalization(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to resolve personalization", "user_id", userID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rules); err != nil {
		h.logger.Error("failed to encode personalization response", "error", err)
	}
}
