package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/user/persona-engine/internal/domain"
)

// EventHandler accepts fallback behavior events from the site itself, for
// visitors and deployments where the external analytics provider is not
// available.
type EventHandler struct {
	events       domain.EventRepository
	logger       *slog.Logger
	maxEventSize int64
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(events domain.EventRepository, logger *slog.Logger, maxEventSize int64) *EventHandler {
	return &EventHandler{
		events:       events,
		logger:       logger,
		maxEventSize: maxEventSize,
	}
}

// ServeHTTP processes a single tracked event.
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxEventSize)

	var event domain.Event
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&event); err != nil {
		h.logger.Warn("rejected malformed event payload", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if event.Name == "" || event.UserID == "" {
		http.Error(w, "name and user_id are required", http.StatusBadRequest)
		return
	}

	event.ReceivedAt = time.Now().UTC()
	if event.ExternalID == "" {
		event.ExternalID = uuid.NewString()
	}
	if event.Timestamp == 0 {
		event.Timestamp = event.ReceivedAt.Unix()
	}

	if err := h.events.SaveEvents(r.Context(), []domain.Event{event}); err != nil {
		h.logger.Error("failed to persist tracked event", "error", err, "external_id", event.ExternalID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
