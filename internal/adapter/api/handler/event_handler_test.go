package handler

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/persona-engine/internal/domain/mocks"
)

func TestEventHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		maxSize        int64
		saveErr        error
		expectedStatus int
		expectSaved    int
	}{
		{
			name:           "Valid Event",
			body:           `{"name": "view_project", "user_id": "u1", "params": {"project": "pipeline"}}`,
			maxSize:        1024,
			expectedStatus: http.StatusAccepted,
			expectSaved:    1,
		},
		{
			name:           "Missing Name",
			body:           `{"user_id": "u1"}`,
			maxSize:        1024,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Missing User ID",
			body:           `{"name": "view_project"}`,
			maxSize:        1024,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Bad JSON",
			body:           `{"name": "view_project"`,
			maxSize:        1024,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Unknown Field Rejected",
			body:           `{"name": "view_project", "user_id": "u1", "bogus": true}`,
			maxSize:        1024,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Payload Too Large",
			body:           `{"name": "view_project", "user_id": "u1", "params": {"filler": "this payload exceeds the limit"}}`,
			maxSize:        32,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Repository Error",
			body:           `{"name": "view_project", "user_id": "u1"}`,
			maxSize:        1024,
			saveErr:        errors.New("connection refused"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockEventRepository{SaveErr: tt.saveErr}
			h := NewEventHandler(repo, logger, tt.maxSize)

			req := httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			if status := rr.Code; status != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", status, tt.expectedStatus)
			}
			if len(repo.SavedEvents) != tt.expectSaved {
				t.Errorf("expected %d saved events, got %d", tt.expectSaved, len(repo.SavedEvents))
			}
		})
	}
}

func TestEventHandlerAssignsDefaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &mocks.MockEventRepository{}
	h := NewEventHandler(repo, logger, 1024)

	req := httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewBufferString(`{"name": "page_view", "user_id": "u1"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rr.Code)
	}
	if len(repo.SavedEvents) != 1 {
		t.Fatalf("expected 1 saved event, got %d", len(repo.SavedEvents))
	}
	saved := repo.SavedEvents[0]
	if saved.ExternalID == "" {
		t.Error("expected a generated external ID")
	}
	if saved.Timestamp == 0 {
		t.Error("expected a default timestamp")
	}
	if saved.ReceivedAt.IsZero() {
		t.Error("expected received_at to be stamped")
	}
}
