package domain

import "time"

// Event represents a single visitor behavior event as recorded by the
// analytics pipeline. Events are append-only; the analysis engine never
// updates or deletes them.
type Event struct {
	ID         int64          `json:"id,omitempty"`
	ExternalID string         `json:"external_id"`
	Name       string         `json:"name"`
	UserID     string         `json:"user_id"`
	Params     map[string]any `json:"params,omitempty"`
	Timestamp  int64          `json:"timestamp"`
	ReceivedAt time.Time      `json:"received_at"`
}

// EventSummary is the aggregate view of a set of events that is handed to
// the LLM instead of the raw event log.
type EventSummary struct {
	TotalEvents       int            `json:"total_events"`
	UniqueEventTypes  []string       `json:"unique_event_types"`
	EventDistribution map[string]int `json:"event_distribution"`
}
