package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// EventRepository defines persistence for the append-only event log.
// This abstracts away the specific implementation (PostgreSQL).
type EventRepository interface {
	// SaveEvents stores a batch of events idempotently, keyed on ExternalID.
	// Re-delivered events are silently dropped.
	SaveEvents(ctx context.Context, events []Event) error

	// ListRecentEvents returns all events received after the given instant.
	ListRecentEvents(ctx context.Context, since time.Time) ([]Event, error)

	// ListEventsForUser returns the most recent events for a user, newest first.
	ListEventsForUser(ctx context.Context, userID string, limit int) ([]Event, error)

	// ListEventsForSegment returns events belonging to users currently
	// classified into the given segment.
	ListEventsForSegment(ctx context.Context, segment Segment, limit int) ([]Event, error)
}

// SegmentRepository defines persistence for user classifications.
type SegmentRepository interface {
	// UpsertSegment inserts or replaces the classification row for a user.
	UpsertSegment(ctx context.Context, segment UserSegment) error

	// GetSegment returns the current classification for a user, or ErrNotFound.
	GetSegment(ctx context.Context, userID string) (UserSegment, error)
}

// RulesRepository defines persistence for per-segment personalization rules.
type RulesRepository interface {
	// UpsertRules inserts or replaces the ruleset for a segment.
	UpsertRules(ctx context.Context, rules PersonalizationRules) error

	// GetRules returns the active ruleset for a segment, or ErrNotFound.
	GetRules(ctx context.Context, segment Segment) (PersonalizationRules, error)
}

// Cache is a best-effort key-value store. It is never authoritative:
// implementations must swallow connectivity and serialization errors and
// return neutral values instead of propagating them.
type Cache interface {
	// Get returns the raw cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a JSON-serializable value with a TTL. A zero TTL means no
	// expiration. Returns false when the write did not happen.
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool

	// Delete removes a key. Returns false when nothing was deleted.
	Delete(ctx context.Context, key string) bool
}

// EventSource is the external analytics provider. It degrades gracefully:
// transient fetch failures yield an empty slice, never an error.
type EventSource interface {
	FetchRecentEvents(ctx context.Context, since time.Time) []Event
}

// LLMGateway produces free-form text from a prompt and a JSON-serializable
// context object, falling back across configured providers. It returns an
// error only when every provider has failed.
type LLMGateway interface {
	GenerateWithFallback(ctx context.Context, prompt string, contextData any) (string, error)
}
