package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/user/persona-engine/internal/domain"
)

// MockEventRepository is a mock implementation of domain.EventRepository for testing.
type MockEventRepository struct {
	mu            sync.Mutex
	SavedEvents   []domain.Event
	RecentEvents  []domain.Event
	UserEvents    map[string][]domain.Event
	SegmentEvents map[domain.Segment][]domain.Event
	SaveErr       error
	ListErr       error
	ListUserCalls int
}

func (m *MockEventRepository) SaveEvents(ctx context.Context, events []domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.SavedEvents = append(m.SavedEvents, events...)
	return nil
}

func (m *MockEventRepository) ListRecentEvents(ctx context.Context, since time.Time) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.RecentEvents, nil
}

func (m *MockEventRepository) ListEventsForUser(ctx context.Context, userID string, limit int) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListUserCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.UserEvents[userID], nil
}

func (m *MockEventRepository) ListEventsForSegment(ctx context.Context, segment domain.Segment, limit int) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.SegmentEvents[segment], nil
}

// MockSegmentRepository is a mock implementation of domain.SegmentRepository.
// UpsertErrFor injects a failure for a specific user to exercise partial-failure
// isolation in the batch job.
type MockSegmentRepository struct {
	mu           sync.Mutex
	Segments     map[string]domain.UserSegment
	UpsertErr    error
	UpsertErrFor map[string]error
	GetErr       error
}

func (m *MockSegmentRepository) UpsertSegment(ctx context.Context, segment domain.UserSegment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	if err, ok := m.UpsertErrFor[segment.UserID]; ok {
		return err
	}
	if m.Segments == nil {
		m.Segments = make(map[string]domain.UserSegment)
	}
	m.Segments[segment.UserID] = segment
	return nil
}

func (m *MockSegmentRepository) GetSegment(ctx context.Context, userID string) (domain.UserSegment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return domain.UserSegment{}, m.GetErr
	}
	segment, ok := m.Segments[userID]
	if !ok {
		return domain.UserSegment{}, domain.ErrNotFound
	}
	return segment, nil
}

// MockRulesRepository is a mock implementation of domain.RulesRepository.
type MockRulesRepository struct {
	mu           sync.Mutex
	Rules        map[domain.Segment]domain.PersonalizationRules
	UpsertErr    error
	GetErr       error
	UpsertCalls  int
	ErrSegments  map[domain.Segment]error
}

func (m *MockRulesRepository) UpsertRules(ctx context.Context, rules domain.PersonalizationRules) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	if err, ok := m.ErrSegments[rules.Segment]; ok {
		return err
	}
	if m.Rules == nil {
		m.Rules = make(map[domain.Segment]domain.PersonalizationRules)
	}
	m.Rules[rules.Segment] = rules
	return nil
}

func (m *MockRulesRepository) GetRules(ctx context.Context, segment domain.Segment) (domain.PersonalizationRules, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return domain.PersonalizationRules{}, m.GetErr
	}
	rules, ok := m.Rules[segment]
	if !ok {
		return domain.PersonalizationRules{}, domain.ErrNotFound
	}
	return rules, nil
}

// MockCache is an in-memory implementation of domain.Cache.
type MockCache struct {
	mu       sync.Mutex
	Store    map[string][]byte
	TTLs     map[string]time.Duration
	GetCalls int
	SetCalls int
	Disabled bool // when true, every operation behaves like an unavailable cache
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.Disabled {
		return nil, false
	}
	value, ok := m.Store[key]
	return value, ok
}

func (m *MockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	if m.Disabled {
		return false
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return false
	}
	if m.Store == nil {
		m.Store = make(map[string][]byte)
		m.TTLs = make(map[string]time.Duration)
	}
	m.Store[key] = payload
	m.TTLs[key] = ttl
	return true
}

func (m *MockCache) Delete(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Disabled || m.Store == nil {
		return false
	}
	_, ok := m.Store[key]
	delete(m.Store, key)
	return ok
}

// MockEventSource is a mock implementation of domain.EventSource.
type MockEventSource struct {
	mu     sync.Mutex
	Events []domain.Event
	Calls  int
}

func (m *MockEventSource) FetchRecentEvents(ctx context.Context, since time.Time) []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return m.Events
}

// MockLLMGateway is a mock implementation of domain.LLMGateway.
type MockLLMGateway struct {
	mu       sync.Mutex
	Response string
	Err      error
	Calls    int
	Prompts  []string
}

func (m *MockLLMGateway) GenerateWithFallback(ctx context.Context, prompt string, contextData any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
