package service

import (
	"context"
	"sync"
	"time"

	"execgate/internal/models"
	"execgate/internal/repository"
)

// ============ Mock LimitsRepository ============

type MockLimitsRepository struct {
	mu        sync.Mutex
	limits    *models.RiskLimits
	getErr    error
	updateErr error
	updates   int
}

func NewMockLimitsRepository() *MockLimitsRepository {
	return &MockLimitsRepository{limits: models.DefaultRiskLimits()}
}

func (m *MockLimitsRepository) Get(ctx context.Context) (*models.RiskLimits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	cp := *m.limits
	return &cp, nil
}

func (m *MockLimitsRepository) Update(ctx context.Context, limits *models.RiskLimits) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	cp := *limits
	m.limits = &cp
	m.updates++
	return nil
}

// ============ Mock EventRepository ============

type MockEventRepository struct {
	mu        sync.Mutex
	events    []models.RiskEvent
	createErr error
	nextID    int
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{nextID: 1}
}

func (m *MockEventRepository) Create(ctx context.Context, event *models.RiskEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	event.ID = m.nextID
	m.nextID++
	m.events = append(m.events, *event)
	return nil
}

func (m *MockEventRepository) List(ctx context.Context, filter repository.EventFilter) ([]models.RiskEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RiskEvent
	for _, e := range m.events {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.Severity != "" && e.Severity != filter.Severity {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *MockEventRepository) CountSince(ctx context.Context, eventType string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.events {
		if e.Type == eventType && !e.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MockEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []models.RiskEvent
	var deleted int64
	for _, e := range m.events {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return deleted, nil
}

func (m *MockEventRepository) stored() []models.RiskEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.RiskEvent, len(m.events))
	copy(out, m.events)
	return out
}
