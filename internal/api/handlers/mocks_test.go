package handlers

import (
	"context"
	"errors"
	"time"

	"execgate/internal/killswitch"
	"execgate/internal/models"
	"execgate/internal/repository"
	"execgate/internal/risk"
	"execgate/internal/service"
)

// ============ Mock RiskService ============

type MockRiskService struct {
	limits     models.RiskLimits
	events     []models.RiskEvent
	ksActive   bool
	updateErr  error
	listErr    error
	resetDaily int
	resetSyms  []string
}

func NewMockRiskService() *MockRiskService {
	return &MockRiskService{limits: *models.DefaultRiskLimits()}
}

func (m *MockRiskService) GetStatus() service.StatusResponse {
	return service.StatusResponse{
		Risk:       risk.Status{Enabled: m.limits.Enabled, Healthy: true},
		KillSwitch: killswitch.Status{Active: m.ksActive, Reason: "test"},
	}
}

func (m *MockRiskService) GetLimits() models.RiskLimits {
	return m.limits
}

func (m *MockRiskService) UpdateLimits(ctx context.Context, req *service.UpdateLimitsRequest) (*models.RiskLimits, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if req.CircuitBreaker != nil {
		m.limits.CircuitBreaker = *req.CircuitBreaker
	}
	if req.Enabled != nil {
		m.limits.Enabled = *req.Enabled
	}
	if err := m.limits.Validate(); err != nil {
		return nil, err
	}
	return &m.limits, nil
}

func (m *MockRiskService) ListEvents(ctx context.Context, filter repository.EventFilter) ([]models.RiskEvent, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.RiskEvent
	for _, e := range m.events {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *MockRiskService) CountEventsSince(ctx context.Context, eventType string, since time.Time) (int, error) {
	return len(m.events), nil
}

func (m *MockRiskService) ResetDaily() {
	m.resetDaily++
}

func (m *MockRiskService) ResetSymbol(symbol string) error {
	if symbol == "" {
		return errors.New("empty symbol")
	}
	m.resetSyms = append(m.resetSyms, symbol)
	return nil
}

func (m *MockRiskService) ActivateKillSwitch(reason string) (bool, error) {
	if m.ksActive {
		return false, nil
	}
	m.ksActive = true
	return true, nil
}

func (m *MockRiskService) ResetKillSwitch() error {
	m.ksActive = false
	return nil
}

// ============ Mock OrderSubmitter ============

type MockSubmitter struct {
	result   *models.OrderResult
	decision *models.RiskDecision
	err      error
	lastCmd  *models.OrderCommand
	lastPrice float64
}

func (m *MockSubmitter) Submit(ctx context.Context, cmd *models.OrderCommand, price float64) (*models.OrderResult, *models.RiskDecision, error) {
	m.lastCmd = cmd
	m.lastPrice = price
	return m.result, m.decision, m.err
}
