package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"execgate/internal/killswitch"
	"execgate/internal/models"
	"execgate/internal/repository"
	"execgate/internal/risk"
	"execgate/pkg/utils"
)

// RiskService предоставляет бизнес-логику для управления риск-движком.
//
// Отвечает за:
// - Загрузку персистентных лимитов при старте и горячую перезагрузку
// - Журнал событий риск-движка
// - Операторские действия: дневной сброс, сброс breaker'а, аварийный стоп
type RiskService struct {
	limitsRepo LimitsRepositoryInterface
	eventRepo  EventRepositoryInterface
	riskMgr    *risk.Manager
	ks         *killswitch.KillSwitch
	logger     *zap.Logger
}

// NewRiskService создает новый экземпляр RiskService
func NewRiskService(limitsRepo LimitsRepositoryInterface, eventRepo EventRepositoryInterface, riskMgr *risk.Manager, ks *killswitch.KillSwitch, logger *zap.Logger) *RiskService {
	return &RiskService{
		limitsRepo: limitsRepo,
		eventRepo:  eventRepo,
		riskMgr:    riskMgr,
		ks:         ks,
		logger:     logger,
	}
}

// ============================================================
// Лимиты
// ============================================================

// LoadLimits читает лимиты из БД и применяет их к риск-движку.
// Вызывается при старте; отсутствие записи не ошибка - репозиторий
// создаст дефолтную.
func (s *RiskService) LoadLimits(ctx context.Context) error {
	limits, err := s.limitsRepo.Get(ctx)
	if err != nil {
		return fmt.Errorf("загрузка лимитов: %w", err)
	}
	if err := s.riskMgr.UpdateLimits(limits); err != nil {
		return fmt.Errorf("применение лимитов: %w", err)
	}
	s.logger.Info("лимиты риск-движка загружены из БД")
	return nil
}

// GetLimits возвращает действующие лимиты риск-движка
func (s *RiskService) GetLimits() models.RiskLimits {
	return s.riskMgr.Limits()
}

// UpdateLimitsRequest представляет запрос на обновление лимитов.
// Все секции опциональны - обновляются только переданные.
type UpdateLimitsRequest struct {
	Enabled        *bool                          `json:"enabled,omitempty"`
	FailSafeMode   *bool                          `json:"fail_safe_mode,omitempty"`
	CircuitBreaker *models.CircuitBreakerLimits   `json:"circuit_breaker,omitempty"`
	Drawdown       *models.DrawdownLimits         `json:"drawdown,omitempty"`
	Exposure       *models.ExposureLimits         `json:"exposure,omitempty"`
	TrackLimits    map[models.Track]models.TrackLimits `json:"track_limits,omitempty"`
}

// UpdateLimits обновляет лимиты: валидация, запись в БД, горячая
// перезагрузка в риск-движок. Переданные секции заменяются целиком.
func (s *RiskService) UpdateLimits(ctx context.Context, req *UpdateLimitsRequest) (*models.RiskLimits, error) {
	current := s.riskMgr.Limits()
	limits := &current

	if req.Enabled != nil {
		limits.Enabled = *req.Enabled
	}
	if req.FailSafeMode != nil {
		limits.FailSafeMode = *req.FailSafeMode
	}
	if req.CircuitBreaker != nil {
		limits.CircuitBreaker = *req.CircuitBreaker
	}
	if req.Drawdown != nil {
		limits.Drawdown = *req.Drawdown
	}
	if req.Exposure != nil {
		limits.Exposure = *req.Exposure
	}
	if req.TrackLimits != nil {
		limits.TrackLimits = req.TrackLimits
	}

	if err := limits.Validate(); err != nil {
		return nil, err
	}

	if err := s.limitsRepo.Update(ctx, limits); err != nil {
		return nil, fmt.Errorf("сохранение лимитов: %w", err)
	}
	if err := s.riskMgr.UpdateLimits(limits); err != nil {
		return nil, err
	}

	s.logger.Info("лимиты риск-движка обновлены оператором")
	return limits, nil
}

// ============================================================
// События
// ============================================================

// ListEvents возвращает события журнала по фильтру
func (s *RiskService) ListEvents(ctx context.Context, filter repository.EventFilter) ([]models.RiskEvent, error) {
	return s.eventRepo.List(ctx, filter)
}

// CountEventsSince возвращает количество событий типа с момента since
func (s *RiskService) CountEventsSince(ctx context.Context, eventType string, since time.Time) (int, error) {
	return s.eventRepo.CountSince(ctx, eventType, since)
}

// PruneEvents удаляет события старше retention
func (s *RiskService) PruneEvents(ctx context.Context, retention time.Duration) (int64, error) {
	return s.eventRepo.DeleteOlderThan(ctx, time.Now().Add(-retention))
}

// ============================================================
// Операторские действия
// ============================================================

// StatusResponse - сводное состояние для API
type StatusResponse struct {
	Risk       risk.Status       `json:"risk"`
	KillSwitch killswitch.Status `json:"kill_switch"`
}

// GetStatus возвращает сводное состояние риск-движка и аварийного стопа
func (s *RiskService) GetStatus() StatusResponse {
	return StatusResponse{
		Risk:       s.riskMgr.GetStatus(),
		KillSwitch: s.ks.GetStatus(),
	}
}

// ResetDaily начинает новый торговый день (операторское действие)
func (s *RiskService) ResetDaily() {
	s.logger.Info("операторский дневной сброс риск-состояния")
	s.riskMgr.ResetDaily()
}

// ResetSymbol сбрасывает breaker символа (операторское действие)
func (s *RiskService) ResetSymbol(symbol string) error {
	if err := utils.ValidateSymbol(symbol); err != nil {
		return err
	}
	s.logger.Info("операторский сброс breaker'а", zap.String("symbol", symbol))
	s.riskMgr.ResetSymbol(symbol)
	return nil
}

// ActivateKillSwitch взводит аварийный стоп вручную
func (s *RiskService) ActivateKillSwitch(reason string) (bool, error) {
	if reason == "" {
		reason = "manual operator stop"
	}
	return s.ks.Activate(reason)
}

// ResetKillSwitch снимает аварийный стоп (единственный способ)
func (s *RiskService) ResetKillSwitch() error {
	return s.ks.Reset()
}

// ============================================================
// Планировщик дневного сброса
// ============================================================

// RunDailyReset автоматически начинает новый торговый день в 00:00 UTC.
// Крутится до отмены контекста.
func (s *RiskService) RunDailyReset(ctx context.Context) {
	for {
		wait := utils.UntilNextDayStart(time.Now())
		s.logger.Info("следующий дневной сброс", zap.Duration("in", wait))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			s.riskMgr.ResetDaily()
		}
	}
}
