package risk

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"execgate/internal/models"
)

// manager.go - композиция риск-движка
//
// Назначение:
// Manager прогоняет каждый ордер через три уровня проверок с
// короткой схемой: первый отказ останавливает цепочку.
//
//	L1 circuit breaker - посимвольная серия убытков
//	L2 drawdown        - просадка всего счёта
//	L3 exposure        - проекция экспозиции
//
// Потокобезопасность:
// Manager - единственный владелец мониторов. Один мьютекс на всё
// состояние: мониторы внутри не синхронизированы и наружу не отдаются.
//
// Fail-safe:
// При fail_safe_mode=true паника любого монитора превращается в
// отклонение уровня HALT. Сломанный риск-движок не имеет права
// пропускать ордера.

// CriticalFunc вызывается при событиях, требующих немедленной
// остановки торговли (HALT, исчерпание дневных срабатываний breaker)
type CriticalFunc func(reason string)

// Status - снимок состояния риск-движка для API
type Status struct {
	Enabled  bool          `json:"enabled"`
	Healthy  bool          `json:"healthy"`
	Account  AccountState  `json:"account"`
	Breakers []SymbolState `json:"breakers"`
}

// Manager - риск-движок
type Manager struct {
	mu sync.Mutex

	limits   *models.RiskLimits
	breaker  *CircuitBreaker
	drawdown *DrawdownMonitor
	exposure *ExposureMonitor

	// healthy=false (дрейф состояния, неудачная сверка) закрывает
	// движок полностью: неизвестное состояние счёта хуже простоя
	healthy      bool
	unhealthyWhy string
	bus          *EventBus
	onCritical   CriticalFunc
	logger       *zap.Logger
}

// NewManager создаёт риск-движок с заданными лимитами
func NewManager(limits *models.RiskLimits, bus *EventBus, logger *zap.Logger) *Manager {
	m := &Manager{
		limits:   limits,
		breaker:  NewCircuitBreaker(limits.CircuitBreaker, logger.Named("breaker")),
		drawdown: NewDrawdownMonitor(limits.Drawdown, logger.Named("drawdown")),
		exposure: NewExposureMonitor(limits.Exposure, limits.TrackLimits, logger.Named("exposure")),
		healthy:  true,
		bus:      bus,
		logger:   logger,
	}

	m.breaker.OnTrip(func(symbol string, tripCount int, cooldown time.Duration) {
		bus.Emit(models.EventTypeBreakerTripped, models.SeverityError, symbol,
			fmt.Sprintf("breaker сработал (%d за день), cooldown %s", tripCount, cooldown),
			map[string]interface{}{"trip_count": tripCount, "cooldown_sec": cooldown.Seconds()})
		if m.limits.CircuitBreaker.MaxTripsPerDay > 0 && tripCount >= m.limits.CircuitBreaker.MaxTripsPerDay && m.onCritical != nil {
			m.onCritical(fmt.Sprintf("symbol %s tripped %d times today", symbol, tripCount))
		}
	})
	m.breaker.OnClose(func(symbol string) {
		bus.Emit(models.EventTypeBreakerClosed, models.SeverityInfo, symbol,
			"breaker вернулся в CLOSED", nil)
	})
	m.drawdown.OnLevelChange(func(from, to models.RiskLevel, dd float64) {
		bus.Emit(models.EventTypeDrawdownAlert, severityForLevel(to), "",
			fmt.Sprintf("уровень риска счёта %s -> %s (просадка %.2f%%)", from, to, dd*100),
			map[string]interface{}{"from": from, "to": to, "drawdown_pct": dd})
		if to == models.LevelHalt && m.onCritical != nil {
			m.onCritical(fmt.Sprintf("drawdown HALT: %.2f%%", dd*100))
		}
	})
	m.exposure.OnWarn(func(symbol, axis string, projected, limit float64) {
		bus.Emit(models.EventTypeExposureAlert, models.SeverityWarn, symbol,
			fmt.Sprintf("экспозиция %s приближается к лимиту: %.2f%% из %.2f%%", axis, projected*100, limit*100),
			map[string]interface{}{"axis": axis, "projected": projected, "limit": limit})
	})

	return m
}

// OnCritical регистрирует обработчик критических событий
// (активация аварийного стопа, принудительное закрытие)
func (m *Manager) OnCritical(fn CriticalFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCritical = fn
}

// ============================================================
// Проверка ордера
// ============================================================

// CheckOrder прогоняет ордер через все уровни проверок.
// Никогда не паникует: при fail_safe_mode=true паника монитора
// превращается в отклонение HALT, иначе - в REJECT уровня CRITICAL.
func (m *Manager) CheckOrder(rctx *models.RiskContext) (decision *models.RiskDecision) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("паника риск-движка", zap.Any("panic", r), zap.String("symbol", rctx.Symbol))
			m.bus.Emit(models.EventTypeInternalError, models.SeverityError, rctx.Symbol,
				fmt.Sprintf("паника риск-движка: %v", r), nil)
			level := models.LevelCritical
			if m.limits.FailSafeMode {
				level = models.LevelHalt
			}
			decision = models.Reject("risk_manager", level,
				"внутренняя ошибка риск-движка, ордер отклонён", nil)
		}
		RecordCheckLatency(float64(time.Since(start).Microseconds()) / 1000.0)
		if decision != nil {
			RecordDecision(string(decision.Action), decision.CheckedBy)
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.limits.Enabled {
		return models.Allow("disabled")
	}

	if !m.healthy {
		return models.Reject("risk_manager", models.LevelCritical,
			"состояние счёта не синхронизировано: "+m.unhealthyWhy,
			map[string]interface{}{"healthy": false})
	}

	// L1: circuit breaker по символу
	if d := m.breaker.Check(rctx.Symbol); !d.Allowed() {
		return d
	}

	// L2: просадка счёта
	if d := m.drawdown.Check(rctx); !d.Allowed() {
		return d
	}

	// L3: проекция экспозиции
	if d := m.exposure.Check(rctx); !d.Allowed() {
		return d
	}

	return models.Allow("risk_manager")
}

// ============================================================
// Обновление состояния
// ============================================================

// RecordTradeResult учитывает закрытую сделку во всех мониторах
func (m *Manager) RecordTradeResult(symbol string, pnl, equity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breaker.RecordResult(symbol, pnl, equity)
	m.drawdown.RecordTradeResult(pnl)
	m.exposure.RecordTradeResult(symbol, pnl)
}

// UpdateEquity передаёт свежий equity монитору просадки.
// Вызывается сверкой состояния.
func (m *Manager) UpdateEquity(equity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drawdown.UpdateEquity(equity)
}

// SetHealthy выставляет флаг синхронизированности состояния.
// healthy=false закрывает движок для всех ордеров (fail-closed).
func (m *Manager) SetHealthy(healthy bool, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.healthy == healthy {
		return
	}
	m.healthy = healthy
	m.unhealthyWhy = reason

	if healthy {
		m.logger.Info("риск-движок: состояние синхронизировано")
	} else {
		m.logger.Error("риск-движок закрыт: состояние рассинхронизировано",
			zap.String("reason", reason))
	}
}

// ResetDaily начинает новый торговый день во всех мониторах.
// Единственный способ снять HALT просадки.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.breaker.ResetDaily()
	m.drawdown.ResetDaily()
	m.exposure.ResetDaily()
	m.bus.Emit(models.EventTypeDailyReset, models.SeverityInfo, "",
		"дневной сброс риск-состояния", nil)
}

// ResetSymbol принудительно сбрасывает breaker символа (оператор)
func (m *Manager) ResetSymbol(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breaker.ResetSymbol(symbol)
}

// UpdateLimits применяет новые лимиты на лету
func (m *Manager) UpdateLimits(limits *models.RiskLimits) error {
	if err := limits.Validate(); err != nil {
		return fmt.Errorf("некорректные лимиты: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.limits = limits
	m.breaker.UpdateLimits(limits.CircuitBreaker)
	m.drawdown.UpdateLimits(limits.Drawdown)
	m.exposure.UpdateLimits(limits.Exposure, limits.TrackLimits)

	m.logger.Info("лимиты риск-движка обновлены")
	return nil
}

// Limits возвращает копию текущих лимитов
func (m *Manager) Limits() models.RiskLimits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.limits
}

// GetStatus возвращает снимок состояния движка для API
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Enabled:  m.limits.Enabled,
		Healthy:  m.healthy,
		Account:  m.drawdown.State(),
		Breakers: m.breaker.States(),
	}
}

// severityForLevel сопоставляет уровень риска с severity события
func severityForLevel(l models.RiskLevel) string {
	switch l {
	case models.LevelHalt, models.LevelCritical:
		return models.SeverityError
	case models.LevelWarning:
		return models.SeverityWarn
	default:
		return models.SeverityInfo
	}
}
