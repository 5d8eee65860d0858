package risk

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"execgate/internal/models"
	"execgate/pkg/utils"
)

// drawdown.go - монитор просадки счёта (уровень L2)
//
// Назначение:
// Следит за просадкой equity от внутридневного пика (high-water mark).
// Пик монотонен в пределах дня: просадка в момент k считается как
// (max(E1..Ek) - Ek) / max(E1..Ek) и не может "улучшиться" задним
// числом от падения пика.
//
// Уровни реакции:
//   - warning: торговля разрешена, событие для оператора
//   - critical: только уменьшающие позицию ордера (REDUCE_ONLY)
//   - halt: полная остановка + FORCE_CLOSE; состояние односторонее,
//     снимается только явным дневным сбросом
//
// Потокобезопасность: владелец - Manager, вызовы под его мьютексом.

// AccountState - снимок состояния монитора просадки (для API)
type AccountState struct {
	Level         models.RiskLevel `json:"level"`
	PeakEquity    float64          `json:"peak_equity"`
	CurrentEquity float64          `json:"current_equity"`
	DrawdownPct   float64          `json:"drawdown_pct"`
	DailyPnl      float64          `json:"daily_pnl"`
	Halted        bool             `json:"halted"`
	HaltedAt      time.Time        `json:"halted_at,omitempty"`
}

// LevelChangeFunc вызывается при смене уровня риска счёта
type LevelChangeFunc func(from, to models.RiskLevel, drawdown float64)

// DrawdownMonitor - монитор просадки счёта
type DrawdownMonitor struct {
	limits models.DrawdownLimits
	logger *zap.Logger

	level         models.RiskLevel
	peakEquity    float64
	currentEquity float64
	dailyPnl      float64
	halted        bool
	haltedAt      time.Time

	onLevelChange LevelChangeFunc
}

// NewDrawdownMonitor создаёт монитор с заданными порогами
func NewDrawdownMonitor(limits models.DrawdownLimits, logger *zap.Logger) *DrawdownMonitor {
	return &DrawdownMonitor{
		limits: limits,
		logger: logger,
		level:  models.LevelNormal,
	}
}

// OnLevelChange регистрирует callback смены уровня
func (m *DrawdownMonitor) OnLevelChange(fn LevelChangeFunc) { m.onLevelChange = fn }

// UpdateLimits применяет новые пороги (переоценка на следующем обновлении equity)
func (m *DrawdownMonitor) UpdateLimits(limits models.DrawdownLimits) {
	m.limits = limits
}

// ============================================================
// Обновление состояния
// ============================================================

// UpdateEquity фиксирует свежий equity и переоценивает уровень риска.
// Вызывается сверкой состояния после каждого снимка счёта.
func (m *DrawdownMonitor) UpdateEquity(equity float64) {
	m.currentEquity = equity
	if equity > m.peakEquity {
		m.peakEquity = equity
	}
	m.evaluate()
}

// RecordTradeResult наращивает дневной PnL
func (m *DrawdownMonitor) RecordTradeResult(pnl float64) {
	m.dailyPnl += pnl
	m.evaluate()
}

// evaluate пересчитывает уровень риска по текущей просадке.
//
// HALT - односторонний: достигнув его, монитор игнорирует любое
// восстановление equity до явного дневного сброса. Восстановление
// после просадки легко оказывается отскоком перед следующим падением.
func (m *DrawdownMonitor) evaluate() {
	if m.halted {
		return
	}

	dd := utils.DrawdownPct(m.peakEquity, m.currentEquity)
	newLevel := m.levelFor(dd)

	// Дневной абсолютный лимит убытка - независимый путь к HALT
	if m.limits.MaxDailyLoss > 0 && m.dailyPnl <= -m.limits.MaxDailyLoss {
		newLevel = models.LevelHalt
	}

	if newLevel == m.level {
		return
	}

	// Понижение уровня только через порог восстановления:
	// без гистерезиса уровень дребезжал бы вокруг порога
	if severity(newLevel) < severity(m.level) && dd > m.limits.RecoveryThreshold {
		return
	}

	old := m.level
	m.level = newLevel

	if newLevel == models.LevelHalt {
		m.halted = true
		m.haltedAt = time.Now().UTC()
	}

	m.logger.Warn("смена уровня риска счёта",
		zap.String("from", string(old)),
		zap.String("to", string(newLevel)),
		zap.Float64("drawdown_pct", dd),
		zap.Float64("daily_pnl", m.dailyPnl))
	RecordDrawdownLevel(string(newLevel))

	if m.onLevelChange != nil {
		m.onLevelChange(old, newLevel, dd)
	}
}

// levelFor сопоставляет просадку с уровнем риска
func (m *DrawdownMonitor) levelFor(dd float64) models.RiskLevel {
	switch {
	case dd >= m.limits.HaltThreshold:
		return models.LevelHalt
	case dd >= m.limits.CriticalThreshold:
		return models.LevelCritical
	case dd >= m.limits.WarningThreshold:
		return models.LevelWarning
	default:
		return models.LevelNormal
	}
}

// severity задаёт порядок уровней для сравнения
func severity(l models.RiskLevel) int {
	switch l {
	case models.LevelHalt:
		return 3
	case models.LevelCritical:
		return 2
	case models.LevelWarning:
		return 1
	default:
		return 0
	}
}

// ============================================================
// Проверка перед ордером
// ============================================================

// Check решает судьбу ордера по текущему уровню риска счёта
func (m *DrawdownMonitor) Check(rctx *models.RiskContext) *models.RiskDecision {
	dd := utils.DrawdownPct(m.peakEquity, m.currentEquity)
	details := map[string]interface{}{
		"level":        m.level,
		"drawdown_pct": dd,
		"peak_equity":  m.peakEquity,
		"daily_pnl":    m.dailyPnl,
	}

	switch m.level {
	case models.LevelHalt:
		d := models.Reject("drawdown", models.LevelHalt,
			fmt.Sprintf("счёт остановлен: просадка %.2f%%", dd*100), details)
		if m.limits.HaltOnThreshold {
			d.Action = models.ActionForceClose
		}
		return d

	case models.LevelCritical:
		if m.limits.ReduceOnlyOnCritical && rctx.IsReducing() {
			// Уменьшение позиции при критической просадке разрешено
			return models.Allow("drawdown")
		}
		d := models.Reject("drawdown", models.LevelCritical,
			fmt.Sprintf("критическая просадка %.2f%%: разрешено только сокращение позиций", dd*100), details)
		d.Action = models.ActionReduceOnly
		return d

	default:
		return models.Allow("drawdown")
	}
}

// ============================================================
// Управление
// ============================================================

// ResetDaily начинает новый торговый день: пик переустанавливается
// на текущий equity, HALT снимается. Единственный способ выйти из HALT.
func (m *DrawdownMonitor) ResetDaily() {
	m.peakEquity = m.currentEquity
	m.dailyPnl = 0
	m.halted = false
	m.haltedAt = time.Time{}
	old := m.level
	m.level = models.LevelNormal

	m.logger.Info("монитор просадки: дневной сброс",
		zap.String("previous_level", string(old)),
		zap.Float64("new_peak", m.peakEquity))
	RecordDrawdownLevel(string(models.LevelNormal))
}

// State возвращает снимок состояния для API
func (m *DrawdownMonitor) State() AccountState {
	return AccountState{
		Level:         m.level,
		PeakEquity:    m.peakEquity,
		CurrentEquity: m.currentEquity,
		DrawdownPct:   utils.DrawdownPct(m.peakEquity, m.currentEquity),
		DailyPnl:      m.dailyPnl,
		Halted:        m.halted,
		HaltedAt:      m.haltedAt,
	}
}
