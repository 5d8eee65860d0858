package models

import "fmt"

// RiskLimits - декларативная конфигурация риск-движка
//
// Хранится одной записью в таблице risk_limits (аналог settings) и может
// перезагружаться на лету через PATCH /api/v1/limits без рестарта процесса.
type RiskLimits struct {
	Enabled      bool `json:"enabled"`
	FailSafeMode bool `json:"fail_safe_mode"` // true: внутренняя ошибка монитора = REJECT/HALT

	CircuitBreaker CircuitBreakerLimits `json:"circuit_breaker"`
	Drawdown       DrawdownLimits       `json:"drawdown"`
	Exposure       ExposureLimits       `json:"exposure"`

	// TrackLimits - отдельные лимиты для каждого трека (EUR/BTC/GBP)
	TrackLimits map[Track]TrackLimits `json:"track_limits"`
}

// CircuitBreakerLimits - пороги circuit breaker'а (L1, посимвольный)
type CircuitBreakerLimits struct {
	MaxConsecutiveLosses     int     `json:"max_consecutive_losses"`
	MaxLossAmount            float64 `json:"max_loss_amount"`
	MaxLossPercentage        float64 `json:"max_loss_percentage"` // % от equity
	CooldownSeconds          int     `json:"cooldown_seconds"`
	HalfOpenMaxTrades        int     `json:"half_open_max_trades"`
	HalfOpenSuccessThreshold int     `json:"half_open_success_threshold"`
	MaxTripsPerDay           int     `json:"max_trips_per_day"`
	EscalationMultiplier     float64 `json:"escalation_multiplier"`
}

// DrawdownLimits - пороги монитора просадки (L2, на весь счёт)
type DrawdownLimits struct {
	WarningThreshold     float64 `json:"warning_threshold"` // доля от high-water equity
	CriticalThreshold    float64 `json:"critical_threshold"`
	HaltThreshold        float64 `json:"halt_threshold"`
	MaxDailyLoss         float64 `json:"max_daily_loss"` // абсолютный дневной лимит убытка
	RecoveryThreshold    float64 `json:"recovery_threshold"`
	ReduceOnlyOnCritical bool    `json:"reduce_only_on_critical"`
	HaltOnThreshold      bool    `json:"halt_on_threshold"`
}

// ExposureLimits - пороги монитора экспозиции (L3)
type ExposureLimits struct {
	MaxTotalExposure  float64 `json:"max_total_exposure"`  // доля от equity
	MaxSinglePosition float64 `json:"max_single_position"` // доля от equity
	MaxPositions      int     `json:"max_positions"`
	WarningThreshold  float64 `json:"warning_threshold"` // доля от жёсткого лимита
}

// TrackLimits - лимиты одного трека
type TrackLimits struct {
	MaxExposurePct       float64 `json:"max_exposure_pct"`
	MaxPositions         int     `json:"max_positions"`
	MaxSinglePositionPct float64 `json:"max_single_position_pct"`
	MaxDailyLossPct      float64 `json:"max_daily_loss_pct"`
}

// DefaultRiskLimits возвращает консервативные значения по умолчанию
func DefaultRiskLimits() *RiskLimits {
	return &RiskLimits{
		Enabled:      true,
		FailSafeMode: true,
		CircuitBreaker: CircuitBreakerLimits{
			MaxConsecutiveLosses:     3,
			MaxLossAmount:            500.0,
			MaxLossPercentage:        0.05,
			CooldownSeconds:          300,
			HalfOpenMaxTrades:        2,
			HalfOpenSuccessThreshold: 1,
			MaxTripsPerDay:           3,
			EscalationMultiplier:     2.0,
		},
		Drawdown: DrawdownLimits{
			WarningThreshold:     0.03,
			CriticalThreshold:    0.05,
			HaltThreshold:        0.08,
			MaxDailyLoss:         1000.0,
			RecoveryThreshold:    0.02,
			ReduceOnlyOnCritical: true,
			HaltOnThreshold:      true,
		},
		Exposure: ExposureLimits{
			MaxTotalExposure:  0.60,
			MaxSinglePosition: 0.20,
			MaxPositions:      10,
			WarningThreshold:  0.80,
		},
		TrackLimits: map[Track]TrackLimits{
			TrackEUR: {MaxExposurePct: 0.30, MaxPositions: 5, MaxSinglePositionPct: 0.15, MaxDailyLossPct: 0.02},
			TrackBTC: {MaxExposurePct: 0.20, MaxPositions: 3, MaxSinglePositionPct: 0.10, MaxDailyLossPct: 0.03},
			TrackGBP: {MaxExposurePct: 0.30, MaxPositions: 5, MaxSinglePositionPct: 0.15, MaxDailyLossPct: 0.02},
		},
	}
}

// Validate проверяет согласованность порогов
func (l *RiskLimits) Validate() error {
	cb := l.CircuitBreaker
	if cb.MaxConsecutiveLosses <= 0 {
		return fmt.Errorf("circuit_breaker.max_consecutive_losses must be positive, got %d", cb.MaxConsecutiveLosses)
	}
	if cb.CooldownSeconds <= 0 {
		return fmt.Errorf("circuit_breaker.cooldown_seconds must be positive, got %d", cb.CooldownSeconds)
	}
	if cb.EscalationMultiplier < 1.0 {
		return fmt.Errorf("circuit_breaker.escalation_multiplier must be >= 1.0, got %v", cb.EscalationMultiplier)
	}
	if cb.HalfOpenMaxTrades <= 0 {
		return fmt.Errorf("circuit_breaker.half_open_max_trades must be positive, got %d", cb.HalfOpenMaxTrades)
	}

	dd := l.Drawdown
	if dd.WarningThreshold <= 0 || dd.CriticalThreshold <= 0 || dd.HaltThreshold <= 0 {
		return fmt.Errorf("drawdown thresholds must be positive")
	}
	if !(dd.WarningThreshold <= dd.CriticalThreshold && dd.CriticalThreshold <= dd.HaltThreshold) {
		return fmt.Errorf("drawdown thresholds must ascend: warning <= critical <= halt")
	}

	ex := l.Exposure
	if ex.MaxTotalExposure <= 0 || ex.MaxSinglePosition <= 0 {
		return fmt.Errorf("exposure limits must be positive")
	}
	if ex.MaxSinglePosition > ex.MaxTotalExposure {
		return fmt.Errorf("exposure.max_single_position %.2f exceeds max_total_exposure %.2f",
			ex.MaxSinglePosition, ex.MaxTotalExposure)
	}
	if ex.WarningThreshold <= 0 || ex.WarningThreshold > 1 {
		return fmt.Errorf("exposure.warning_threshold must be in (0, 1], got %v", ex.WarningThreshold)
	}

	for tr, tl := range l.TrackLimits {
		if tl.MaxExposurePct <= 0 || tl.MaxSinglePositionPct <= 0 {
			return fmt.Errorf("track %s: exposure limits must be positive", tr)
		}
	}

	return nil
}
