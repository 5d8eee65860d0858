package risk

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"execgate/internal/models"
)

// circuit_breaker.go - посимвольный circuit breaker (уровень L1)
//
// Назначение:
// Отсекает символ от торговли после серии убытков. Каждый символ
// ведёт собственный автомат CLOSED -> OPEN -> HALF_OPEN (см.
// state_machine.go). Повторные срабатывания удлиняют cooldown
// геометрически: base * multiplier^(tripCount-1).
//
// Потокобезопасность:
// Breaker НЕ синхронизирован сам по себе. Единственный владелец -
// Manager, все вызовы идут под его мьютексом.

// SymbolState - снимок состояния breaker'а по одному символу (для API)
type SymbolState struct {
	Symbol            string    `json:"symbol"`
	State             string    `json:"state"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	SessionLoss       float64   `json:"session_loss"`
	TripCount         int       `json:"trip_count"`
	TrippedAt         time.Time `json:"tripped_at,omitempty"`
	CooldownUntil     time.Time `json:"cooldown_until,omitempty"`
}

// symbolState - внутреннее состояние по символу
type symbolState struct {
	state             string
	consecutiveLosses int
	sessionLoss       float64 // накопленный убыток сессии (положительное число)
	tripCount         int     // срабатываний за день
	trippedAt         time.Time
	cooldownUntil     time.Time
	halfOpenTrades    int // пробных сделок отправлено в HALF_OPEN
	halfOpenWins      int
}

// TripFunc вызывается при срабатывании breaker'а.
// tripCount - номер срабатывания за день, cooldown - назначенный период.
type TripFunc func(symbol string, tripCount int, cooldown time.Duration)

// CircuitBreaker - набор посимвольных автоматов
type CircuitBreaker struct {
	limits  models.CircuitBreakerLimits
	symbols map[string]*symbolState
	logger  *zap.Logger
	now     func() time.Time
	onTrip  TripFunc
	onClose func(symbol string)
}

// NewCircuitBreaker создаёт breaker с заданными порогами
func NewCircuitBreaker(limits models.CircuitBreakerLimits, logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		limits:  limits,
		symbols: make(map[string]*symbolState),
		logger:  logger,
		now:     time.Now,
	}
}

// OnTrip регистрирует callback срабатывания
func (cb *CircuitBreaker) OnTrip(fn TripFunc) { cb.onTrip = fn }

// OnClose регистрирует callback возврата символа в CLOSED
func (cb *CircuitBreaker) OnClose(fn func(symbol string)) { cb.onClose = fn }

// UpdateLimits применяет новые пороги. Уже назначенные cooldown
// не пересчитываются - новые пороги действуют со следующего события.
func (cb *CircuitBreaker) UpdateLimits(limits models.CircuitBreakerLimits) {
	cb.limits = limits
}

// ============================================================
// Проверка перед ордером
// ============================================================

// Check решает, пропускать ли ордер по символу.
//
// Побочный эффект: OPEN с истёкшим cooldown переводится в HALF_OPEN
// прямо здесь - отдельного таймера нет, переход ленивый.
func (cb *CircuitBreaker) Check(symbol string) *models.RiskDecision {
	st := cb.get(symbol)
	now := cb.now()

	switch st.state {
	case StateOpen:
		if now.Before(st.cooldownUntil) {
			remaining := st.cooldownUntil.Sub(now).Round(time.Second)
			return models.Reject("circuit_breaker", models.LevelCritical,
				fmt.Sprintf("символ %s заблокирован ещё %s", symbol, remaining),
				map[string]interface{}{
					"state":          st.state,
					"trip_count":     st.tripCount,
					"cooldown_until": st.cooldownUntil,
				})
		}
		// Cooldown истёк - пробный режим
		cb.transition(symbol, st, StateHalfOpen)
		st.halfOpenTrades = 0
		st.halfOpenWins = 0
		fallthrough

	case StateHalfOpen:
		if st.halfOpenTrades >= cb.limits.HalfOpenMaxTrades {
			return models.Reject("circuit_breaker", models.LevelWarning,
				fmt.Sprintf("символ %s в пробном режиме, лимит пробных сделок исчерпан", symbol),
				map[string]interface{}{"state": st.state, "half_open_trades": st.halfOpenTrades})
		}
		st.halfOpenTrades++
		return models.Allow("circuit_breaker")

	default: // CLOSED
		return models.Allow("circuit_breaker")
	}
}

// ============================================================
// Учёт результатов
// ============================================================

// RecordResult учитывает закрытую сделку по символу.
//
// Убыток наращивает счётчики; срабатывание происходит по общему
// условию (серия убытков, накопленный убыток или исчерпанный
// дневной лимит срабатываний), независимо от
// текущего состояния. Одиночный убыток в HALF_OPEN сам по себе
// breaker не взводит: после срабатывания счётчик серии обнуляется,
// и для повторного срабатывания нужна полная новая серия.
func (cb *CircuitBreaker) RecordResult(symbol string, pnl, equity float64) {
	st := cb.get(symbol)

	if pnl >= 0 {
		st.consecutiveLosses = 0
		if st.state == StateHalfOpen {
			st.halfOpenWins++
			if st.halfOpenWins >= cb.limits.HalfOpenSuccessThreshold {
				cb.transition(symbol, st, StateClosed)
				st.sessionLoss = 0
				st.halfOpenTrades = 0
				st.halfOpenWins = 0
				if cb.onClose != nil {
					cb.onClose(symbol)
				}
			}
		}
		return
	}

	st.consecutiveLosses++
	st.sessionLoss += -pnl

	if cb.shouldTrip(st, equity) {
		cb.trip(symbol, st)
	}
}

// shouldTrip проверяет общее условие срабатывания
func (cb *CircuitBreaker) shouldTrip(st *symbolState, equity float64) bool {
	if st.state == StateOpen {
		return false
	}
	if st.consecutiveLosses >= cb.limits.MaxConsecutiveLosses {
		return true
	}
	if cb.limits.MaxLossAmount > 0 && st.sessionLoss >= cb.limits.MaxLossAmount {
		return true
	}
	if cb.limits.MaxLossPercentage > 0 && equity > 0 &&
		st.sessionLoss >= cb.limits.MaxLossPercentage*equity {
		return true
	}
	// Символ, исчерпавший дневной лимит срабатываний, перевзводится
	// любым новым убытком - полная серия больше не требуется
	if cb.limits.MaxTripsPerDay > 0 && st.tripCount >= cb.limits.MaxTripsPerDay {
		return true
	}
	return false
}

// trip взводит breaker и назначает cooldown с геометрической эскалацией
func (cb *CircuitBreaker) trip(symbol string, st *symbolState) {
	st.tripCount++
	cooldown := cb.cooldownFor(st.tripCount)

	now := cb.now()
	st.trippedAt = now
	st.cooldownUntil = now.Add(cooldown)
	st.consecutiveLosses = 0
	st.halfOpenTrades = 0
	st.halfOpenWins = 0
	cb.transition(symbol, st, StateOpen)

	cb.logger.Warn("circuit breaker сработал",
		zap.String("symbol", symbol),
		zap.Int("trip_count", st.tripCount),
		zap.Duration("cooldown", cooldown))
	RecordBreakerTrip(symbol)

	if cb.onTrip != nil {
		cb.onTrip(symbol, st.tripCount, cooldown)
	}
}

// cooldownFor возвращает cooldown для n-го срабатывания за день:
// base * multiplier^(n-1)
func (cb *CircuitBreaker) cooldownFor(tripCount int) time.Duration {
	base := time.Duration(cb.limits.CooldownSeconds) * time.Second
	if tripCount <= 1 || cb.limits.EscalationMultiplier <= 1 {
		return base
	}
	scaled := float64(base) * math.Pow(cb.limits.EscalationMultiplier, float64(tripCount-1))
	return time.Duration(scaled)
}

// ============================================================
// Управление
// ============================================================

// ResetDaily сбрасывает все посимвольные состояния.
// Вызывается на границе торгового дня или оператором.
func (cb *CircuitBreaker) ResetDaily() {
	cb.symbols = make(map[string]*symbolState)
	cb.logger.Info("circuit breaker: дневной сброс")
}

// ResetSymbol принудительно возвращает символ в CLOSED (команда оператора)
func (cb *CircuitBreaker) ResetSymbol(symbol string) {
	delete(cb.symbols, symbol)
	cb.logger.Warn("circuit breaker: принудительный сброс символа",
		zap.String("symbol", symbol))
}

// States возвращает снимок всех посимвольных состояний для API
func (cb *CircuitBreaker) States() []SymbolState {
	out := make([]SymbolState, 0, len(cb.symbols))
	for sym, st := range cb.symbols {
		out = append(out, SymbolState{
			Symbol:            sym,
			State:             st.state,
			ConsecutiveLosses: st.consecutiveLosses,
			SessionLoss:       st.sessionLoss,
			TripCount:         st.tripCount,
			TrippedAt:         st.trippedAt,
			CooldownUntil:     st.cooldownUntil,
		})
	}
	return out
}

// ============================================================
// Внутреннее
// ============================================================

// get возвращает состояние символа, создавая его лениво в CLOSED
func (cb *CircuitBreaker) get(symbol string) *symbolState {
	st, ok := cb.symbols[symbol]
	if !ok {
		st = &symbolState{state: StateClosed}
		cb.symbols[symbol] = st
	}
	return st
}

// transition выполняет переход с проверкой допустимости
func (cb *CircuitBreaker) transition(symbol string, st *symbolState, to string) {
	if !CanTransition(st.state, to) {
		// Недопустимый переход - ошибка логики, фиксируем и не ломаем состояние
		cb.logger.Error("недопустимый переход breaker",
			zap.String("symbol", symbol),
			zap.String("from", st.state),
			zap.String("to", to))
		return
	}
	cb.logger.Info("переход breaker",
		zap.String("symbol", symbol),
		zap.String("from", st.state),
		zap.String("to", to))
	st.state = to
	RecordBreakerState(symbol, to)
}
