package models

import "time"

// RiskEvent представляет событие риск-движка
//
// Публикуется в шину событий и никогда не мутируется после создания.
// Подписчики: журнал в БД, WebSocket стрим, логгер.
type RiskEvent struct {
	ID        int                    `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	Type      string                 `json:"type" db:"type"`
	Severity  string                 `json:"severity" db:"severity"`
	Symbol    string                 `json:"symbol,omitempty" db:"symbol"`
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"` // дополнительные данные (JSON в БД)
}

// Типы событий
const (
	EventTypeOrderRejected  = "ORDER_REJECTED"  // ордер отклонён риск-проверкой
	EventTypeOrderExecuted  = "ORDER_EXECUTED"  // ордер исполнен шлюзом
	EventTypeBreakerTripped = "BREAKER_TRIPPED" // circuit breaker перешёл в OPEN
	EventTypeBreakerClosed  = "BREAKER_CLOSED"  // circuit breaker вернулся в CLOSED
	EventTypeDrawdownAlert  = "DRAWDOWN_ALERT"  // просадка достигла порога
	EventTypeExposureAlert  = "EXPOSURE_ALERT"  // экспозиция достигла порога
	EventTypeKillSwitch     = "KILL_SWITCH"     // активация/сброс kill switch
	EventTypeDriftDetected  = "DRIFT_DETECTED"  // расхождение локального и удалённого состояния
	EventTypeSyncComplete   = "SYNC_COMPLETE"   // успешная сверка состояния со шлюзом
	EventTypeDailyReset     = "DAILY_RESET"     // ежедневный сброс счётчиков
	EventTypeInternalError  = "INTERNAL_ERROR"  // внутренняя ошибка монитора (fail-safe)
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
