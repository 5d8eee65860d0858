package models

import "time"

// RiskAction - действие, предписанное риск-движком для ордера
type RiskAction string

// Действия риск-движка
const (
	ActionAllow      RiskAction = "ALLOW"       // ордер разрешён
	ActionReject     RiskAction = "REJECT"      // ордер отклонён
	ActionReduceOnly RiskAction = "REDUCE_ONLY" // разрешены только уменьшающие позицию ордера
	ActionForceClose RiskAction = "FORCE_CLOSE" // требуется принудительное закрытие позиций
)

// RiskLevel - уровень серьёзности решения
type RiskLevel string

// Уровни риска (по возрастанию серьёзности)
const (
	LevelNormal   RiskLevel = "NORMAL"
	LevelWarning  RiskLevel = "WARNING"
	LevelCritical RiskLevel = "CRITICAL"
	LevelHalt     RiskLevel = "HALT"
)

// RiskDecision - решение риск-движка по конкретному ордеру
//
// Неизменяемо после возврата из проверки. Каждое отклонение несёт
// человекочитаемую причину и структурированные детали, чтобы решение
// можно было объяснить без воспроизведения внутреннего состояния.
type RiskDecision struct {
	Action  RiskAction             `json:"action"`
	Level   RiskLevel              `json:"level"`
	Reason  string                 `json:"reason"`
	Details map[string]interface{} `json:"details,omitempty"`

	// SuggestedVolume - рекомендованный объём (для REDUCE_ONLY), 0 если не задан
	SuggestedVolume float64 `json:"suggested_volume,omitempty"`

	// CheckedBy - какой монитор вынес решение (circuit_breaker, drawdown, exposure, ...)
	CheckedBy string    `json:"checked_by,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Allowed возвращает true если ордер можно отправлять на исполнение
func (d *RiskDecision) Allowed() bool {
	return d.Action == ActionAllow
}

// Allow создаёт разрешающее решение
func Allow(checkedBy string) *RiskDecision {
	return &RiskDecision{
		Action:    ActionAllow,
		Level:     LevelNormal,
		CheckedBy: checkedBy,
		Timestamp: time.Now(),
	}
}

// Reject создаёт отклоняющее решение с причиной и деталями
func Reject(checkedBy string, level RiskLevel, reason string, details map[string]interface{}) *RiskDecision {
	return &RiskDecision{
		Action:    ActionReject,
		Level:     level,
		Reason:    reason,
		Details:   details,
		CheckedBy: checkedBy,
		Timestamp: time.Now(),
	}
}
