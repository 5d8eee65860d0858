// Package risk реализует многоуровневый риск-движок: circuit breaker
// по символам, монитор просадки счёта и монитор экспозиции.
package risk

// Состояния circuit breaker по символу
const (
	// StateClosed - торговля разрешена
	StateClosed = "CLOSED"
	// StateOpen - торговля по символу заблокирована до истечения cooldown
	StateOpen = "OPEN"
	// StateHalfOpen - пробный режим после cooldown: торговля разрешена,
	// результат решает дальнейшую судьбу
	StateHalfOpen = "HALF_OPEN"
)

// ValidTransitions определяет допустимые переходы между состояниями breaker
var ValidTransitions = map[string][]string{
	StateClosed:   {StateOpen},
	StateOpen:     {StateHalfOpen},
	StateHalfOpen: {StateClosed, StateOpen},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния для UI
func StateInfo(s string) string {
	switch s {
	case StateClosed:
		return "Торговля по символу разрешена"
	case StateOpen:
		return "Символ заблокирован, идёт cooldown"
	case StateHalfOpen:
		return "Пробный режим после cooldown"
	default:
		return "Неизвестное состояние"
	}
}

// IsTradable возвращает true если состояние допускает отправку ордеров
func IsTradable(s string) bool {
	return s == StateClosed || s == StateHalfOpen
}
