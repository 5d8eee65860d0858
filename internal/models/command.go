package models

import "time"

// Типы ордеров в протоколе шлюза
const (
	OrderTypeBuy  = "OP_BUY"
	OrderTypeSell = "OP_SELL"
)

// Лимиты полей команды (валидируются до отправки на шлюз)
const (
	MinVolume        = 0.01
	MaxVolume        = 100.0
	MaxCommentLength = 31
)

// OrderCommand - команда на исполнение ордера
//
// RequestID генерируется вызывающей стороной и служит ключом идемпотентности:
// повторная отправка команды с тем же id имеет тот же эффект, что и однократная.
type OrderCommand struct {
	RequestID  string  `json:"req_id"`
	Symbol     string  `json:"symbol"`
	Type       string  `json:"type"` // OP_BUY или OP_SELL
	Volume     float64 `json:"volume"`
	Magic      int     `json:"magic"`
	Comment    string  `json:"comment"`
	StopLoss   float64 `json:"sl"`
	TakeProfit float64 `json:"tp"`
}

// Side возвращает направление ордера в терминах риск-движка
func (c *OrderCommand) Side() string {
	if c.Type == OrderTypeSell {
		return SideSell
	}
	return SideBuy
}

// OrderResult - результат исполнения ордера шлюзом
type OrderResult struct {
	Ticket  int    `json:"ticket"`
	Retcode int    `json:"retcode"`
	Message string `json:"msg"`
}

// TicketRecord - запись об исполненном ордере для журнала
type TicketRecord struct {
	RequestID  string    `json:"request_id" db:"request_id"`
	Ticket     int       `json:"ticket" db:"ticket"`
	Symbol     string    `json:"symbol" db:"symbol"`
	Type       string    `json:"type" db:"type"`
	Volume     float64   `json:"volume" db:"volume"`
	ExecutedAt time.Time `json:"executed_at" db:"executed_at"`
}
