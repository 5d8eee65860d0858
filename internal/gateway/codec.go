package gateway

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"execgate/internal/models"
)

// codec.go - wire-протокол шлюза
//
// Назначение:
// Сериализация запросов и разбор ответов терминального моста.
// Протокол - JSON поверх HTTP POST, одна точка входа /api/command:
//
//	запрос:  {"action": "ORDER_SEND", "req_id": "...", "payload": {...}}
//	ответ:   {"error": false, "ticket": 123, "msg": "done", "retcode": 10009}
//
// Используется json-iterator: горячий путь исполнения ордеров
// не должен платить за reflection стандартного encoding/json.

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ============================================================
// Действия протокола
// ============================================================

const (
	ActionOrderSend  = "ORDER_SEND"
	ActionStateFetch = "STATE_FETCH"
	ActionPing       = "PING"
)

// ============================================================
// Wire-типы
// ============================================================

// commandEnvelope - конверт запроса к шлюзу
type commandEnvelope struct {
	Action    string      `json:"action"`
	RequestID string      `json:"req_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"ts"`
}

// orderResponse - ответ шлюза на ORDER_SEND
type orderResponse struct {
	Error   bool   `json:"error"`
	Ticket  int    `json:"ticket"`
	Message string `json:"msg"`
	Retcode int    `json:"retcode"`
}

// stateResponse - ответ шлюза на STATE_FETCH
type stateResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"msg,omitempty"`
	Account struct {
		Equity     float64 `json:"equity"`
		Balance    float64 `json:"balance"`
		Margin     float64 `json:"margin"`
		FreeMargin float64 `json:"free_margin"`
	} `json:"account"`
	Positions []struct {
		Ticket       int     `json:"ticket"`
		Symbol       string  `json:"symbol"`
		Volume       float64 `json:"volume"`
		OpenPrice    float64 `json:"open_price"`
		CurrentPrice float64 `json:"current_price"`
		Profit       float64 `json:"profit"`
	} `json:"positions"`
}

// pingResponse - ответ шлюза на PING
type pingResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"msg,omitempty"`
}

// ============================================================
// Кодирование запросов
// ============================================================

// encodeOrderSend сериализует торговую команду в конверт протокола
func encodeOrderSend(cmd *models.OrderCommand) ([]byte, error) {
	env := commandEnvelope{
		Action:    ActionOrderSend,
		RequestID: cmd.RequestID,
		Payload:   cmd,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации команды: %w", err)
	}
	return data, nil
}

// encodeAction сериализует запрос без payload (STATE_FETCH, PING)
func encodeAction(action string) ([]byte, error) {
	env := commandEnvelope{
		Action:    action,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса %s: %w", action, err)
	}
	return data, nil
}

// ============================================================
// Разбор ответов
// ============================================================

// decodeOrderResponse разбирает ответ на ORDER_SEND
func decodeOrderResponse(data []byte) (*models.OrderResult, error) {
	var resp orderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа ORDER_SEND: %w", err)
	}
	return &models.OrderResult{
		Ticket:  resp.Ticket,
		Retcode: resp.Retcode,
		Message: resp.Message,
	}, nil
}

// decodeStateResponse разбирает ответ на STATE_FETCH в снимок состояния
func decodeStateResponse(data []byte) (*models.StateSnapshot, error) {
	var resp stateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа STATE_FETCH: %w", err)
	}
	if resp.Error {
		return nil, &GatewayError{
			Op:      ActionStateFetch,
			Message: resp.Message,
		}
	}

	snap := &models.StateSnapshot{
		Account: models.AccountSnapshot{
			Equity:     resp.Account.Equity,
			Balance:    resp.Account.Balance,
			Margin:     resp.Account.Margin,
			FreeMargin: resp.Account.FreeMargin,
		},
		Positions: make([]models.PositionSnapshot, 0, len(resp.Positions)),
		FetchedAt: time.Now().UTC(),
	}
	for _, p := range resp.Positions {
		snap.Positions = append(snap.Positions, models.PositionSnapshot{
			Ticket:        p.Ticket,
			Symbol:        p.Symbol,
			Volume:        p.Volume,
			OpenPrice:     p.OpenPrice,
			CurrentPrice:  p.CurrentPrice,
			UnrealizedPnl: p.Profit,
		})
	}
	return snap, nil
}
