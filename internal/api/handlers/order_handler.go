package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"execgate/internal/engine"
	"execgate/internal/models"
	"execgate/pkg/retry"
)

// OrderHandler отвечает за приём торговых команд
//
// Функции:
// - Отправка команды на исполнение (POST /api/v1/orders)
//
// Идемпотентность обеспечивает req_id: повтор запроса с тем же
// идентификатором вернёт результат первого исполнения.
type OrderHandler struct {
	submitter OrderSubmitter
}

// NewOrderHandler создает новый OrderHandler
func NewOrderHandler(submitter OrderSubmitter) *OrderHandler {
	return &OrderHandler{submitter: submitter}
}

// SubmitOrderRequest - тело торговой команды
type SubmitOrderRequest struct {
	RequestID  string  `json:"req_id"`
	Symbol     string  `json:"symbol"`
	Type       string  `json:"type"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"` // ожидаемая цена исполнения, для риск-проверки
	StopLoss   float64 `json:"sl,omitempty"`
	TakeProfit float64 `json:"tp,omitempty"`
	Comment    string  `json:"comment,omitempty"`
	Magic      int     `json:"magic,omitempty"`
}

// SubmitOrderResponse - результат прохождения команды
type SubmitOrderResponse struct {
	Result   *models.OrderResult  `json:"result,omitempty"`
	Decision *models.RiskDecision `json:"decision,omitempty"`
}

// SubmitOrder проводит команду через риск-проверку и исполнение
// POST /api/v1/orders
//
// Коды ответа:
//   - 200: исполнено
//   - 403: остановлено риск-проверкой (решение в теле)
//   - 400: некорректная команда
//   - 502: окончательный отказ шлюза
//   - 504: судьба команды неизвестна (бюджет ретраев исчерпан)
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Price <= 0 {
		writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}

	cmd := &models.OrderCommand{
		RequestID:  req.RequestID,
		Symbol:     req.Symbol,
		Type:       req.Type,
		Volume:     req.Volume,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Comment:    req.Comment,
		Magic:      req.Magic,
	}

	result, decision, err := h.submitter.Submit(r.Context(), cmd, req.Price)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidCommand):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, retry.ErrExhausted):
			// Команда могла исполниться: клиент обязан дождаться сверки,
			// а не слать новую команду с другим req_id
			writeError(w, http.StatusGatewayTimeout, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	if !decision.Allowed() {
		writeJSON(w, http.StatusForbidden, SubmitOrderResponse{Decision: decision})
		return
	}

	writeJSON(w, http.StatusOK, SubmitOrderResponse{Result: result, Decision: decision})
}
