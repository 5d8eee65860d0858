package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"execgate/internal/service"
)

// RiskHandler отвечает за управление риск-движком
//
// Функции:
// - Сводное состояние движка (GET /api/v1/status)
// - Получение лимитов (GET /api/v1/limits)
// - Обновление лимитов на лету (PATCH /api/v1/limits)
// - Дневной сброс (POST /api/v1/risk/reset-daily)
// - Сброс breaker'а символа (POST /api/v1/risk/breakers/{symbol}/reset)
type RiskHandler struct {
	svc RiskServiceInterface
}

// NewRiskHandler создает новый RiskHandler
func NewRiskHandler(svc RiskServiceInterface) *RiskHandler {
	return &RiskHandler{svc: svc}
}

// GetStatus возвращает сводное состояние риск-движка и аварийного стопа
// GET /api/v1/status
func (h *RiskHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetStatus())
}

// GetLimits возвращает действующие лимиты
// GET /api/v1/limits
func (h *RiskHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetLimits())
}

// UpdateLimits обновляет лимиты. Переданные секции заменяются целиком,
// остальные не трогаются.
// PATCH /api/v1/limits
func (h *RiskHandler) UpdateLimits(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateLimitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	limits, err := h.svc.UpdateLimits(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, limits)
}

// ResetDaily начинает новый торговый день
// POST /api/v1/risk/reset-daily
func (h *RiskHandler) ResetDaily(w http.ResponseWriter, r *http.Request) {
	h.svc.ResetDaily()
	writeJSON(w, http.StatusOK, map[string]string{"message": "daily reset performed"})
}

// ResetSymbol сбрасывает breaker символа в CLOSED
// POST /api/v1/risk/breakers/{symbol}/reset
func (h *RiskHandler) ResetSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if err := h.svc.ResetSymbol(symbol); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "breaker reset", "symbol": symbol})
}
