package handlers

import (
	"encoding/json"
	"net/http"
)

// KillSwitchHandler отвечает за управление аварийным стопом
//
// Функции:
// - Текущее состояние (GET /api/v1/killswitch)
// - Ручной взвод (POST /api/v1/killswitch)
// - Снятие (DELETE /api/v1/killswitch)
//
// Снятие - единственный способ возобновить торговлю после взвода:
// автоматического сброса не существует.
type KillSwitchHandler struct {
	svc RiskServiceInterface
}

// NewKillSwitchHandler создает новый KillSwitchHandler
func NewKillSwitchHandler(svc RiskServiceInterface) *KillSwitchHandler {
	return &KillSwitchHandler{svc: svc}
}

// GetKillSwitch возвращает состояние аварийного стопа
// GET /api/v1/killswitch
func (h *KillSwitchHandler) GetKillSwitch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetStatus().KillSwitch)
}

// ActivateRequest - тело запроса ручного взвода
type ActivateRequest struct {
	Reason string `json:"reason"`
}

// ActivateKillSwitch взводит аварийный стоп вручную
// POST /api/v1/killswitch
func (h *KillSwitchHandler) ActivateKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if r.Body != nil {
		// Пустое тело допустимо - причина подставится по умолчанию
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	activated, err := h.svc.ActivateKillSwitch(req.Reason)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusOK
	message := "kill switch already active"
	if activated {
		status = http.StatusCreated
		message = "kill switch activated"
	}
	writeJSON(w, status, map[string]string{"message": message})
}

// ResetKillSwitch снимает аварийный стоп
// DELETE /api/v1/killswitch
func (h *KillSwitchHandler) ResetKillSwitch(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ResetKillSwitch(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
