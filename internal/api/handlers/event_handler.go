package handlers

import (
	"net/http"
	"strconv"
	"time"

	"execgate/internal/models"
	"execgate/internal/repository"
)

// EventHandler отвечает за журнал событий риск-движка
//
// Функции:
// - Выборка событий с фильтрами (GET /api/v1/events)
type EventHandler struct {
	svc RiskServiceInterface
}

// NewEventHandler создает новый EventHandler
func NewEventHandler(svc RiskServiceInterface) *EventHandler {
	return &EventHandler{svc: svc}
}

// GetEventsResponse - ответ на выборку событий
type GetEventsResponse struct {
	Events []models.RiskEvent `json:"events"`
	Total  int                `json:"total"`
}

// GetEvents возвращает события журнала, новые первыми
// GET /api/v1/events?type=&severity=&symbol=&since=&limit=
func (h *EventHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.EventFilter{
		Type:     q.Get("type"),
		Severity: q.Get("severity"),
		Symbol:   q.Get("symbol"),
	}

	if since := q.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since, want RFC3339: "+err.Error())
			return
		}
		filter.Since = ts
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	events, err := h.svc.ListEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []models.RiskEvent{}
	}

	writeJSON(w, http.StatusOK, GetEventsResponse{Events: events, Total: len(events)})
}
