// Package api собирает HTTP маршруты операторского API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"execgate/internal/api/handlers"
	"execgate/internal/api/middleware"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	RiskService handlers.RiskServiceInterface
	Submitter   handlers.OrderSubmitter

	// OperatorTokenHash - bcrypt-хэш операторского токена.
	// Пустой хэш отключает защищённые маршруты вне development.
	OperatorTokenHash string

	// StreamHandler обслуживает WebSocket стрим событий (может быть nil)
	StreamHandler http.HandlerFunc

	Logger *zap.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /orders
//	│   └── POST / - отправить торговую команду (идемпотентно по req_id)
//	├── /status
//	│   └── GET / - сводное состояние риск-движка и аварийного стопа
//	├── /limits
//	│   ├── GET / - действующие лимиты
//	│   └── PATCH / - обновить лимиты на лету
//	├── /events
//	│   └── GET / - журнал событий с фильтрами
//	├── /killswitch
//	│   ├── GET / - состояние аварийного стопа
//	│   ├── POST / - ручной взвод
//	│   └── DELETE / - снятие (единственный способ возобновить торговлю)
//	└── /risk/
//	    ├── POST /reset-daily - начать новый торговый день
//	    └── POST /breakers/{symbol}/reset - сбросить breaker символа
//
// /ws/stream - WebSocket стрим событий риск-движка
// /metrics   - Prometheus метрики
// /health    - liveness probe
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. OperatorAuth (для всех /api/v1 маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()

	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger.Named("http")))
	router.Use(middleware.CORS)

	var riskHandler *handlers.RiskHandler
	var killSwitchHandler *handlers.KillSwitchHandler
	var eventHandler *handlers.EventHandler
	if deps.RiskService != nil {
		riskHandler = handlers.NewRiskHandler(deps.RiskService)
		killSwitchHandler = handlers.NewKillSwitchHandler(deps.RiskService)
		eventHandler = handlers.NewEventHandler(deps.RiskService)
	}

	var orderHandler *handlers.OrderHandler
	if deps.Submitter != nil {
		orderHandler = handlers.NewOrderHandler(deps.Submitter)
	}

	// API v1 routes, все под операторской аутентификацией
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.OperatorAuth(deps.OperatorTokenHash, logger))

	if orderHandler != nil {
		apiRouter.HandleFunc("/orders", orderHandler.SubmitOrder).Methods("POST")
	}

	if riskHandler != nil {
		apiRouter.HandleFunc("/status", riskHandler.GetStatus).Methods("GET")
		apiRouter.HandleFunc("/limits", riskHandler.GetLimits).Methods("GET")
		apiRouter.HandleFunc("/limits", riskHandler.UpdateLimits).Methods("PATCH")
		apiRouter.HandleFunc("/risk/reset-daily", riskHandler.ResetDaily).Methods("POST")
		apiRouter.HandleFunc("/risk/breakers/{symbol}/reset", riskHandler.ResetSymbol).Methods("POST")
	}

	if killSwitchHandler != nil {
		apiRouter.HandleFunc("/killswitch", killSwitchHandler.GetKillSwitch).Methods("GET")
		apiRouter.HandleFunc("/killswitch", killSwitchHandler.ActivateKillSwitch).Methods("POST")
		apiRouter.HandleFunc("/killswitch", killSwitchHandler.ResetKillSwitch).Methods("DELETE")
	}

	if eventHandler != nil {
		apiRouter.HandleFunc("/events", eventHandler.GetEvents).Methods("GET")
	}

	// WebSocket стрим событий
	if deps.StreamHandler != nil {
		router.HandleFunc("/ws/stream", deps.StreamHandler)
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
