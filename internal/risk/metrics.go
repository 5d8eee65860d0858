package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики риск-движка
// ============================================================
//
// Использование:
// - Grafana дашборды состояния риск-движка
// - Alertmanager: алерты на срабатывания breaker и HALT
// - Анализ частоты отклонений по мониторам

// ============ Решения ============

// DecisionsTotal - решения риск-движка по действиям и мониторам
var DecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "execgate",
		Subsystem: "risk",
		Name:      "decisions_total",
		Help:      "Risk engine decisions by action and deciding monitor",
	},
	[]string{"action", "checked_by"},
)

// CheckLatency - длительность полной проверки ордера
var CheckLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "execgate",
		Subsystem: "risk",
		Name:      "check_latency_ms",
		Help:      "Full risk check latency in milliseconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	},
)

// ============ Circuit breaker ============

// BreakerTrips - срабатывания breaker по символам
var BreakerTrips = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "execgate",
		Subsystem: "risk",
		Name:      "breaker_trips_total",
		Help:      "Circuit breaker trips by symbol",
	},
	[]string{"symbol"},
)

// BreakerState - текущее состояние breaker (1 в активном состоянии)
var BreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "execgate",
		Subsystem: "risk",
		Name:      "breaker_state",
		Help:      "Circuit breaker state per symbol (1=active state)",
	},
	[]string{"symbol", "state"},
)

// ============ Просадка и экспозиция ============

// DrawdownLevel - текущий уровень риска счёта (1=активный)
var DrawdownLevel = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "execgate",
		Subsystem: "risk",
		Name:      "drawdown_level",
		Help:      "Account risk level (1=active level)",
	},
	[]string{"level"},
)

// ExposureRejects - отклонения по экспозиции по осям лимитов
var ExposureRejects = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "execgate",
		Subsystem: "risk",
		Name:      "exposure_rejects_total",
		Help:      "Exposure rejections by limit axis",
	},
	[]string{"axis"},
)

// ============ Шина событий ============

// EventsPublished - опубликованные риск-события по типам
var EventsPublished = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "execgate",
		Subsystem: "risk",
		Name:      "events_published_total",
		Help:      "Published risk events by type",
	},
	[]string{"type"},
)

// EventsDropped - потерянные события по подписчикам
var EventsDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "execgate",
		Subsystem: "risk",
		Name:      "events_dropped_total",
		Help:      "Risk events dropped due to full subscriber buffers",
	},
	[]string{"subscriber"},
)

// ============ Helper функции ============

// RecordDecision фиксирует решение риск-движка
func RecordDecision(action, checkedBy string) {
	DecisionsTotal.WithLabelValues(action, checkedBy).Inc()
}

// RecordCheckLatency фиксирует длительность проверки
func RecordCheckLatency(ms float64) {
	CheckLatency.Observe(ms)
}

// RecordBreakerTrip фиксирует срабатывание breaker
func RecordBreakerTrip(symbol string) {
	BreakerTrips.WithLabelValues(symbol).Inc()
}

// RecordBreakerState выставляет gauge состояния breaker
func RecordBreakerState(symbol, state string) {
	for _, s := range []string{StateClosed, StateOpen, StateHalfOpen} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		BreakerState.WithLabelValues(symbol, s).Set(v)
	}
}

// RecordDrawdownLevel выставляет gauge уровня риска счёта
func RecordDrawdownLevel(level string) {
	for _, l := range []string{"NORMAL", "WARNING", "CRITICAL", "HALT"} {
		v := 0.0
		if l == level {
			v = 1.0
		}
		DrawdownLevel.WithLabelValues(l).Set(v)
	}
}

// RecordExposureReject фиксирует отклонение по экспозиции
func RecordExposureReject(axis string) {
	ExposureRejects.WithLabelValues(axis).Inc()
}

// RecordEvent фиксирует публикацию события
func RecordEvent(eventType string) {
	EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventDropped фиксирует потерю события
func RecordEventDropped(subscriber string) {
	EventsDropped.WithLabelValues(subscriber).Inc()
}
