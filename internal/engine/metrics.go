package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики пути исполнения
// ============================================================

// ============ Роутер команд ============

// DispatchesTotal - исходы отправки команд
var DispatchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "execgate",
		Subsystem: "router",
		Name:      "dispatches_total",
		Help:      "Command dispatch outcomes (executed, rejected, unknown_fate)",
	},
	[]string{"outcome"},
)

// DispatchLatency - длительность отправки команды, включая ретраи
var DispatchLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "execgate",
		Subsystem: "router",
		Name:      "dispatch_latency_ms",
		Help:      "Command dispatch latency including retries in milliseconds",
		Buckets:   []float64{50, 100, 200, 500, 1000, 2000, 5000, 15000},
	},
)

// DispatchRetries - повторы вызовов шлюза
var DispatchRetries = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "execgate",
		Subsystem: "router",
		Name:      "dispatch_retries_total",
		Help:      "Gateway call retries on transient failures",
	},
)

// CacheHits - повторы команд, обслуженные из кэша идемпотентности
var CacheHits = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "execgate",
		Subsystem: "router",
		Name:      "idempotency_cache_hits_total",
		Help:      "Duplicate commands served from the idempotency cache",
	},
)

// CacheEvictions - вытеснения из кэша идемпотентности
var CacheEvictions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "execgate",
		Subsystem: "router",
		Name:      "idempotency_cache_evictions_total",
		Help:      "Idempotency cache evictions by cause (lru, ttl)",
	},
	[]string{"cause"},
)

// CacheEntries - текущий размер кэша идемпотентности
var CacheEntries = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "execgate",
		Subsystem: "router",
		Name:      "idempotency_cache_entries",
		Help:      "Current idempotency cache size",
	},
)

// SingleFlightWaits - конкурентные дубликаты, ожидавшие исполнителя
var SingleFlightWaits = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "execgate",
		Subsystem: "router",
		Name:      "single_flight_waits_total",
		Help:      "Concurrent duplicate dispatches that waited for the executing call",
	},
)

// ============ Сверка состояния ============

// SyncsTotal - циклы сверки по исходам
var SyncsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "execgate",
		Subsystem: "reconciler",
		Name:      "syncs_total",
		Help:      "Reconciliation cycles by outcome (clean, drift, fetch_error)",
	},
	[]string{"outcome"},
)

// DriftsTotal - обнаруженные расхождения по видам
var DriftsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "execgate",
		Subsystem: "reconciler",
		Name:      "drifts_total",
		Help:      "Detected state drifts by kind (orphan, zombie, balance)",
	},
	[]string{"kind"},
)

// LastSyncTimestamp - время последней успешной сверки (unix сек)
var LastSyncTimestamp = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "execgate",
		Subsystem: "reconciler",
		Name:      "last_sync_timestamp_seconds",
		Help:      "Unix timestamp of the last successful state sync",
	},
)

// ============ Helper функции ============

// RecordDispatchOutcome фиксирует исход отправки
func RecordDispatchOutcome(outcome string) {
	DispatchesTotal.WithLabelValues(outcome).Inc()
}

// RecordDispatchLatency фиксирует длительность отправки
func RecordDispatchLatency(ms float64) {
	DispatchLatency.Observe(ms)
}

// RecordDispatchRetry фиксирует повтор вызова шлюза
func RecordDispatchRetry() {
	DispatchRetries.Inc()
}

// RecordCacheHit фиксирует попадание в кэш идемпотентности
func RecordCacheHit() {
	CacheHits.Inc()
}

// RecordCacheEviction фиксирует вытеснение из кэша
func RecordCacheEviction(cause string) {
	CacheEvictions.WithLabelValues(cause).Inc()
}

// RecordCacheSize выставляет текущий размер кэша
func RecordCacheSize(n int) {
	CacheEntries.Set(float64(n))
}

// RecordSingleFlightWait фиксирует ожидание конкурентного дубликата
func RecordSingleFlightWait() {
	SingleFlightWaits.Inc()
}

// RecordSync фиксирует исход цикла сверки
func RecordSync(outcome string) {
	SyncsTotal.WithLabelValues(outcome).Inc()
}

// RecordDrift фиксирует обнаруженное расхождение
func RecordDrift(kind string) {
	DriftsTotal.WithLabelValues(kind).Inc()
}
