package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"execgate/internal/gateway"
	"execgate/internal/models"
	"execgate/internal/risk"
	"execgate/pkg/retry"
)

// reconciler.go - сверка локального состояния с шлюзом
//
// Назначение:
// Шлюз - единственный источник истины о счёте. Сверка периодически
// читает его состояние, сравнивает с локальным кэшем и при любом
// расхождении: (1) публикует событие, (2) закрывает риск-движок
// (healthy=false), (3) принимает состояние шлюза как новое локальное.
// Локальное состояние НИКОГДА не выигрывает.
//
// Принцип fail-closed: пока стартовая синхронизация не прошла,
// торговля не начинается вовсе; пока дрейф не рассосался, риск-движок
// отклоняет все ордера.

// Виды расхождений
const (
	DriftOrphan  = "orphan"  // у шлюза есть позиция, о которой мы не знаем
	DriftZombie  = "zombie"  // мы считаем позицию открытой, шлюз - нет
	DriftBalance = "balance" // баланс разошёлся сверх допуска
)

// Drift - одно обнаруженное расхождение
type Drift struct {
	Kind   string `json:"kind"`
	Ticket int    `json:"ticket,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Detail string `json:"detail"`
}

// Reconciler - фоновая сверка состояния
type Reconciler struct {
	gw    gateway.Client
	store *StateStore
	risk  *risk.Manager
	bus   *risk.EventBus

	interval       time.Duration
	balanceEpsilon float64
	retryCfg       retry.Config

	logger *zap.Logger
}

// NewReconciler создаёт сверку
func NewReconciler(gw gateway.Client, store *StateStore, riskMgr *risk.Manager, bus *risk.EventBus, interval time.Duration, balanceEpsilon float64, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		gw:             gw,
		store:          store,
		risk:           riskMgr,
		bus:            bus,
		interval:       interval,
		balanceEpsilon: balanceEpsilon,
		retryCfg:       retry.ConservativeConfig(),
		logger:         logger,
	}
}

// ============================================================
// Стартовая синхронизация
// ============================================================

// PerformStartupSync блокирующе синхронизирует состояние при старте.
//
// Ошибка означает, что торговлю начинать НЕЛЬЗЯ: вызывающая сторона
// обязана завершить процесс, а не продолжить без состояния.
func (r *Reconciler) PerformStartupSync(ctx context.Context) error {
	r.logger.Info("стартовая синхронизация состояния...")

	snap, err := retry.DoWithResult(ctx, func() (*models.StateSnapshot, error) {
		return r.gw.FetchState(ctx)
	}, r.retryCfg)
	if err != nil {
		return fmt.Errorf("стартовая синхронизация не удалась: %w", err)
	}

	r.store.Adopt(snap)
	r.risk.UpdateEquity(snap.Account.Equity)
	r.risk.SetHealthy(true, "")
	LastSyncTimestamp.Set(float64(snap.FetchedAt.Unix()))

	r.logger.Info("стартовая синхронизация завершена",
		zap.Float64("equity", snap.Account.Equity),
		zap.Float64("balance", snap.Account.Balance),
		zap.Int("positions", len(snap.Positions)))
	r.bus.Emit(models.EventTypeSyncComplete, models.SeverityInfo, "",
		fmt.Sprintf("стартовая синхронизация: %d позиций, equity %.2f", len(snap.Positions), snap.Account.Equity),
		map[string]interface{}{"positions": len(snap.Positions), "equity": snap.Account.Equity})
	return nil
}

// ============================================================
// Фоновый цикл
// ============================================================

// Run крутит периодическую сверку до отмены контекста
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("фоновая сверка запущена", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("фоновая сверка остановлена")
			return
		case <-ticker.C:
			r.Sync(ctx)
		}
	}
}

// Sync выполняет один цикл сверки
func (r *Reconciler) Sync(ctx context.Context) {
	snap, err := r.gw.FetchState(ctx)
	if err != nil {
		// Недоступный шлюз оставляет нас без истины: движок закрывается
		r.logger.Error("сверка: не удалось получить состояние шлюза", zap.Error(err))
		r.risk.SetHealthy(false, "state fetch failed: "+err.Error())
		RecordSync("fetch_error")
		return
	}

	drifts := r.DetectDrift(snap)

	if len(drifts) > 0 {
		for _, d := range drifts {
			r.logger.Warn("обнаружен дрейф состояния",
				zap.String("kind", d.Kind),
				zap.Int("ticket", d.Ticket),
				zap.String("symbol", d.Symbol),
				zap.String("detail", d.Detail))
			RecordDrift(d.Kind)
			r.bus.Emit(models.EventTypeDriftDetected, models.SeverityWarn, d.Symbol,
				d.Detail, map[string]interface{}{"kind": d.Kind, "ticket": d.Ticket})
		}
		r.risk.SetHealthy(false, fmt.Sprintf("%d state drift(s), last: %s", len(drifts), drifts[len(drifts)-1].Detail))
		RecordSync("drift")
	} else {
		r.risk.SetHealthy(true, "")
		RecordSync("clean")
	}

	// Состояние шлюза принимается безоговорочно - дрейф там был или нет
	r.store.Adopt(snap)
	r.risk.UpdateEquity(snap.Account.Equity)
	LastSyncTimestamp.Set(float64(snap.FetchedAt.Unix()))
}

// ============================================================
// Обнаружение дрейфа
// ============================================================

// DetectDrift сравнивает снимок шлюза с локальным состоянием
func (r *Reconciler) DetectDrift(snap *models.StateSnapshot) []Drift {
	var drifts []Drift

	known := r.store.KnownTickets()
	remote := make(map[int]models.PositionSnapshot, len(snap.Positions))
	for _, p := range snap.Positions {
		remote[p.Ticket] = p
	}

	// Orphan: позиция есть у шлюза, но не в локальном реестре
	for ticket, p := range remote {
		if _, ok := known[ticket]; !ok {
			drifts = append(drifts, Drift{
				Kind:   DriftOrphan,
				Ticket: ticket,
				Symbol: p.Symbol,
				Detail: fmt.Sprintf("orphan position: ticket %d (%s, %.2f lots) открыт вне процесса", ticket, p.Symbol, p.Volume),
			})
		}
	}

	// Zombie: локальный реестр знает тикет, которого у шлюза больше нет
	for ticket, symbol := range known {
		if _, ok := remote[ticket]; !ok {
			drifts = append(drifts, Drift{
				Kind:   DriftZombie,
				Ticket: ticket,
				Symbol: symbol,
				Detail: fmt.Sprintf("zombie position: ticket %d (%s) закрыт вне процесса", ticket, symbol),
			})
		}
	}

	// Баланс: расхождение сверх допуска
	if expected, ok := r.store.ExpectedBalance(); ok {
		if diff := math.Abs(snap.Account.Balance - expected); diff > r.balanceEpsilon {
			drifts = append(drifts, Drift{
				Kind:   DriftBalance,
				Detail: fmt.Sprintf("balance drift: шлюз %.2f, ожидалось %.2f (допуск %.2f)", snap.Account.Balance, expected, r.balanceEpsilon),
			})
		}
	}

	return drifts
}
