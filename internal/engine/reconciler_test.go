package engine

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"execgate/internal/models"
	"execgate/internal/risk"
	"execgate/pkg/retry"
)

func testSnapshot(balance, equity float64, positions ...models.PositionSnapshot) *models.StateSnapshot {
	return &models.StateSnapshot{
		Account: models.AccountSnapshot{
			Balance:    balance,
			Equity:     equity,
			FreeMargin: equity,
		},
		Positions: positions,
		FetchedAt: time.Now(),
	}
}

func newTestReconciler(gw *fakeGateway) (*Reconciler, *StateStore, *risk.Manager) {
	logger := zap.NewNop()
	bus := risk.NewEventBus(logger)
	mgr := risk.NewManager(models.DefaultRiskLimits(), bus, logger)
	store := NewStateStore()
	r := NewReconciler(gw, store, mgr, bus, time.Second, 0.01, logger)
	// В тестах один быстрый заход вместо консервативного расписания
	r.retryCfg = retry.Config{MaxRetries: 1, InitialDelay: time.Millisecond}
	return r, store, mgr
}

func TestReconciler_StartupSyncAdoptsState(t *testing.T) {
	snap := testSnapshot(10000, 10000,
		models.PositionSnapshot{Ticket: 11, Symbol: "EURUSD", Volume: 0.5, CurrentPrice: 1.1})
	gw := &fakeGateway{stateFn: func() (*models.StateSnapshot, error) { return snap, nil }}
	r, store, mgr := newTestReconciler(gw)

	if err := r.PerformStartupSync(context.Background()); err != nil {
		t.Fatalf("стартовая синхронизация: %v", err)
	}

	got := store.Snapshot()
	if got == nil || got.Account.Equity != 10000 {
		t.Errorf("снимок не принят: %+v", got)
	}
	if _, ok := store.KnownTickets()[11]; !ok {
		t.Error("позиция шлюза должна попасть в реестр тикетов")
	}
	if !mgr.GetStatus().Healthy {
		t.Error("после стартовой синхронизации движок должен быть healthy")
	}
}

func TestReconciler_StartupSyncFailureIsFatal(t *testing.T) {
	gw := &fakeGateway{stateFn: func() (*models.StateSnapshot, error) {
		return nil, context.DeadlineExceeded
	}}
	r, store, mgr := newTestReconciler(gw)

	if err := r.PerformStartupSync(context.Background()); err == nil {
		t.Fatal("недоступный шлюз при старте должен давать ошибку")
	}
	if store.Snapshot() != nil {
		t.Error("состояние не должно приниматься при провале синхронизации")
	}
	if mgr.GetStatus().Healthy {
		t.Error("движок не должен открываться без синхронизации")
	}
}

func TestReconciler_DetectOrphan(t *testing.T) {
	gw := &fakeGateway{}
	r, store, _ := newTestReconciler(gw)
	store.Adopt(testSnapshot(10000, 10000))

	// У шлюза появился тикет, которого мы не открывали
	snap := testSnapshot(10000, 10000,
		models.PositionSnapshot{Ticket: 99, Symbol: "GBPUSD", Volume: 1.0, CurrentPrice: 1.3})

	drifts := r.DetectDrift(snap)
	if len(drifts) != 1 {
		t.Fatalf("расхождений = %d, want 1: %+v", len(drifts), drifts)
	}
	if drifts[0].Kind != DriftOrphan || drifts[0].Ticket != 99 {
		t.Errorf("ожидали orphan по тикету 99, получили %+v", drifts[0])
	}
}

func TestReconciler_DetectZombie(t *testing.T) {
	gw := &fakeGateway{}
	r, store, _ := newTestReconciler(gw)
	store.Adopt(testSnapshot(10000, 10000,
		models.PositionSnapshot{Ticket: 5, Symbol: "EURUSD", Volume: 0.5, CurrentPrice: 1.1}))

	// Позиция исчезла у шлюза
	drifts := r.DetectDrift(testSnapshot(10000, 10000))
	if len(drifts) != 1 {
		t.Fatalf("расхождений = %d, want 1: %+v", len(drifts), drifts)
	}
	if drifts[0].Kind != DriftZombie || drifts[0].Ticket != 5 {
		t.Errorf("ожидали zombie по тикету 5, получили %+v", drifts[0])
	}
}

func TestReconciler_DetectBalanceDrift(t *testing.T) {
	gw := &fakeGateway{}
	r, store, _ := newTestReconciler(gw)
	store.Adopt(testSnapshot(10000, 10000))

	tests := []struct {
		name    string
		balance float64
		drifted bool
	}{
		{"в пределах допуска", 10000.005, false},
		{"ровно на границе", 10000.01, false},
		{"сверх допуска", 10000.02, true},
		{"расхождение вниз", 9950, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drifts := r.DetectDrift(testSnapshot(tt.balance, tt.balance))
			got := len(drifts) == 1 && drifts[0].Kind == DriftBalance
			if got != tt.drifted {
				t.Errorf("дрейф = %v, want %v (%+v)", got, tt.drifted, drifts)
			}
		})
	}
}

func TestReconciler_BalanceDriftAccountsForRealizedPnl(t *testing.T) {
	gw := &fakeGateway{}
	r, store, _ := newTestReconciler(gw)
	store.Adopt(testSnapshot(10000, 10000))
	store.RecordRealizedPnl(-150)

	// Шлюз показывает баланс с учётом зафиксированного убытка - дрейфа нет
	if drifts := r.DetectDrift(testSnapshot(9850, 9850)); len(drifts) != 0 {
		t.Errorf("ожидаемое изменение баланса не дрейф: %+v", drifts)
	}
}

func TestReconciler_SyncDriftClosesEngine(t *testing.T) {
	current := testSnapshot(10000, 10000)
	gw := &fakeGateway{stateFn: func() (*models.StateSnapshot, error) { return current, nil }}
	r, store, mgr := newTestReconciler(gw)

	if err := r.PerformStartupSync(context.Background()); err != nil {
		t.Fatalf("стартовая синхронизация: %v", err)
	}

	// Orphan у шлюза - движок закрывается
	current = testSnapshot(10000, 10000,
		models.PositionSnapshot{Ticket: 77, Symbol: "BTCUSD", Volume: 0.1, CurrentPrice: 40000})
	r.Sync(context.Background())

	if mgr.GetStatus().Healthy {
		t.Error("при дрейфе движок должен закрыться")
	}
	// Состояние шлюза принято несмотря на дрейф
	if _, ok := store.KnownTickets()[77]; !ok {
		t.Error("снимок шлюза должен быть принят даже при дрейфе")
	}

	// Следующая чистая сверка открывает движок обратно
	r.Sync(context.Background())
	if !mgr.GetStatus().Healthy {
		t.Error("чистая сверка после принятия дрейфа должна вернуть healthy")
	}
}

func TestReconciler_SyncFetchErrorClosesEngine(t *testing.T) {
	snap := testSnapshot(10000, 10000)
	failing := false
	gw := &fakeGateway{stateFn: func() (*models.StateSnapshot, error) {
		if failing {
			return nil, context.DeadlineExceeded
		}
		return snap, nil
	}}
	r, _, mgr := newTestReconciler(gw)

	if err := r.PerformStartupSync(context.Background()); err != nil {
		t.Fatalf("стартовая синхронизация: %v", err)
	}

	failing = true
	r.Sync(context.Background())
	if mgr.GetStatus().Healthy {
		t.Error("без связи со шлюзом движок должен закрыться")
	}

	failing = false
	r.Sync(context.Background())
	if !mgr.GetStatus().Healthy {
		t.Error("восстановление связи с чистой сверкой должно вернуть healthy")
	}
}
