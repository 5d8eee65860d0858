package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"execgate/internal/killswitch"
	"execgate/internal/models"
	"execgate/internal/risk"
)

// memJournal - журнал тикетов в памяти
type memJournal struct {
	mu      sync.Mutex
	records []*models.TicketRecord
	err     error
}

func (j *memJournal) SaveTicket(ctx context.Context, rec *models.TicketRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.records = append(j.records, rec)
	return nil
}

type controllerFixture struct {
	c       *Controller
	gw      *fakeGateway
	ks      *killswitch.KillSwitch
	mgr     *risk.Manager
	store   *StateStore
	bus     *risk.EventBus
	journal *memJournal
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	logger := zap.NewNop()

	ks, err := killswitch.New(filepath.Join(t.TempDir(), "kill_switch"), logger)
	if err != nil {
		t.Fatalf("killswitch: %v", err)
	}

	bus := risk.NewEventBus(logger)
	t.Cleanup(bus.Close)
	mgr := risk.NewManager(models.DefaultRiskLimits(), bus, logger)
	gw := okGateway(501)
	router := newTestRouter(gw, 10, time.Hour)
	store := NewStateStore()
	journal := &memJournal{}

	c := NewController(ks, mgr, router, store, bus, journal, logger)
	return &controllerFixture{c: c, gw: gw, ks: ks, mgr: mgr, store: store, bus: bus, journal: journal}
}

func (f *controllerFixture) syncState(balance, equity float64) {
	snap := testSnapshot(balance, equity)
	f.store.Adopt(snap)
	f.mgr.UpdateEquity(equity)
	f.mgr.SetHealthy(true, "")
}

func TestController_SubmitHappyPath(t *testing.T) {
	f := newControllerFixture(t)
	f.syncState(10000, 10000)

	events := f.bus.Subscribe("test")

	result, decision, err := f.c.Submit(context.Background(), routerCmd("ok-1"), 1.1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !decision.Allowed() {
		t.Fatalf("ожидали ALLOW, получили %+v", decision)
	}
	if result.Ticket != 501 {
		t.Errorf("ticket = %d, want 501", result.Ticket)
	}

	// Тикет попал в реестр и в журнал
	if _, ok := f.store.KnownTickets()[501]; !ok {
		t.Error("тикет должен попасть в локальный реестр")
	}
	f.journal.mu.Lock()
	saved := len(f.journal.records)
	f.journal.mu.Unlock()
	if saved != 1 {
		t.Errorf("записей в журнале = %d, want 1", saved)
	}

	select {
	case ev := <-events:
		if ev.Type != models.EventTypeOrderExecuted {
			t.Errorf("тип события = %s, want %s", ev.Type, models.EventTypeOrderExecuted)
		}
	case <-time.After(time.Second):
		t.Error("событие об исполнении не опубликовано")
	}
}

func TestController_KillSwitchBlocksEverything(t *testing.T) {
	f := newControllerFixture(t)
	f.syncState(10000, 10000)

	if _, err := f.ks.Activate("ручная остановка"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	result, decision, err := f.c.Submit(context.Background(), routerCmd("ks-1"), 1.1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result != nil || decision.Allowed() {
		t.Fatalf("при активном аварийном стопе ордер не исполняется: %+v", decision)
	}
	if decision.CheckedBy != "kill_switch" || decision.Level != models.LevelHalt {
		t.Errorf("решение должно исходить от kill_switch с уровнем HALT: %+v", decision)
	}
	if f.gw.calls() != 0 {
		t.Error("команда не должна дойти до шлюза")
	}
}

func TestController_RejectsBeforeStartupSync(t *testing.T) {
	f := newControllerFixture(t)
	// Состояние намеренно не синхронизировано

	result, decision, err := f.c.Submit(context.Background(), routerCmd("ns-1"), 1.1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result != nil || decision.Allowed() {
		t.Fatal("до синхронизации ордера отклоняются")
	}
	if f.gw.calls() != 0 {
		t.Error("команда не должна дойти до шлюза")
	}
}

func TestController_RiskRejectionEmitsEvent(t *testing.T) {
	f := newControllerFixture(t)
	f.syncState(10000, 10000)
	f.mgr.SetHealthy(false, "state drift")

	events := f.bus.Subscribe("test")

	_, decision, err := f.c.Submit(context.Background(), routerCmd("rj-1"), 1.1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if decision.Allowed() {
		t.Fatal("нездоровый движок должен отклонить ордер")
	}

	select {
	case ev := <-events:
		if ev.Type != models.EventTypeOrderRejected {
			t.Errorf("тип события = %s, want %s", ev.Type, models.EventTypeOrderRejected)
		}
	case <-time.After(time.Second):
		t.Error("событие об отклонении не опубликовано")
	}
	if f.gw.calls() != 0 {
		t.Error("отклонённая команда не должна дойти до шлюза")
	}
}

func TestController_JournalFailureDoesNotFailOrder(t *testing.T) {
	f := newControllerFixture(t)
	f.syncState(10000, 10000)
	f.journal.err = os.ErrPermission

	result, _, err := f.c.Submit(context.Background(), routerCmd("jf-1"), 1.1)
	if err != nil {
		t.Fatalf("ошибка журнала не должна ронять исполнение: %v", err)
	}
	if result == nil || result.Ticket != 501 {
		t.Errorf("результат = %+v, want ticket 501", result)
	}
}

func TestController_CriticalEventTripsKillSwitch(t *testing.T) {
	f := newControllerFixture(t)

	limits := models.DefaultRiskLimits()
	limits.Drawdown.MaxDailyLoss = 100
	if err := f.mgr.UpdateLimits(limits); err != nil {
		t.Fatalf("UpdateLimits: %v", err)
	}
	f.syncState(10000, 10000)

	// Дневной убыток сверх абсолютного предела - HALT, аварийный стоп взведён
	f.c.RecordTradeResult("EURUSD", -150)

	if !f.ks.IsActive() {
		t.Fatal("HALT просадки должен взводить аварийный стоп")
	}

	_, decision, err := f.c.Submit(context.Background(), routerCmd("ht-1"), 1.1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if decision.Allowed() {
		t.Error("после взвода аварийного стопа ордера отклоняются")
	}
}

func TestController_RecordTradeResultShiftsExpectedBalance(t *testing.T) {
	f := newControllerFixture(t)
	f.syncState(10000, 10000)

	f.c.RecordTradeResult("EURUSD", -50)

	expected, ok := f.store.ExpectedBalance()
	if !ok {
		t.Fatal("ожидаемый баланс должен быть валиден после синхронизации")
	}
	if expected != 9950 {
		t.Errorf("ожидаемый баланс = %.2f, want 9950", expected)
	}
}
