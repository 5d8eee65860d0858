package risk

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"execgate/internal/models"
)

func testBreakerLimits() models.CircuitBreakerLimits {
	return models.CircuitBreakerLimits{
		MaxConsecutiveLosses:     3,
		MaxLossAmount:            500.0,
		MaxLossPercentage:        0.05,
		CooldownSeconds:          300,
		HalfOpenMaxTrades:        2,
		HalfOpenSuccessThreshold: 1,
		MaxTripsPerDay:           3,
		EscalationMultiplier:     2.0,
	}
}

// newTestBreaker создаёт breaker с управляемыми часами
func newTestBreaker(t *testing.T) (*CircuitBreaker, *time.Time) {
	t.Helper()
	cb := NewCircuitBreaker(testBreakerLimits(), zap.NewNop())
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func loseN(cb *CircuitBreaker, symbol string, n int) {
	for i := 0; i < n; i++ {
		cb.RecordResult(symbol, -10, 10000)
	}
}

func TestBreaker_TripsAfterConsecutiveLosses(t *testing.T) {
	cb, _ := newTestBreaker(t)

	// Две подряд - ещё рано
	loseN(cb, "EURUSD", 2)
	if d := cb.Check("EURUSD"); !d.Allowed() {
		t.Fatalf("после 2 убытков ордер должен пройти: %v", d.Reason)
	}

	// Третья подряд - срабатывание
	cb.RecordResult("EURUSD", -10, 10000)
	d := cb.Check("EURUSD")
	if d.Allowed() {
		t.Fatal("после 3 убытков подряд символ должен быть заблокирован")
	}
	if d.CheckedBy != "circuit_breaker" {
		t.Errorf("checked_by = %q", d.CheckedBy)
	}

	// Другой символ не затронут
	if d := cb.Check("GBPUSD"); !d.Allowed() {
		t.Error("блокировка одного символа не должна задевать другие")
	}
}

func TestBreaker_WinResetsStreak(t *testing.T) {
	cb, _ := newTestBreaker(t)

	loseN(cb, "EURUSD", 2)
	cb.RecordResult("EURUSD", +50, 10000) // серия прервана
	loseN(cb, "EURUSD", 2)

	if d := cb.Check("EURUSD"); !d.Allowed() {
		t.Error("выигрыш должен обнулять серию убытков")
	}
}

func TestBreaker_TripsOnSessionLossAmount(t *testing.T) {
	cb, _ := newTestBreaker(t)

	// Убытки с перемежающимися выигрышами: серия не набирается,
	// но накопленный убыток переваливает за MaxLossAmount
	cb.RecordResult("EURUSD", -300, 10000)
	cb.RecordResult("EURUSD", +1, 10000)
	cb.RecordResult("EURUSD", -250, 10000)

	if d := cb.Check("EURUSD"); d.Allowed() {
		t.Error("накопленный убыток 550 >= 500 должен взводить breaker")
	}
}

func TestBreaker_CooldownEscalation(t *testing.T) {
	cb, now := newTestBreaker(t)

	// Первое срабатывание: базовый cooldown 300s
	loseN(cb, "EURUSD", 3)
	st := cb.symbols["EURUSD"]
	if got := st.cooldownUntil.Sub(*now); got != 300*time.Second {
		t.Errorf("cooldown 1-го срабатывания = %v, want 300s", got)
	}

	// Выходим из OPEN через cooldown, закрываемся выигрышем
	*now = now.Add(301 * time.Second)
	if d := cb.Check("EURUSD"); !d.Allowed() {
		t.Fatalf("после cooldown пробный ордер должен пройти: %v", d.Reason)
	}
	cb.RecordResult("EURUSD", +10, 10000) // HALF_OPEN -> CLOSED

	// Второе срабатывание: base * multiplier = 600s
	loseN(cb, "EURUSD", 3)
	if got := st.cooldownUntil.Sub(*now); got != 600*time.Second {
		t.Errorf("cooldown 2-го срабатывания = %v, want 600s (геометрическая эскалация)", got)
	}
}

func TestBreaker_HalfOpenTransition(t *testing.T) {
	cb, now := newTestBreaker(t)

	loseN(cb, "EURUSD", 3)
	if st := cb.symbols["EURUSD"].state; st != StateOpen {
		t.Fatalf("state = %q, want OPEN", st)
	}

	// До истечения cooldown - отказ
	*now = now.Add(100 * time.Second)
	if d := cb.Check("EURUSD"); d.Allowed() {
		t.Fatal("до истечения cooldown ордер должен отклоняться")
	}

	// После истечения - ленивый переход в HALF_OPEN
	*now = now.Add(250 * time.Second)
	if d := cb.Check("EURUSD"); !d.Allowed() {
		t.Fatalf("после cooldown ордер должен пройти: %v", d.Reason)
	}
	if st := cb.symbols["EURUSD"].state; st != StateHalfOpen {
		t.Fatalf("state = %q, want HALF_OPEN", st)
	}

	// Лимит пробных сделок: вторая проходит, третья - нет
	if d := cb.Check("EURUSD"); !d.Allowed() {
		t.Fatalf("вторая пробная сделка должна пройти: %v", d.Reason)
	}
	if d := cb.Check("EURUSD"); d.Allowed() {
		t.Error("лимит пробных сделок исчерпан, третья должна отклоняться")
	}
}

func TestBreaker_HalfOpenWinCloses(t *testing.T) {
	cb, now := newTestBreaker(t)

	loseN(cb, "EURUSD", 3)
	*now = now.Add(301 * time.Second)
	cb.Check("EURUSD")
	cb.RecordResult("EURUSD", +5, 10000)

	if st := cb.symbols["EURUSD"].state; st != StateClosed {
		t.Fatalf("state = %q, want CLOSED после выигрыша в HALF_OPEN", st)
	}
	if cb.symbols["EURUSD"].sessionLoss != 0 {
		t.Error("возврат в CLOSED должен обнулять накопленный убыток")
	}
}

func TestBreaker_HalfOpenSingleLossDoesNotReopen(t *testing.T) {
	cb, now := newTestBreaker(t)

	loseN(cb, "EURUSD", 3)
	*now = now.Add(301 * time.Second)
	cb.Check("EURUSD")

	// Одиночный убыток в HALF_OPEN не взводит breaker: счётчик серии
	// обнулён при срабатывании, нужна полная новая серия
	cb.RecordResult("EURUSD", -1, 100000)
	if st := cb.symbols["EURUSD"].state; st != StateHalfOpen {
		t.Fatalf("state = %q, want HALF_OPEN: одиночный убыток не перевзводит", st)
	}
}

func TestBreaker_TripCapReTripsOnAnyLoss(t *testing.T) {
	cb, now := newTestBreaker(t)

	// Доводим символ до дневного лимита срабатываний (3), каждый раз
	// возвращаясь в CLOSED через пробный выигрыш
	for trip := 1; trip <= 3; trip++ {
		loseN(cb, "EURUSD", 3)
		st := cb.symbols["EURUSD"]
		if st.tripCount != trip {
			t.Fatalf("trip_count = %d, want %d", st.tripCount, trip)
		}
		*now = st.cooldownUntil.Add(time.Second)
		if d := cb.Check("EURUSD"); !d.Allowed() {
			t.Fatalf("пробный ордер после cooldown %d должен пройти: %v", trip, d.Reason)
		}
		cb.RecordResult("EURUSD", +5, 10000) // HALF_OPEN -> CLOSED
	}

	// Лимит исчерпан: одиночный убыток перевзводит без полной серии
	cb.RecordResult("EURUSD", -1, 10000)
	st := cb.symbols["EURUSD"]
	if st.state != StateOpen {
		t.Fatalf("state = %q, want OPEN: после лимита срабатываний любой убыток взводит", st.state)
	}
	if st.tripCount != 4 {
		t.Errorf("trip_count = %d, want 4", st.tripCount)
	}
}

func TestBreaker_OnTripCallback(t *testing.T) {
	cb, _ := newTestBreaker(t)

	var gotSymbol string
	var gotTrips int
	var gotCooldown time.Duration
	cb.OnTrip(func(symbol string, trips int, cooldown time.Duration) {
		gotSymbol, gotTrips, gotCooldown = symbol, trips, cooldown
	})

	loseN(cb, "BTCUSD", 3)

	if gotSymbol != "BTCUSD" || gotTrips != 1 || gotCooldown != 300*time.Second {
		t.Errorf("callback: symbol=%q trips=%d cooldown=%v", gotSymbol, gotTrips, gotCooldown)
	}
}

func TestBreaker_ResetDaily(t *testing.T) {
	cb, _ := newTestBreaker(t)

	loseN(cb, "EURUSD", 3)
	cb.ResetDaily()

	if d := cb.Check("EURUSD"); !d.Allowed() {
		t.Error("после дневного сброса символ должен торговаться")
	}
	if len(cb.States()) != 1 {
		// Check выше лениво пересоздал состояние
		t.Errorf("states = %d, want 1", len(cb.States()))
	}
}
