// Package engine связывает риск-движок, идемпотентный роутер команд
// и сверку состояния в единый путь исполнения ордеров.
package engine

import (
	"sync"
	"time"

	"execgate/internal/models"
)

// statestore.go - локальный снимок состояния счёта
//
// Назначение:
// Хранит последний снимок состояния от шлюза плюс тикеты, исполненные
// через этот процесс. Локальное состояние - КЭШ, не источник истины:
// сверка всегда перезаписывает его состоянием шлюза.

// StateStore - локальное состояние счёта
type StateStore struct {
	mu   sync.RWMutex
	snap *models.StateSnapshot

	// knownTickets - тикеты, открытые через этот процесс: ticket -> symbol.
	// Используется сверкой для поиска orphan/zombie позиций.
	knownTickets map[int]string

	// expectedBalance - баланс, который мы ожидаем увидеть у шлюза:
	// последний подтверждённый баланс плюс зафиксированные результаты
	expectedBalance      float64
	expectedBalanceValid bool
}

// NewStateStore создаёт пустое хранилище
func NewStateStore() *StateStore {
	return &StateStore{
		knownTickets: make(map[int]string),
	}
}

// Adopt перезаписывает локальное состояние снимком шлюза
func (s *StateStore) Adopt(snap *models.StateSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap = snap
	s.expectedBalance = snap.Account.Balance
	s.expectedBalanceValid = true

	// Принятый снимок становится локальной истиной целиком:
	// реестр тикетов - точная копия позиций шлюза
	s.knownTickets = make(map[int]string, len(snap.Positions))
	for _, p := range snap.Positions {
		s.knownTickets[p.Ticket] = p.Symbol
	}
}

// RecordTicket регистрирует тикет, открытый этим процессом
func (s *StateStore) RecordTicket(ticket int, symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knownTickets[ticket] = symbol
}

// RecordRealizedPnl сдвигает ожидаемый баланс на зафиксированный результат
func (s *StateStore) RecordRealizedPnl(pnl float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expectedBalanceValid {
		s.expectedBalance += pnl
	}
}

// Snapshot возвращает последний снимок (nil до первой сверки)
func (s *StateStore) Snapshot() *models.StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// KnownTickets возвращает копию реестра тикетов
func (s *StateStore) KnownTickets() map[int]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]string, len(s.knownTickets))
	for t, sym := range s.knownTickets {
		out[t] = sym
	}
	return out
}

// ExpectedBalance возвращает ожидаемый баланс и его валидность
func (s *StateStore) ExpectedBalance() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expectedBalance, s.expectedBalanceValid
}

// RiskContext строит контекст риск-проверки для команды из текущего снимка.
// Возвращает nil, если снимка ещё нет (до стартовой синхронизации).
func (s *StateStore) RiskContext(cmd *models.OrderCommand, price float64) *models.RiskContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return nil
	}

	track, _ := models.TrackForSymbol(cmd.Symbol)
	return &models.RiskContext{
		Symbol:          cmd.Symbol,
		Track:           track,
		Side:            cmd.Side(),
		Volume:          cmd.Volume,
		Price:           price,
		AccountEquity:   s.snap.Account.Equity,
		AvailableMargin: s.snap.Account.FreeMargin,
		Positions:       s.snap.PositionsBySymbol(),
		Timestamp:       time.Now().UTC(),
	}
}
