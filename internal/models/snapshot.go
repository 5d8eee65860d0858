package models

import "time"

// AccountSnapshot - состояние счёта, полученное от шлюза
type AccountSnapshot struct {
	Equity     float64 `json:"equity"`
	Balance    float64 `json:"balance"`
	Margin     float64 `json:"margin"`      // используемая маржа
	FreeMargin float64 `json:"free_margin"` // доступная маржа
}

// PositionSnapshot - открытая позиция в состоянии шлюза
type PositionSnapshot struct {
	Ticket        int     `json:"ticket"`
	Symbol        string  `json:"symbol"`
	Volume        float64 `json:"volume"` // подписанный: >0 long, <0 short
	OpenPrice     float64 `json:"open_price"`
	CurrentPrice  float64 `json:"current_price"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
}

// Value возвращает номинальную стоимость позиции (всегда неотрицательную)
func (p PositionSnapshot) Value() float64 {
	v := p.Volume * p.CurrentPrice
	if v < 0 {
		return -v
	}
	return v
}

// StateSnapshot - полный снимок состояния счёта и позиций от шлюза
//
// Шлюз - единственный источник истины: снимок всегда перезаписывает
// локальное состояние, никогда наоборот.
type StateSnapshot struct {
	Account   AccountSnapshot    `json:"account"`
	Positions []PositionSnapshot `json:"positions"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// PositionsBySymbol индексирует позиции по символу
func (s *StateSnapshot) PositionsBySymbol() map[string]PositionSnapshot {
	out := make(map[string]PositionSnapshot, len(s.Positions))
	for _, p := range s.Positions {
		out[p.Symbol] = p
	}
	return out
}
