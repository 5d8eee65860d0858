package models

import (
	"strings"
	"time"
)

// Track - независимый риск-бакет со своими лимитами экспозиции
type Track string

// Торговые треки
const (
	TrackEUR Track = "EUR"
	TrackBTC Track = "BTC"
	TrackGBP Track = "GBP"
)

// AllTracks возвращает список всех известных треков
func AllTracks() []Track {
	return []Track{TrackEUR, TrackBTC, TrackGBP}
}

// TrackForSymbol определяет трек по префиксу символа.
// Возвращает false если символ не принадлежит ни одному треку.
func TrackForSymbol(symbol string) (Track, bool) {
	if len(symbol) < 3 {
		return "", false
	}
	prefix := Track(strings.ToUpper(symbol[:3]))
	for _, tr := range AllTracks() {
		if prefix == tr {
			return tr, true
		}
	}
	return "", false
}

// RiskContext - снимок данных для проверки одного ордера
//
// Строится на каждый ордер из текущего локального состояния (которое,
// в свою очередь, всегда перезаписывается состоянием шлюза - см. reconciler).
// Эфемерный: живёт только на время проверки.
type RiskContext struct {
	Symbol string
	Track  Track
	Side   string  // buy или sell
	Volume float64 // объём ордера в лотах
	Price  float64 // ожидаемая цена исполнения

	AccountEquity   float64
	AvailableMargin float64

	// Positions - открытые позиции: symbol → подписанный объём
	// (положительный = long, отрицательный = short)
	Positions map[string]PositionSnapshot

	DailyPnl  float64
	Timestamp time.Time
}

// OrderValue возвращает номинальную стоимость ордера
func (c *RiskContext) OrderValue() float64 {
	return c.Volume * c.Price
}

// IsReducing возвращает true если ордер уменьшает существующую позицию
// (противоположное направление к открытой позиции по тому же символу)
func (c *RiskContext) IsReducing() bool {
	pos, ok := c.Positions[c.Symbol]
	if !ok || pos.Volume == 0 {
		return false
	}
	if pos.Volume > 0 && c.Side == SideSell {
		return true
	}
	if pos.Volume < 0 && c.Side == SideBuy {
		return true
	}
	return false
}

// IsOpening возвращает true если ордер открывает или наращивает позицию
func (c *RiskContext) IsOpening() bool {
	return !c.IsReducing()
}

// Side constants for orders
const (
	SideBuy  = "buy"  // покупка (открытие long или закрытие short)
	SideSell = "sell" // продажа (открытие short или закрытие long)
)
