package utils

import (
	"time"
)

// time.go - утилиты для работы со временем
//
// Назначение:
// Границы торгового дня и вспомогательные временные функции.
// Торговый день считается в UTC: ежедневный сброс риск-состояния
// и фильтрация журнала событий привязаны к этим границам.
//
// Функции:
// - GetDayStart / GetDayStartFrom: начало дня (00:00:00 UTC)
// - GetDayEnd / GetDayEndFrom: конец дня (23:59:59.999999999 UTC)
// - SameTradingDay: принадлежат ли два момента одному торговому дню
// - UntilNextDayStart: сколько осталось до начала следующего дня

// ============================================================
// Границы торгового дня
// ============================================================

// GetDayStart возвращает начало текущего дня (00:00:00) в UTC
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now().UTC())
}

// GetDayStartFrom возвращает начало дня для указанного времени в UTC
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetDayEnd возвращает конец текущего дня (23:59:59.999999999) в UTC
func GetDayEnd() time.Time {
	return GetDayEndFrom(time.Now().UTC())
}

// GetDayEndFrom возвращает конец дня для указанного времени в UTC
func GetDayEndFrom(t time.Time) time.Time {
	return GetDayStartFrom(t).Add(24*time.Hour - time.Nanosecond)
}

// ============================================================
// Вспомогательные функции
// ============================================================

// SameTradingDay сообщает, принадлежат ли два момента одному
// торговому дню (календарная дата в UTC).
func SameTradingDay(a, b time.Time) bool {
	return GetDayStartFrom(a).Equal(GetDayStartFrom(b))
}

// UntilNextDayStart возвращает длительность до начала следующего
// торгового дня. Используется планировщиком ежедневного сброса.
func UntilNextDayStart(now time.Time) time.Duration {
	next := GetDayStartFrom(now).Add(24 * time.Hour)
	return next.Sub(now.UTC())
}
