package utils

import (
	"math"
)

// math.go - математические утилиты для риск-расчётов
//
// Назначение:
// Вспомогательные математические функции для расчёта просадки,
// экспозиции и нормализации объёмов. Все функции чистые,
// без побочных эффектов.
//
// Функции:
// - RoundToLotStep: округление объёма вниз до шага лота
// - DrawdownPct: относительная просадка от пика
// - ExposurePct: доля стоимости позиции от капитала
// - ClampVolume: прижатие объёма к допустимому диапазону

// RoundToLotStep округляет объём ВНИЗ до ближайшего кратного step.
//
// Округление вниз гарантирует, что скорректированный объём
// никогда не превысит разрешённый риск-движком.
//
// Примеры:
//   - RoundToLotStep(0.123456, 0.01) = 0.12
//   - RoundToLotStep(1.999, 0.01) = 1.99
//
// Если step <= 0, возвращает исходное значение.
func RoundToLotStep(volume, step float64) float64 {
	if step <= 0 {
		return volume
	}
	return math.Floor(volume/step) * step
}

// DrawdownPct возвращает относительную просадку текущего equity от пика.
//
// Возвращает значение в [0, 1]: 0.05 означает просадку 5%.
// Если peak <= 0 или equity >= peak, просадки нет - возвращается 0.
func DrawdownPct(peak, equity float64) float64 {
	if peak <= 0 || equity >= peak {
		return 0
	}
	return (peak - equity) / peak
}

// ExposurePct возвращает долю стоимости позиции от капитала счёта.
//
// Если equity <= 0, возвращает +Inf: деление на ноль здесь означает,
// что счёт в неопределённом состоянии и любая экспозиция чрезмерна.
func ExposurePct(positionValue, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return math.Abs(positionValue) / equity
}

// ClampVolume прижимает объём к диапазону [min, max].
func ClampVolume(volume, min, max float64) float64 {
	if volume < min {
		return min
	}
	if volume > max {
		return max
	}
	return volume
}
