package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// validator.go - валидация входных данных
//
// Назначение:
// Проверка корректности полей торговых команд до того, как они
// попадут в риск-движок или уйдут на шлюз. Валидация здесь -
// первая линия: бракованная команда отклоняется без сетевых вызовов.
//
// Функции:
// - ValidateSymbol: проверка формата символа (EURUSD, BTCUSD)
// - ValidateVolume: проверка объёма в допустимом диапазоне
// - ValidateComment: длина комментария ордера
// - ValidateOrderType: тип ордера (OP_BUY / OP_SELL)
// - ValidateStops: неотрицательные уровни stop-loss / take-profit
// - ValidateRequestID: непустой идентификатор идемпотентности
//
// Возвращает error с описанием проблемы или nil

// ============================================================
// Константы и ошибки
// ============================================================

const (
	// MinOrderVolume - минимальный объём ордера в лотах
	MinOrderVolume = 0.01
	// MaxOrderVolume - максимальный объём ордера в лотах
	MaxOrderVolume = 100.0
	// MaxOrderCommentLen - максимальная длина комментария ордера
	MaxOrderCommentLen = 31
	// MaxRequestIDLen - разумный предел длины идентификатора запроса
	MaxRequestIDLen = 64
)

var (
	ErrEmptySymbol    = errors.New("символ не может быть пустым")
	ErrInvalidSymbol  = errors.New("некорректный формат символа")
	ErrEmptyRequestID = errors.New("req_id не может быть пустым")
)

// Символ: 6-12 заглавных букв/цифр, без разделителей (EURUSD, BTCUSD, XAUUSD)
var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{6,12}$`)

// ============================================================
// Валидаторы
// ============================================================

// ValidateSymbol проверяет формат торгового символа.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return ErrEmptySymbol
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// ValidateVolume проверяет, что объём попадает в допустимый диапазон.
// Границы включительные.
func ValidateVolume(volume float64) error {
	if volume < MinOrderVolume || volume > MaxOrderVolume {
		return fmt.Errorf("объём %.4f вне диапазона [%.2f, %.2f]",
			volume, MinOrderVolume, MaxOrderVolume)
	}
	return nil
}

// ValidateComment проверяет длину комментария ордера.
// Пустой комментарий допустим. Длина считается в байтах,
// как её считает терминал на принимающей стороне.
func ValidateComment(comment string) error {
	if len(comment) > MaxOrderCommentLen {
		return fmt.Errorf("комментарий длиной %d байт превышает лимит %d",
			len(comment), MaxOrderCommentLen)
	}
	if !utf8.ValidString(comment) {
		return errors.New("комментарий содержит некорректный UTF-8")
	}
	return nil
}

// ValidateOrderType проверяет тип ордера.
func ValidateOrderType(orderType string) error {
	switch orderType {
	case "OP_BUY", "OP_SELL":
		return nil
	default:
		return fmt.Errorf("неизвестный тип ордера: %q", orderType)
	}
}

// ValidateStops проверяет уровни stop-loss и take-profit.
// Ноль означает "уровень не задан" и допустим; отрицательная цена - брак.
func ValidateStops(sl, tp float64) error {
	if sl < 0 {
		return fmt.Errorf("stop-loss %.5f не может быть отрицательным", sl)
	}
	if tp < 0 {
		return fmt.Errorf("take-profit %.5f не может быть отрицательным", tp)
	}
	return nil
}

// ValidateRequestID проверяет идентификатор идемпотентности.
// Пробельный идентификатор считается пустым.
func ValidateRequestID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyRequestID
	}
	if len(id) > MaxRequestIDLen {
		return fmt.Errorf("req_id длиной %d превышает лимит %d", len(id), MaxRequestIDLen)
	}
	return nil
}
