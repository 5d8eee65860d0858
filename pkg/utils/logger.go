package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger.go - настройка структурированного логирования
//
// Назначение:
// Инициализация и настройка zap logger для всего сервиса.
//
// Функции:
// - InitLogger: создать и настроить logger
//   - Выбор формата (json, console)
//   - Уровни: debug, info, warn, error
// - MustInitLogger: InitLogger с паникой при ошибке (для main)
//
// Использование:
// Логгер создаётся один раз в main и передаётся вниз через
// конструкторы компонентов. Глобальный zap.L() не используется.

// ============================================================
// Инициализация
// ============================================================

// InitLogger создаёт настроенный zap.Logger.
//
// Параметры:
//   - level: уровень логирования ("debug", "info", "warn", "error")
//   - format: формат вывода ("json" для production, "console" для разработки)
//
// Возвращает:
//   - *zap.Logger и nil при успехе
//   - nil и error при неизвестном уровне или ошибке сборки
func InitLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info", "":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("неизвестный уровень логирования: %q", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch strings.ToLower(format) {
	case "json", "":
		cfg.Encoding = "json"
	case "console", "text":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("неизвестный формат логирования: %q", format)
	}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("ошибка создания logger: %w", err)
	}
	return logger, nil
}

// MustInitLogger - как InitLogger, но паникует при ошибке.
// Используется только в main, где без логгера продолжать бессмысленно.
func MustInitLogger(level, format string) *zap.Logger {
	logger, err := InitLogger(level, format)
	if err != nil {
		panic(err)
	}
	return logger
}
