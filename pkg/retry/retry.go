package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// Config конфигурация для retry логики
//
// Экспоненциальный backoff:
// delay = min(InitialDelay * Multiplier^(attempt-1), MaxDelay)
//
// Бюджет ограничен ДВУМЯ способами: количеством попыток (MaxRetries)
// и настенными часами (MaxElapsed). Останавливаемся на том, что
// исчерпается раньше, и возвращаем терминальную ExhaustedError -
// вызывающий обязан трактовать судьбу операции как неизвестную,
// а не как гарантированный провал.
type Config struct {
	// MaxRetries - максимальное количество попыток (включая первую)
	// 0 = лимит только по MaxElapsed
	MaxRetries int

	// MaxElapsed - общий бюджет времени на все попытки (включая задержки)
	// 0 = лимит только по MaxRetries
	MaxElapsed time.Duration

	// InitialDelay - начальная задержка между попытками
	// По умолчанию: 100ms
	InitialDelay time.Duration

	// MaxDelay - максимальная задержка между попытками
	// По умолчанию: 30s
	MaxDelay time.Duration

	// Multiplier - множитель для экспоненциального роста
	// По умолчанию: 2.0 (удвоение после каждой попытки)
	Multiplier float64

	// DisableBackoff - ждать константный InitialDelay между попытками
	DisableBackoff bool

	// JitterFactor - фактор случайности (0.0 - 1.0)
	// По умолчанию: 0 (точное расписание)
	JitterFactor float64

	// RetryIf - функция для определения нужно ли retry'ить ошибку
	// По умолчанию: IsTransient (только транзиентные инфраструктурные ошибки)
	RetryIf func(error) bool

	// OnRetry - callback вызываемый перед каждым retry
	// Полезно для логирования
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig возвращает конфигурацию по умолчанию
//
// Подходит для большинства запросов к шлюзу:
// - 4 попытки в пределах 30 секунд
// - Задержки: 100ms, 200ms, 400ms
func DefaultConfig() Config {
	return Config{
		MaxRetries:   4,
		MaxElapsed:   30 * time.Second,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// AggressiveConfig для критичных операций (например, принудительное закрытие)
//
// Больше попыток, быстрее retry:
// - 6 попыток
// - Задержки: 50ms, 100ms, 200ms, 400ms, 800ms
func AggressiveConfig() Config {
	return Config{
		MaxRetries:   6,
		MaxElapsed:   20 * time.Second,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// ConservativeConfig для некритичных операций (например, сверка состояния)
//
// Меньше попыток, медленнее retry:
// - 3 попытки
// - Задержки: 500ms, 1s
func ConservativeConfig() Config {
	return Config{
		MaxRetries:   3,
		MaxElapsed:   60 * time.Second,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// validate проверяет и устанавливает значения по умолчанию
func (c *Config) validate() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	if c.JitterFactor > 1 {
		c.JitterFactor = 1
	}
	if c.RetryIf == nil {
		c.RetryIf = IsTransient
	}
}

// calculateDelay вычисляет задержку после попытки attempt (нумерация с нуля)
func (c *Config) calculateDelay(attempt int) time.Duration {
	if c.DisableBackoff {
		return c.InitialDelay
	}

	// Экспоненциальный рост: InitialDelay * Multiplier^attempt
	delay := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))

	// Ограничиваем максимальной задержкой
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	// Добавляем jitter
	if c.JitterFactor > 0 {
		jitter := delay * c.JitterFactor * (rand.Float64()*2 - 1) // -JitterFactor до +JitterFactor
		delay += jitter
	}

	// Не допускаем отрицательную задержку
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// ============================================================
// Терминальная ошибка исчерпания бюджета
// ============================================================

// ErrExhausted - сентинел для errors.Is: бюджет retry исчерпан
var ErrExhausted = errors.New("retry budget exhausted")

// ExhaustedError возвращается когда исчерпан бюджет попыток или времени.
// Оборачивает последнюю ошибку; судьба операции на удалённой стороне
// при этом НЕИЗВЕСТНА.
type ExhaustedError struct {
	Attempts int
	Elapsed  time.Duration
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts in %v: %v", e.Attempts, e.Elapsed, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// ============================================================
// Исполнение с повторными попытками
// ============================================================

// Do выполняет операцию с повторными попытками
//
// Возвращает:
//   - nil: операция успешна
//   - ошибку как есть: ошибка не подлежит retry (RetryIf вернул false)
//   - *ExhaustedError: бюджет попыток/времени исчерпан
//
// Пример:
//
//	err := retry.Do(ctx, func() error {
//	    return client.ExecuteOrder(ctx, payload)
//	}, retry.DefaultConfig())
func Do(ctx context.Context, operation func() error, cfg Config) error {
	_, err := DoWithResult(ctx, func() (struct{}, error) {
		return struct{}{}, operation()
	}, cfg)
	return err
}

// DoWithResult выполняет операцию с результатом и retry
//
//	result, err := retry.DoWithResult(ctx, func() (*OrderResult, error) {
//	    return client.ExecuteOrder(ctx, payload)
//	}, retry.DefaultConfig())
func DoWithResult[T any](ctx context.Context, operation func() (T, error), cfg Config) (T, error) {
	cfg.validate()

	var lastErr error
	var zero T
	start := time.Now()
	attempts := 0

	for attempt := 0; cfg.MaxRetries <= 0 || attempt < cfg.MaxRetries; attempt++ {
		// Отмена контекста не retry'ится никогда
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return zero, &ExhaustedError{Attempts: attempts, Elapsed: time.Since(start), Err: lastErr}
			}
			return zero, ctx.Err()
		default:
		}

		// Выполняем операцию
		result, err := operation()
		attempts++
		if err == nil {
			return result, nil // Успех!
		}

		lastErr = err

		// Не-транзиентные ошибки пробрасываются немедленно, как есть
		if !cfg.RetryIf(err) {
			return zero, err
		}

		// Последняя попытка - не ждём
		if cfg.MaxRetries > 0 && attempt >= cfg.MaxRetries-1 {
			break
		}

		// Вычисляем задержку
		delay := cfg.calculateDelay(attempt)

		// Проверяем бюджет времени ДО сна: если задержка выводит нас
		// за MaxElapsed, дальнейшие попытки бессмысленны
		if cfg.MaxElapsed > 0 && time.Since(start)+delay >= cfg.MaxElapsed {
			break
		}

		// Callback перед retry
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		// Ждём с возможностью отмены
		select {
		case <-time.After(delay):
			// Продолжаем к следующей попытке
		case <-ctx.Done():
			return zero, &ExhaustedError{Attempts: attempts, Elapsed: time.Since(start), Err: lastErr}
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Elapsed: time.Since(start), Err: lastErr}
}

// ============================================================
// Классификация ошибок
// ============================================================

// RetryableError интерфейс для ошибок которые можно retry'ить
type RetryableError interface {
	error
	Retryable() bool
}

// IsTransient определяет является ли ошибка транзиентной инфраструктурной:
// только такие ошибки подлежат retry. Всё остальное (валидация, бизнес-отказы,
// программные ошибки) пробрасывается немедленно.
//
// Транзиентными считаются:
// - сетевые таймауты (net.Error.Timeout())
// - отказ/сброс/обрыв соединения (ECONNREFUSED, ECONNRESET, EPIPE)
// - неожиданный обрыв потока (io.EOF, io.ErrUnexpectedEOF)
// - ошибки явно помеченные Retryable()/Temporary()
//
// Отмена контекста (Canceled, DeadlineExceeded) транзиентной НЕ считается.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Прерывания процесса/контекста - никогда
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Явная маркировка
	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.Retryable()
	}

	// Сетевые таймауты
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Ошибки соединения
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	// Обрыв потока ввода-вывода
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	// Временные ошибки (net.OpError и подобные)
	type temporary interface {
		Temporary() bool
	}
	var temp temporary
	if errors.As(err, &temp) {
		return temp.Temporary()
	}

	return false
}

// ============================================================
// Wrapper errors
// ============================================================

// PermanentError оборачивает ошибку которую не нужно retry'ить
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func (e *PermanentError) Retryable() bool {
	return false
}

// Permanent оборачивает ошибку в PermanentError
//
// Пример:
//
//	if validationError {
//	    return retry.Permanent(errors.New("invalid payload"))
//	}
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// TemporaryError оборачивает ошибку которую нужно retry'ить
type TemporaryError struct {
	Err error
}

func (e *TemporaryError) Error() string {
	return e.Err.Error()
}

func (e *TemporaryError) Unwrap() error {
	return e.Err
}

func (e *TemporaryError) Retryable() bool {
	return true
}

func (e *TemporaryError) Temporary() bool {
	return true
}

// Temporary оборачивает ошибку в TemporaryError
func Temporary(err error) error {
	if err == nil {
		return nil
	}
	return &TemporaryError{Err: err}
}

// ============================================================
// Retryer - объект для многократного использования
// ============================================================

// Retryer предоставляет методы для retry с сохранённой конфигурацией
//
//	r := retry.NewRetryer(retry.DefaultConfig())
//	err := r.Do(ctx, operation1)
//	err = r.Do(ctx, operation2)
type Retryer struct {
	cfg Config
}

// NewRetryer создаёт новый Retryer с указанной конфигурацией
func NewRetryer(cfg Config) *Retryer {
	cfg.validate()
	return &Retryer{cfg: cfg}
}

// Do выполняет операцию с retry
func (r *Retryer) Do(ctx context.Context, operation func() error) error {
	return Do(ctx, operation, r.cfg)
}

// WithOnRetry возвращает копию Retryer с callback'ом
func (r *Retryer) WithOnRetry(onRetry func(attempt int, err error, delay time.Duration)) *Retryer {
	newCfg := r.cfg
	newCfg.OnRetry = onRetry
	return &Retryer{cfg: newCfg}
}

// WithRetryIf возвращает копию Retryer с функцией фильтрации ошибок
func (r *Retryer) WithRetryIf(retryIf func(error) bool) *Retryer {
	newCfg := r.cfg
	newCfg.RetryIf = retryIf
	return &Retryer{cfg: newCfg}
}
