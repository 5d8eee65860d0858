package engine

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"execgate/internal/gateway"
	"execgate/internal/models"
	"execgate/pkg/retry"
	"execgate/pkg/utils"
)

// router.go - идемпотентный роутер команд
//
// Назначение:
// Гарантирует, что команда с одним req_id исполняется терминалом
// не больше одного раза, сколько бы раз её ни отправили:
//
//   - кэш результатов (LRU + ленивый TTL): повтор уже исполненной
//     команды возвращает сохранённый результат без похода на шлюз
//   - single-flight: N конкурентных отправок одного req_id сводятся
//     к одному вызову шлюза, остальные ждут его результата
//   - кэшируется ТОЛЬКО успех: отказ не должен "прилипать" к req_id,
//     иначе исправленный контекст (пополненный счёт, открывшийся
//     рынок) не дал бы команде второго шанса
//
// Ретраи внутри одной отправки делает pkg/retry: повторяются только
// транзиентные ошибки, терминальный ExhaustedError означает
// неизвестную судьбу команды.

// ErrInvalidCommand - команда не прошла валидацию полей
var ErrInvalidCommand = errors.New("некорректная команда")

// cacheEntry - закэшированный результат исполнения
type cacheEntry struct {
	result   *models.OrderResult
	storedAt time.Time
	elem     *list.Element // позиция в LRU списке
}

// inflight - исполняющаяся команда, на которую можно подписаться
type inflight struct {
	done   chan struct{}
	result *models.OrderResult
	err    error
}

// Router - идемпотентный роутер команд
type Router struct {
	gw       gateway.Client
	retryCfg retry.Config
	logger   *zap.Logger

	cacheSize int
	cacheTTL  time.Duration

	mu       sync.Mutex
	cache    map[string]*cacheEntry
	lru      *list.List // front = самый свежий, значения - req_id (string)
	inFlight map[string]*inflight

	now func() time.Time
}

// NewRouter создаёт роутер
func NewRouter(gw gateway.Client, retryCfg retry.Config, cacheSize int, cacheTTL time.Duration, logger *zap.Logger) *Router {
	r := &Router{
		gw:        gw,
		retryCfg:  retryCfg,
		logger:    logger,
		cacheSize: cacheSize,
		cacheTTL:  cacheTTL,
		cache:     make(map[string]*cacheEntry),
		lru:       list.New(),
		inFlight:  make(map[string]*inflight),
		now:       time.Now,
	}
	return r
}

// ============================================================
// Отправка
// ============================================================

// Dispatch исполняет команду идемпотентно.
//
// Конкурентные вызовы с одним req_id исполняют команду один раз;
// все получают одинаковый результат. Повтор после успеха отдаёт
// кэшированный результат. Повтор после отказа исполняет заново.
func (r *Router) Dispatch(ctx context.Context, cmd *models.OrderCommand) (*models.OrderResult, error) {
	if err := r.validate(cmd); err != nil {
		return nil, err
	}

	r.mu.Lock()

	// 1. Кэш: команда уже исполнялась успешно
	if entry, ok := r.cache[cmd.RequestID]; ok {
		if r.now().Sub(entry.storedAt) <= r.cacheTTL {
			r.lru.MoveToFront(entry.elem)
			r.mu.Unlock()
			RecordCacheHit()
			r.logger.Info("повтор исполненной команды, результат из кэша",
				zap.String("req_id", cmd.RequestID),
				zap.Int("ticket", entry.result.Ticket))
			return entry.result, nil
		}
		// Запись устарела - ленивое вытеснение
		r.evict(cmd.RequestID, entry)
		RecordCacheEviction("ttl")
	}

	// 2. Single-flight: команда уже исполняется
	if fl, ok := r.inFlight[cmd.RequestID]; ok {
		r.mu.Unlock()
		RecordSingleFlightWait()
		select {
		case <-fl.done:
			return fl.result, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// 3. Мы - исполнитель
	fl := &inflight{done: make(chan struct{})}
	r.inFlight[cmd.RequestID] = fl
	r.mu.Unlock()

	result, err := r.execute(ctx, cmd)
	fl.result, fl.err = result, err

	r.mu.Lock()
	delete(r.inFlight, cmd.RequestID)
	if err == nil && result != nil && result.Retcode == gateway.RetcodeDone {
		r.store(cmd.RequestID, result)
	}
	r.mu.Unlock()

	close(fl.done)
	return result, err
}

// execute выполняет один логический вызов шлюза с ретраями транзиентных сбоев
func (r *Router) execute(ctx context.Context, cmd *models.OrderCommand) (*models.OrderResult, error) {
	start := r.now()
	cfg := r.retryCfg
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		r.logger.Warn("повтор вызова шлюза",
			zap.String("req_id", cmd.RequestID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		RecordDispatchRetry()
	}

	result, err := retry.DoWithResult(ctx, func() (*models.OrderResult, error) {
		return r.gw.ExecuteOrder(ctx, cmd)
	}, cfg)

	RecordDispatchLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			// Бюджет ретраев исчерпан на транзиентных сбоях: судьба
			// команды НЕИЗВЕСТНА. Ничего не кэшируем, вызывающая
			// сторона обязана дождаться сверки состояния.
			r.logger.Error("судьба команды неизвестна: бюджет ретраев исчерпан",
				zap.String("req_id", cmd.RequestID),
				zap.Int("attempts", exhausted.Attempts),
				zap.Error(exhausted.Err))
			RecordDispatchOutcome("unknown_fate")
			return nil, fmt.Errorf("судьба команды %s неизвестна: %w", cmd.RequestID, err)
		}
		RecordDispatchOutcome("rejected")
		return nil, err
	}

	RecordDispatchOutcome("executed")
	return result, nil
}

// validate проверяет поля команды до любых сетевых вызовов
func (r *Router) validate(cmd *models.OrderCommand) error {
	if err := utils.ValidateRequestID(cmd.RequestID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if err := utils.ValidateSymbol(cmd.Symbol); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if err := utils.ValidateOrderType(cmd.Type); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if err := utils.ValidateVolume(cmd.Volume); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if err := utils.ValidateComment(cmd.Comment); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if err := utils.ValidateStops(cmd.StopLoss, cmd.TakeProfit); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return nil
}

// ============================================================
// Кэш (вызовы только под lock)
// ============================================================

// store кладёт результат в кэш, вытесняя самую старую запись при переполнении
func (r *Router) store(reqID string, result *models.OrderResult) {
	if entry, ok := r.cache[reqID]; ok {
		entry.result = result
		entry.storedAt = r.now()
		r.lru.MoveToFront(entry.elem)
		return
	}

	for len(r.cache) >= r.cacheSize {
		oldest := r.lru.Back()
		if oldest == nil {
			break
		}
		oldID := oldest.Value.(string)
		r.evict(oldID, r.cache[oldID])
		RecordCacheEviction("lru")
	}

	elem := r.lru.PushFront(reqID)
	r.cache[reqID] = &cacheEntry{
		result:   result,
		storedAt: r.now(),
		elem:     elem,
	}
	RecordCacheSize(len(r.cache))
}

// evict убирает запись из кэша и LRU списка
func (r *Router) evict(reqID string, entry *cacheEntry) {
	r.lru.Remove(entry.elem)
	delete(r.cache, reqID)
	RecordCacheSize(len(r.cache))
}


