package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"execgate/internal/models"
)

// events.go - шина риск-событий
//
// Назначение:
// Fan-out риск-событий подписчикам: журнал в БД, WebSocket-поток,
// уведомления оператору. Публикация НИКОГДА не блокирует: медленный
// подписчик теряет события, а не тормозит путь исполнения ордеров.
// Потери считаются метрикой переполнения.

// defaultBusBuffer - ёмкость буфера канала подписчика
const defaultBusBuffer = 256

// EventBus - шина риск-событий с неблокирующим fan-out
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan models.RiskEvent
	logger      *zap.Logger
}

// NewEventBus создаёт шину
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string]chan models.RiskEvent),
		logger:      logger,
	}
}

// Subscribe регистрирует подписчика и возвращает его канал.
// Имя используется в метриках переполнения и для отписки.
func (b *EventBus) Subscribe(name string) <-chan models.RiskEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan models.RiskEvent, defaultBusBuffer)
	b.subscribers[name] = ch
	return ch
}

// Unsubscribe снимает подписку и закрывает канал
func (b *EventBus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[name]; ok {
		delete(b.subscribers, name)
		close(ch)
	}
}

// Publish отправляет событие всем подписчикам, не блокируясь.
// Переполненный буфер подписчика означает потерю события для него.
func (b *EventBus) Publish(event models.RiskEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for name, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			RecordEventDropped(name)
			b.logger.Warn("буфер подписчика переполнен, событие потеряно",
				zap.String("subscriber", name),
				zap.String("event_type", event.Type))
		}
	}
	RecordEvent(event.Type)
}

// Emit - удобный конструктор + публикация
func (b *EventBus) Emit(eventType, severity, symbol, message string, meta map[string]interface{}) {
	b.Publish(models.RiskEvent{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Severity:  severity,
		Symbol:    symbol,
		Message:   message,
		Meta:      meta,
	})
}

// Close закрывает все подписки
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, ch := range b.subscribers {
		delete(b.subscribers, name)
		close(ch)
	}
}
