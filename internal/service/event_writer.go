package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"execgate/internal/models"
	"execgate/internal/risk"
)

// EventWriter - подписчик шины, персистящий события риск-движка в БД.
//
// Запись не на критическом пути исполнения: ошибка БД логируется,
// событие теряется только в журнале, не в WebSocket стриме.
type EventWriter struct {
	repo   EventRepositoryInterface
	bus    *risk.EventBus
	logger *zap.Logger

	// writeTimeout ограничивает каждую запись, чтобы зависшая БД
	// не копила очередь шины
	writeTimeout time.Duration
}

// NewEventWriter создает писателя журнала событий
func NewEventWriter(repo EventRepositoryInterface, bus *risk.EventBus, logger *zap.Logger) *EventWriter {
	return &EventWriter{
		repo:         repo,
		bus:          bus,
		logger:       logger,
		writeTimeout: 5 * time.Second,
	}
}

// Run читает события из шины и пишет их в БД до отмены контекста
func (w *EventWriter) Run(ctx context.Context) {
	events := w.bus.Subscribe("event_writer")
	defer w.bus.Unsubscribe("event_writer")

	w.logger.Info("журнал событий запущен")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("журнал событий остановлен")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.persist(ctx, event)
		}
	}
}

func (w *EventWriter) persist(ctx context.Context, event models.RiskEvent) {
	wctx, cancel := context.WithTimeout(ctx, w.writeTimeout)
	defer cancel()

	if err := w.repo.Create(wctx, &event); err != nil {
		w.logger.Error("ошибка записи события в журнал",
			zap.String("type", event.Type),
			zap.Error(err))
	}
}
