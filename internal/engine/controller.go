package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"execgate/internal/killswitch"
	"execgate/internal/models"
	"execgate/internal/risk"
)

// controller.go - оркестрация пути исполнения
//
// Назначение:
// Единственная точка входа для торговых команд. Порядок жёсткий:
//
//	1. аварийный стоп    - активен? ордер не рассматривается вовсе
//	2. риск-движок       - трёхуровневая проверка контекста
//	3. идемпотентный     - отправка на шлюз с ретраями
//	   роутер
//	4. учёт              - реестр тикетов, журнал, события
//
// Отказ любой ступени останавливает цепочку.

// TicketJournal - журнал исполненных ордеров (реализуется repository)
type TicketJournal interface {
	SaveTicket(ctx context.Context, rec *models.TicketRecord) error
}

// Controller - оркестратор исполнения команд
type Controller struct {
	ks      *killswitch.KillSwitch
	riskMgr *risk.Manager
	router  *Router
	store   *StateStore
	bus     *risk.EventBus
	journal TicketJournal // может быть nil (журнал выключен)
	logger  *zap.Logger
}

// NewController создаёт оркестратор и связывает критические события
// риск-движка с аварийным стопом
func NewController(ks *killswitch.KillSwitch, riskMgr *risk.Manager, router *Router, store *StateStore, bus *risk.EventBus, journal TicketJournal, logger *zap.Logger) *Controller {
	c := &Controller{
		ks:      ks,
		riskMgr: riskMgr,
		router:  router,
		store:   store,
		bus:     bus,
		journal: journal,
		logger:  logger,
	}

	// HALT просадки и исчерпание дневных срабатываний breaker
	// взводят аварийный стоп
	riskMgr.OnCritical(func(reason string) {
		activated, err := ks.Activate(reason)
		if err != nil {
			logger.Error("ошибка активации аварийного стопа", zap.Error(err))
		}
		if activated {
			bus.Emit(models.EventTypeKillSwitch, models.SeverityError, "",
				"аварийный стоп активирован: "+reason, nil)
		}
	})

	return c
}

// ============================================================
// Исполнение
// ============================================================

// Submit проводит команду через весь путь исполнения.
//
// Возвращаемые комбинации:
//   - result, ALLOW, nil    - исполнено
//   - nil, REJECT/..., nil  - остановлено риск-проверкой (не ошибка)
//   - nil, nil, err         - ошибка исполнения (включая неизвестную судьбу)
func (c *Controller) Submit(ctx context.Context, cmd *models.OrderCommand, price float64) (*models.OrderResult, *models.RiskDecision, error) {
	// 1. Аварийный стоп
	if c.ks.IsActive() {
		st := c.ks.GetStatus()
		d := models.Reject("kill_switch", models.LevelHalt,
			"аварийный стоп активен: "+st.Reason,
			map[string]interface{}{"activated_at": st.ActivatedAt})
		c.emitRejected(cmd, d)
		return nil, d, nil
	}

	// 2. Риск-проверка на локальном снимке состояния
	rctx := c.store.RiskContext(cmd, price)
	if rctx == nil {
		d := models.Reject("controller", models.LevelCritical,
			"состояние счёта ещё не синхронизировано", nil)
		c.emitRejected(cmd, d)
		return nil, d, nil
	}

	decision := c.riskMgr.CheckOrder(rctx)
	if !decision.Allowed() {
		c.emitRejected(cmd, decision)
		return nil, decision, nil
	}

	// 3. Идемпотентная отправка
	result, err := c.router.Dispatch(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}

	// 4. Учёт
	c.store.RecordTicket(result.Ticket, cmd.Symbol)
	c.bus.Emit(models.EventTypeOrderExecuted, models.SeverityInfo, cmd.Symbol,
		"ордер исполнен",
		map[string]interface{}{"req_id": cmd.RequestID, "ticket": result.Ticket, "volume": cmd.Volume})

	if c.journal != nil {
		rec := &models.TicketRecord{
			RequestID:  cmd.RequestID,
			Ticket:     result.Ticket,
			Symbol:     cmd.Symbol,
			Type:       cmd.Type,
			Volume:     cmd.Volume,
			ExecutedAt: time.Now().UTC(),
		}
		// Журнал не на критическом пути: ошибка записи не отменяет сделку
		if jerr := c.journal.SaveTicket(ctx, rec); jerr != nil {
			c.logger.Error("ошибка записи в журнал тикетов",
				zap.String("req_id", cmd.RequestID), zap.Error(jerr))
		}
	}

	return result, decision, nil
}

// RecordTradeResult учитывает закрытую сделку: риск-движок и ожидаемый баланс
func (c *Controller) RecordTradeResult(symbol string, pnl float64) {
	equity := 0.0
	if snap := c.store.Snapshot(); snap != nil {
		equity = snap.Account.Equity
	}
	c.riskMgr.RecordTradeResult(symbol, pnl, equity)
	c.store.RecordRealizedPnl(pnl)
}

// emitRejected публикует событие отклонения
func (c *Controller) emitRejected(cmd *models.OrderCommand, d *models.RiskDecision) {
	c.logger.Warn("команда отклонена",
		zap.String("req_id", cmd.RequestID),
		zap.String("symbol", cmd.Symbol),
		zap.String("checked_by", d.CheckedBy),
		zap.String("reason", d.Reason))
	c.bus.Emit(models.EventTypeOrderRejected, models.SeverityWarn, cmd.Symbol,
		d.Reason,
		map[string]interface{}{"req_id": cmd.RequestID, "checked_by": d.CheckedBy, "action": d.Action})
}
