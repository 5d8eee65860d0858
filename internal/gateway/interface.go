// Package gateway предоставляет клиент исполняющего шлюза - моста
// между сервисом и торговым терминалом.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"execgate/internal/models"
)

// Client - унифицированный интерфейс исполняющего шлюза.
//
// Две операции:
//   - ExecuteOrder: отправка торговой команды терминалу
//   - FetchState: чтение авторитетного состояния счёта (баланс + позиции)
//
// Все методы принимают context для контроля таймаутов и отмены.
type Client interface {
	// ExecuteOrder отправляет команду терминалу и возвращает результат.
	// Сетевые ошибки возвращаются как *GatewayError с Temporary()=true;
	// отказ терминала (retcode != 10009) - с Temporary()=false.
	ExecuteOrder(ctx context.Context, cmd *models.OrderCommand) (*models.OrderResult, error)

	// FetchState запрашивает у терминала полный снимок состояния счёта.
	FetchState(ctx context.Context) (*models.StateSnapshot, error)

	// Ping проверяет доступность шлюза
	Ping(ctx context.Context) error
}

// ============================================================
// Retcode терминала
// ============================================================

const (
	// RetcodeDone - ордер исполнен успешно
	RetcodeDone = 10009
	// RetcodeRequote - реквот, можно повторить
	RetcodeRequote = 10004
	// RetcodeTimeout - терминал не дождался исполнения
	RetcodeTimeout = 10012
	// RetcodeNoMoney - недостаточно средств
	RetcodeNoMoney = 10019
	// RetcodeMarketClosed - рынок закрыт
	RetcodeMarketClosed = 10018
	// RetcodeInvalidVolume - некорректный объём
	RetcodeInvalidVolume = 10014
)

// retryableRetcodes - коды отказа терминала, которые имеет смысл повторять.
// Всё остальное - окончательный отказ: повтор даст тот же результат.
var retryableRetcodes = map[int]bool{
	RetcodeRequote: true,
	RetcodeTimeout: true,
}

// ============================================================
// Ошибки шлюза
// ============================================================

// ErrGatewayUnavailable - шлюз недоступен (соединение не установлено)
var ErrGatewayUnavailable = errors.New("шлюз недоступен")

// GatewayError представляет ошибку взаимодействия со шлюзом.
//
// Различает транзиентные сбои (сеть, таймаут, реквот) и окончательные
// отказы терминала. Retry-логика опирается на Temporary().
type GatewayError struct {
	Op       string // операция: ORDER_SEND, STATE_FETCH
	Retcode  int    // retcode терминала, 0 если до терминала не дошло
	Message  string
	Original error
	// Transient - транзиентная ошибка транспорта (до терминала не дошло
	// или ответ потерян)
	Transient bool
}

func (e *GatewayError) Error() string {
	if e.Retcode != 0 {
		return fmt.Sprintf("gateway %s: retcode=%d: %s", e.Op, e.Retcode, e.Message)
	}
	return fmt.Sprintf("gateway %s: %s", e.Op, e.Message)
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *GatewayError) Unwrap() error {
	return e.Original
}

// Temporary сообщает, имеет ли смысл повторять операцию.
// Поддерживает протокол классификации pkg/retry.
func (e *GatewayError) Temporary() bool {
	if e.Transient {
		return true
	}
	return retryableRetcodes[e.Retcode]
}
