package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"execgate/internal/models"
	"execgate/pkg/ratelimit"
)

// client.go - HTTP реализация клиента шлюза
//
// Назначение:
// Клиент терминального моста поверх HTTP. Все запросы идут через
// общий rate limiter: путь исполнения ордеров и фоновая сверка
// делят одну полосу, чтобы сверка не вытесняла ордера.
//
// Классификация ошибок:
//   - сеть / 5xx / битый ответ -> Transient=true (ретрай уместен)
//   - отказ терминала по retcode -> Transient=false, Temporary()
//     определяется таблицей retryableRetcodes

const commandPath = "/api/command"

// HTTPGatewayClient - клиент шлюза поверх HTTP
type HTTPGatewayClient struct {
	baseURL string
	secret  string
	client  *http.Client
	limiter *ratelimit.RateLimiter
	logger  *zap.Logger
}

// Проверка реализации интерфейса на этапе компиляции
var _ Client = (*HTTPGatewayClient)(nil)

// NewHTTPGatewayClient создаёт клиент шлюза.
//
// Параметры:
//   - baseURL: адрес моста (http://host:port)
//   - secret: расшифрованный секрет авторизации, уходит в заголовок
//   - limiter: общий rate limiter вызовов шлюза
func NewHTTPGatewayClient(baseURL, secret string, cfg HTTPClientConfig, limiter *ratelimit.RateLimiter, logger *zap.Logger) *HTTPGatewayClient {
	return &HTTPGatewayClient{
		baseURL: baseURL,
		secret:  secret,
		client:  newHTTPClient(cfg),
		limiter: limiter,
		logger:  logger,
	}
}

// ============================================================
// Операции
// ============================================================

// ExecuteOrder отправляет команду терминалу.
//
// Возвращает:
//   - (*OrderResult, nil) при retcode 10009
//   - (nil, *GatewayError) при любом другом исходе; Temporary()
//     сообщает, имеет ли смысл повтор
func (c *HTTPGatewayClient) ExecuteOrder(ctx context.Context, cmd *models.OrderCommand) (*models.OrderResult, error) {
	body, err := encodeOrderSend(cmd)
	if err != nil {
		return nil, err
	}

	data, err := c.post(ctx, ActionOrderSend, body)
	if err != nil {
		return nil, err
	}

	result, err := decodeOrderResponse(data)
	if err != nil {
		// Ответ получен, но не разобран: исход команды неизвестен.
		// Помечаем как транзиентную - повтор с тем же req_id безопасен,
		// дедупликацию обеспечивает мост.
		return nil, &GatewayError{
			Op:        ActionOrderSend,
			Message:   "битый ответ шлюза",
			Original:  err,
			Transient: true,
		}
	}

	if result.Retcode != RetcodeDone {
		c.logger.Warn("терминал отклонил ордер",
			zap.String("req_id", cmd.RequestID),
			zap.String("symbol", cmd.Symbol),
			zap.Int("retcode", result.Retcode),
			zap.String("msg", result.Message))
		return nil, &GatewayError{
			Op:      ActionOrderSend,
			Retcode: result.Retcode,
			Message: result.Message,
		}
	}

	c.logger.Info("ордер исполнен",
		zap.String("req_id", cmd.RequestID),
		zap.String("symbol", cmd.Symbol),
		zap.Int("ticket", result.Ticket))
	return result, nil
}

// FetchState запрашивает полный снимок состояния счёта
func (c *HTTPGatewayClient) FetchState(ctx context.Context) (*models.StateSnapshot, error) {
	body, err := encodeAction(ActionStateFetch)
	if err != nil {
		return nil, err
	}

	data, err := c.post(ctx, ActionStateFetch, body)
	if err != nil {
		return nil, err
	}

	return decodeStateResponse(data)
}

// Ping проверяет доступность шлюза
func (c *HTTPGatewayClient) Ping(ctx context.Context) error {
	body, err := encodeAction(ActionPing)
	if err != nil {
		return err
	}

	data, err := c.post(ctx, ActionPing, body)
	if err != nil {
		return err
	}

	var resp pingResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("ошибка разбора ответа PING: %w", err)
	}
	if resp.Error {
		return &GatewayError{Op: ActionPing, Message: resp.Message}
	}
	return nil
}

// ============================================================
// Транспорт
// ============================================================

// post выполняет HTTP POST с учётом rate limiter и классифицирует
// транспортные ошибки как транзиентные
func (c *HTTPGatewayClient) post(ctx context.Context, op string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+commandPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса %s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set("X-Gateway-Secret", c.secret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Сетевая ошибка: запрос мог дойти, а мог и нет
		return nil, &GatewayError{
			Op:        op,
			Message:   "ошибка транспорта",
			Original:  err,
			Transient: true,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{
			Op:        op,
			Message:   "ошибка чтения ответа",
			Original:  err,
			Transient: true,
		}
	}

	if resp.StatusCode >= 500 {
		return nil, &GatewayError{
			Op:        op,
			Message:   fmt.Sprintf("шлюз вернул HTTP %d", resp.StatusCode),
			Transient: true,
		}
	}
	if resp.StatusCode != http.StatusOK {
		// 4xx - ошибка на нашей стороне, повтор не поможет
		return nil, &GatewayError{
			Op:      op,
			Message: fmt.Sprintf("шлюз вернул HTTP %d", resp.StatusCode),
		}
	}

	return data, nil
}
