// Package websocket - real-time стрим событий риск-движка для
// операторской панели.
package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"execgate/internal/models"
	"execgate/internal/risk"
)

// Пул JSON буферов: убирает аллокации при каждом Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// EventMessage - событие риск-движка в стриме
type EventMessage struct {
	Type string           `json:"type"`
	Data models.RiskEvent `json:"data"`
}

// StatusMessage - сводное состояние движка в стриме
type StatusMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub управляет всеми активными WebSocket соединениями
//
// Центральный менеджер для broadcast событий всем подключенным
// клиентам: операторская панель видит отклонения, срабатывания
// breaker'ов и дрейф состояния без polling'а.
//
// Использование:
//  1. hub := NewHub(bus, logger)
//  2. go hub.Run(ctx)
//  3. router.HandleFunc("/ws/stream", hub.ServeWS)
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	bus    *risk.EventBus
	logger *zap.Logger

	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub(bus *risk.EventBus, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		bus:        bus,
		logger:     logger,
	}
}

// Run запускает главный цикл Hub: подписывается на шину событий
// и рассылает их клиентам до отмены контекста
func (h *Hub) Run(ctx context.Context) {
	events := h.bus.Subscribe("websocket_hub")
	defer h.bus.Unsubscribe("websocket_hub")

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case event, ok := <-events:
			if !ok {
				h.closeAll()
				return
			}
			h.Broadcast(&EventMessage{Type: "riskEvent", Data: event})

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws клиент подключился", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws клиент отключился", zap.Int("total", total))

		case message := <-h.broadcast:
			h.send(message)
		}
	}
}

// send рассылает сообщение всем клиентам: копия списка под коротким
// RLock, отправка без блокировки, отстающие клиенты отключаются
func (h *Hub) send(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			// Клиент не успевает вычитывать - отключаем
			toRemove = append(toRemove, client)
		}
	}

	if len(toRemove) > 0 {
		h.mu.Lock()
		for _, client := range toRemove {
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		}
		total := len(h.clients)
		h.mu.Unlock()
		h.logger.Warn("отключены отстающие ws клиенты",
			zap.Int("removed", len(toRemove)), zap.Int("total", total))
	}
}

// Broadcast сериализует сообщение и ставит его в очередь рассылки
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.logger.Error("ошибка сериализации ws сообщения", zap.Error(err))
		jsonBufferPool.Put(buf)
		return
	}

	// Encode добавляет trailing newline
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	select {
	case h.broadcast <- msgCopy:
	default:
		// Очередь рассылки забита - стрим не должен тормозить движок
		h.logger.Warn("очередь ws рассылки переполнена, сообщение отброшено")
	}
}

// BroadcastStatus отправляет сводное состояние движка
func (h *Hub) BroadcastStatus(status interface{}) {
	h.Broadcast(&StatusMessage{Type: "statusUpdate", Data: status})
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll закрывает все клиентские каналы при остановке
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}
