package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"slack-mock/internal/domain"
	"slack-mock/internal/infra/metrics"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingInterval = 25 * time.Second
)

// Client: одно подключение интерфейса.
type Client struct {
	conn *websocket.Conn
	send chan domain.Event

	ctx    context.Context
	cancel context.CancelFunc
}

// Hub рассылает события движка всем подключённым клиентам.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     zerolog.Logger
	// InsecureSkipVerify отключает проверку Origin (dev-сервер фронтенда на другом порту).
	InsecureSkipVerify bool
}

var _ domain.EventPublisher = (*Hub)(nil)

// NewHub создаёт пустой хаб.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{clients: map[*Client]struct{}{}, log: logger}
}

// ServeHTTP принимает WebSocket и держит его до отключения клиента.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: h.InsecureSkipVerify})
	if err != nil {
		h.log.Debug().Err(err).Msg("ws: accept failed")
		return
	}
	// Клиент только слушает, но чтение нужно для обработки close/ping.
	ctx := conn.CloseRead(r.Context())

	c := h.AddClient(conn)
	defer h.RemoveClient(c)
	<-ctx.Done()
}

// AddClient регистрирует соединение и запускает циклы записи и keepalive.
func (h *Hub) AddClient(conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:   conn,
		send:   make(chan domain.Event, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(n))
	h.log.Debug().Int("clients", n).Msg("ws: client connected")

	go c.writeLoop(h.log)
	go c.keepAliveLoop()
	return c
}

// RemoveClient отключает клиента.
func (h *Hub) RemoveClient(c *Client) {
	c.cancel()

	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(n))

	_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
}

// Publish ставит событие в очередь каждого клиента. Переполненные очереди пропускают событие.
func (h *Hub) Publish(_ context.Context, ev domain.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.log.Debug().Str("event", string(ev.Type)).Msg("ws: client queue full, event dropped")
		}
	}
	return nil
}

// Clients возвращает число подключений.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) writeLoop(logger zerolog.Logger) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.send:
			writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, ev)
			cancel()
			if err != nil {
				logger.Debug().Err(err).Msg("ws: write failed")
			}
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}
