package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/observability"
	"github.com/droszt-service/internal/usecase/dto"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

// QueueWatcher - живой запрос очереди
type QueueWatcher interface {
	Watch(ctx context.Context, name string) (<-chan domain.QueueSnapshot, error)
}

// Hub держит подключения по имени очереди. На каждую очередь с хотя бы
// одним клиентом открыт ровно один живой запрос.
type Hub struct {
	watcher QueueWatcher
	logger  *zap.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMessage
	done       chan struct{}

	mu      sync.RWMutex
	clients map[string]map[*Client]bool
	last    map[string][]byte
	feeds   map[string]context.CancelFunc
}

type broadcastMessage struct {
	queue   string
	payload []byte
}

func NewHub(watcher QueueWatcher, logger *zap.Logger) *Hub {
	return &Hub{
		watcher:    watcher,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMessage),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*Client]bool),
		last:       make(map[string][]byte),
		feeds:      make(map[string]context.CancelFunc),
	}
}

// Run обслуживает каналы хаба до отмены ctx
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.add(ctx, c)
		case c := <-h.unregister:
			h.remove(c)
		case m := <-h.broadcast:
			h.deliver(m)
		}
	}
}

func (h *Hub) add(ctx context.Context, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.queue] == nil {
		h.clients[c.queue] = make(map[*Client]bool)
	}
	h.clients[c.queue][c] = true
	observability.WSClients.Inc()

	if last, ok := h.last[c.queue]; ok {
		c.send <- last
	}
	if _, ok := h.feeds[c.queue]; !ok {
		feedCtx, cancel := context.WithCancel(ctx)
		h.feeds[c.queue] = cancel
		go h.feed(feedCtx, c.queue)
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[c.queue]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	close(c.send)
	observability.WSClients.Dec()

	if len(clients) == 0 {
		delete(h.clients, c.queue)
		delete(h.last, c.queue)
		if cancel, ok := h.feeds[c.queue]; ok {
			cancel()
			delete(h.feeds, c.queue)
		}
	}
}

func (h *Hub) deliver(m broadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[m.queue]
	if !ok {
		return
	}
	h.last[m.queue] = m.payload
	for c := range clients {
		select {
		case c.send <- m.payload:
		default:
			// медленный клиент отключается
			delete(clients, c)
			close(c.send)
			observability.WSClients.Dec()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for queue, clients := range h.clients {
		for c := range clients {
			close(c.send)
			observability.WSClients.Dec()
		}
		delete(h.clients, queue)
	}
	for queue, cancel := range h.feeds {
		cancel()
		delete(h.feeds, queue)
	}
}

// feed переводит снимки живого запроса в сообщения хаба
func (h *Hub) feed(ctx context.Context, queue string) {
	snapshots, err := h.watcher.Watch(ctx, queue)
	if err != nil {
		h.logger.Error("queue watch failed", zap.String("queue", queue), zap.Error(err))
		return
	}
	for snap := range snapshots {
		resp := dto.NewQueueResponse(&snap)
		payload, err := json.Marshal(resp)
		if err != nil {
			h.logger.Error("failed to encode snapshot", zap.String("queue", queue), zap.Error(err))
			continue
		}
		select {
		case h.broadcast <- broadcastMessage{queue: queue, payload: payload}:
		case <-ctx.Done():
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS переводит соединение в websocket и подписывает его на очередь
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, queue string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), queue: queue}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
