package websocket

import (
	"context"
	"sync"

	"virtualrag-be/internal/metrics"
	"virtualrag-be/internal/pkg/logger"
)

// Hub tracks live clients. Sessions never talk to each other through it.
type Hub struct {
	// Registered clients by session id
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Parent of every client context; cancelled on Shutdown
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	metrics *metrics.Metrics
	logger  logger.ILogger
}

func NewHub(m *metrics.Metrics, log logger.ILogger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]*Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		metrics:    m,
		logger:     log,
	}
}

func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.Session.Id] = client
			h.mu.Unlock()
			h.metrics.SessionOpened()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.Session.Id})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.Session.Id]; ok {
				delete(h.clients, client.Session.Id)
				h.metrics.SessionClosed()
			}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"session_id": client.Session.Id})

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) add(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Context is the parent for new client contexts.
func (h *Hub) Context() context.Context {
	return h.ctx
}

// Shutdown cancels every client context and stops Run.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
	h.cancel()
}

func (h *Hub) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ChatMessages sums the history length of every live session.
func (h *Hub) ChatMessages() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, c := range h.clients {
		total += c.Session.History().Len()
	}
	return total
}
