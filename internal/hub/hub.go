package hub

import (
	"context"
	"log/slog"
	"sync"
)

// Client is one connected dashboard view. Panels tracks which dashboard
// panels the client currently displays; its session only fetches those.
type Client struct {
	ID     string
	Send   chan []byte
	panels map[string]struct{}
	closed bool
	mu     sync.RWMutex
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:     id,
		Send:   make(chan []byte, bufferSize),
		panels: make(map[string]struct{}),
	}
}

func (c *Client) HasPanel(panel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.panels[panel]
	return ok
}

func (c *Client) AddPanels(panels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range panels {
		c.panels[p] = struct{}{}
	}
}

func (c *Client) RemovePanels(panels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range panels {
		delete(c.panels, p)
	}
}

func (c *Client) Panels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	panels := make([]string, 0, len(c.panels))
	for p := range c.panels {
		panels = append(panels, p)
	}
	return panels
}

// Push queues a frame for the client, dropping it when the send buffer
// is full or the client is already closed. Panel fetches complete in
// their own goroutines and may land after the connection is gone, so a
// late push must degrade to a drop, never a send on a closed channel.
// A slow client loses intermediate frames, never blocks the producer.
func (c *Client) Push(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Close marks the client closed and closes its send channel.
// Idempotent. The read lock held by in-flight Push calls keeps the
// channel open until they finish.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// Hub tracks connected clients and fans global frames out to all of
// them. Panel data is per-session and bypasses the hub; only
// configuration changes (thresholds, presets) are broadcast, since they
// apply to every connected view.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan []byte, 64),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID, "total", total)

		case client := <-h.unregister:
			h.removeClient(client)

		case data := <-h.broadcast:
			h.fanout(data)
		}
	}
}

// Broadcast queues a frame for every connected client.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping frame", "size_bytes", len(data))
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) fanout(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.Push(data) {
			h.logger.Debug("client send buffer full", "client_id", client.ID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	client.Close()
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*Client]struct{})
}
