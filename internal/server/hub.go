package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pantheon/duel-server-go/internal/game"
)

// ServerMessage is the envelope for every outbound event.
type ServerMessage struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Client is one WebSocket connection.
type Client struct {
	id       game.ConnID
	playerID string
	conn     *websocket.Conn
	send     chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id game.ConnID, playerID string, conn *websocket.Conn, queue int) *Client {
	return &Client{
		id:       id,
		playerID: playerID,
		conn:     conn,
		send:     make(chan []byte, queue),
		done:     make(chan struct{}),
	}
}

// Ref identifies the client to the game.
func (c *Client) Ref() game.PlayerRef {
	return game.PlayerRef{ID: c.playerID, Conn: c.id}
}

// close tells the write pump to flush and hang up. Safe to call repeatedly.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub tracks live clients and delivers events to them. It implements
// game.Notifier and room.Disconnector.
type Hub struct {
	mu      sync.RWMutex
	clients map[game.ConnID]*Client
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[game.ConnID]*Client),
		logger:  logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client registered",
		zap.String("conn_id", string(c.id)),
		zap.String("player_id", c.playerID),
		zap.Int("clients", n),
	)
}

func (h *Hub) unregister(id game.ConnID) bool {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()

	if ok {
		c.close()
		h.logger.Info("client unregistered", zap.String("conn_id", string(id)))
	}
	return ok
}

func (h *Hub) client(id game.ConnID) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// Send queues an event for conn without blocking. A client whose queue is
// full is dropped.
func (h *Hub) Send(conn game.ConnID, event string, payload any) {
	c, ok := h.client(conn)
	if !ok {
		return
	}
	data, err := json.Marshal(ServerMessage{Event: event, Payload: payload})
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}

	select {
	case <-c.done:
	case c.send <- data:
	default:
		h.logger.Warn("send queue full, dropping client",
			zap.String("conn_id", string(conn)),
			zap.String("event", event),
		)
		c.close()
	}
}

// Disconnect closes conn's socket; its read loop then runs the normal
// teardown.
func (h *Hub) Disconnect(conn game.ConnID) {
	if c, ok := h.client(conn); ok {
		h.logger.Info("disconnecting client", zap.String("conn_id", string(conn)))
		c.close()
	}
}

// Len returns the number of live clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll drops every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.logger.Info("all clients closed", zap.Int("count", len(clients)))
}
