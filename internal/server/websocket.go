package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pantheon/duel-server-go/internal/auth"
	"github.com/pantheon/duel-server-go/internal/config"
	"github.com/pantheon/duel-server-go/internal/game"
)

const (
	writeWait     = 10 * time.Second
	actionTimeout = 15 * time.Second

	defaultSendQueue = 64
)

// WebSocketHandler upgrades player connections and pumps messages between
// them and the matchmaker.
type WebSocketHandler struct {
	ctx      context.Context
	cfg      config.WebSocketConfig
	hub      *Hub
	actions  Actions
	verifier *auth.Verifier
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler builds a handler. Connections live until ctx is done or
// the peer goes away.
func NewWebSocketHandler(ctx context.Context, cfg config.WebSocketConfig, hub *Hub, actions Actions, verifier *auth.Verifier, logger *zap.Logger) *WebSocketHandler {
	if verifier == nil {
		verifier, _ = auth.NewVerifier("")
	}
	h := &WebSocketHandler{
		ctx:      ctx,
		cfg:      cfg,
		hub:      hub,
		actions:  actions,
		verifier: verifier,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin allows every origin unless a list is configured.
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	player := query.Get("player")
	if player == "" {
		http.Error(w, "player query parameter is required", http.StatusBadRequest)
		return
	}
	if err := h.verifier.Verify(query.Get("token")); err != nil {
		h.logger.Warn("connection rejected", zap.String("player_id", player), zap.String("remote", r.RemoteAddr))
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	queue := h.cfg.SendQueueSize
	if queue <= 0 {
		queue = defaultSendQueue
	}
	c := newClient(game.ConnID(uuid.NewString()), player, conn, queue)
	h.hub.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *WebSocketHandler) pongWait() time.Duration {
	if h.cfg.PongWait > 0 {
		return h.cfg.PongWait
	}
	return 60 * time.Second
}

func (h *WebSocketHandler) readPump(c *Client) {
	logger := h.logger.With(zap.String("conn_id", string(c.id)), zap.String("player_id", c.playerID))
	ctx, cancel := context.WithCancel(h.ctx)
	defer func() {
		cancel()
		h.hub.unregister(c.id)
		h.actions.OnDisconnect(c.id)
	}()

	if h.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(h.cfg.MaxMessageSize)
	}
	wait := h.pongWait()
	c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Info("connection closed unexpectedly", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reject(c, "", ErrBadRequest)
			continue
		}
		h.handle(ctx, c, msg, logger)
	}
}

func (h *WebSocketHandler) handle(ctx context.Context, c *Client, msg ClientMessage, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	reply, err := dispatch(ctx, h.actions, c.Ref(), msg)
	if err != nil {
		h.reject(c, msg.Type, err)
		if game.ErrorCode(err) == "internal" || errors.Is(err, game.ErrExternal) {
			logger.Error("action failed", zap.String("action", msg.Type), zap.Error(err))
		}
		return
	}
	if reply != nil {
		h.hub.Send(c.id, game.EventState, reply)
	}
}

func (h *WebSocketHandler) reject(c *Client, action string, err error) {
	h.hub.Send(c.id, game.EventError, game.ErrorNotice{
		Action:  action,
		Code:    game.ErrorCode(err),
		Message: err.Error(),
	})
}

func (h *WebSocketHandler) writePump(c *Client) {
	ticker := time.NewTicker(h.pongWait() * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(websocket.TextMessage, data)
	}

	for {
		select {
		case data := <-c.send:
			if err := write(data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			// deliver what was queued before the hang-up
		drain:
			for {
				select {
				case data := <-c.send:
					if err := write(data); err != nil {
						return
					}
				default:
					break drain
				}
			}
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case <-h.ctx.Done():
			return
		}
	}
}
