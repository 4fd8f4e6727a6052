package gateway

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler pushes snapshots over WebSocket as text frames holding the
// same JSON as the event stream.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	upgrader          websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cm.config.ReadBufferSize,
			WriteBufferSize: cm.config.WriteBufferSize,
			CheckOrigin:     originChecker(cm.config.AllowedOrigin),
		},
	}
}

// originChecker allows any origin for "*", otherwise the configured origin or
// same-host requests.
func originChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "" || allowed == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" || strings.EqualFold(origin, allowed) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// connection ties a registered subscriber to its socket
type connection struct {
	sub     *Subscriber
	conn    *websocket.Conn
	manager *ConnectionManager
}

// HandleConnection handles GET /ws
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	sub, err := h.connectionManager.Register(TransportWebSocket)
	if err != nil {
		log.Error().Err(err).Msg("failed to register WebSocket subscriber")
		conn.Close()
		return
	}

	c := &connection{sub: sub, conn: conn, manager: h.connectionManager}
	go c.writePump()
	go c.readPump()

	log.Info().
		Str("subscriber_id", sub.ID.String()).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")
}

// writePump drains Send onto the socket and keeps the peer alive with pings
func (c *connection) writePump() {
	cfg := c.manager.config
	clock := c.manager.clock
	// socket deadlines use wall time; only the ping cadence follows the clock
	ticker := clock.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.manager.Unregister(c.sub)
	}()

	for {
		select {
		case message, ok := <-c.sub.Send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("subscriber_id", c.sub.ID.String()).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.Chan():
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("subscriber_id", c.sub.ID.String()).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump detects disconnects. Displays never send anything meaningful, so
// inbound messages are discarded.
func (c *connection) readPump() {
	cfg := c.manager.config
	defer func() {
		c.manager.Unregister(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("subscriber_id", c.sub.ID.String()).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}
