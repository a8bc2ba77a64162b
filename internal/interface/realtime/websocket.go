package realtime

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConfig contains tunables for the websocket transport.
type WebSocketConfig struct {
	// ReadLimit is the maximum inbound frame size in bytes
	ReadLimit int64

	// WriteTimeout bounds a single frame write
	WriteTimeout time.Duration

	// PongTimeout is how long to wait for a pong before dropping
	PongTimeout time.Duration

	// PingInterval is how often pings are sent; must be below PongTimeout
	PingInterval time.Duration

	// SendQueueSize is the outbound queue depth per connection
	SendQueueSize int

	// CheckOrigin overrides the upgrader's origin check when set
	CheckOrigin func(r *http.Request) bool
}

// DefaultWebSocketConfig returns sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		ReadLimit:     4 * 1024,
		WriteTimeout:  10 * time.Second,
		PongTimeout:   60 * time.Second,
		PingInterval:  25 * time.Second,
		SendQueueSize: 64,
	}
}

// ErrSendQueueFull is returned when a subscriber's outbound queue is
// full. The hub treats it as a slow consumer and disconnects.
var ErrSendQueueFull = errors.New("send queue is full")

// wsSubscriber adapts a gorilla websocket connection to the Subscriber
// interface. A single writer goroutine drains the buffered queue, which
// preserves the hub's emission order per connection.
type wsSubscriber struct {
	ws     *websocket.Conn
	send   chan OutboundMessage
	done   chan struct{}
	config WebSocketConfig
}

func newWSSubscriber(ws *websocket.Conn, config WebSocketConfig) *wsSubscriber {
	return &wsSubscriber{
		ws:     ws,
		send:   make(chan OutboundMessage, config.SendQueueSize),
		done:   make(chan struct{}),
		config: config,
	}
}

// Send enqueues a message without blocking.
func (s *wsSubscriber) Send(msg OutboundMessage) error {
	select {
	case <-s.done:
		return errors.New("subscriber is closed")
	default:
	}

	select {
	case s.send <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts the writer down and closes the socket.
func (s *wsSubscriber) Close(reason string) error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}

	deadline := time.Now().Add(s.config.WriteTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = s.ws.WriteControl(websocket.CloseMessage, msg, deadline)
	return s.ws.Close()
}

// writePump drains the outbound queue onto the socket and keeps the
// connection alive with pings. Runs in its own goroutine per
// connection.
func (s *wsSubscriber) writePump() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return

		case msg := <-s.send:
			_ = s.ws.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.ws.WriteJSON(msg); err != nil {
				_ = s.Close("write failed")
				return
			}

		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.Close("ping failed")
				return
			}
		}
	}
}

// WebSocketHandler upgrades HTTP requests into hub connections.
type WebSocketHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	config   WebSocketConfig
	logger   *slog.Logger
}

// NewWebSocketHandler creates the /ws endpoint handler.
func NewWebSocketHandler(hub *Hub, config WebSocketConfig, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if config.CheckOrigin != nil {
		upgrader.CheckOrigin = config.CheckOrigin
	}
	return &WebSocketHandler{
		hub:      hub,
		upgrader: upgrader,
		config:   config,
		logger:   logger,
	}
}

// ServeHTTP upgrades the request, authenticates the handshake
// credential and runs the connection's read loop until it drops.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	sub := newWSSubscriber(ws, h.config)
	go sub.writePump()

	conn := h.hub.Connect(sub)

	token := handshakeToken(r)
	if _, err := h.hub.Authenticate(r.Context(), conn, token); err != nil {
		h.logger.Debug("websocket handshake rejected", "error", err)
		deadline := time.Now().Add(h.config.WriteTimeout)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed")
		_ = ws.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = ws.Close()
		h.hub.Disconnect(r.Context(), conn)
		return
	}

	ws.SetReadLimit(h.config.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		h.hub.HandleMessage(r.Context(), conn, data)
	}

	h.hub.Disconnect(r.Context(), conn)
	_ = sub.Close("connection closed")
}

// handshakeToken extracts the bearer credential from the upgrade
// request. Browser clients cannot set headers on websocket upgrades,
// so a token query parameter is accepted as well.
func handshakeToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
