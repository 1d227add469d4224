package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amberhub/amber-core/internal/auth"
	"github.com/amberhub/amber-core/internal/infrastructure/config"
	"github.com/amberhub/amber-core/internal/infrastructure/logging"
)

// Message types on the WebSocket wire.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// wsSendBufferSize bounds the per-client outbound queue. A client that
// cannot drain this many messages is considered slow and drops frames.
const wsSendBufferSize = 256

// WSMessage is the envelope for every frame exchanged with a client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload carries the channel list for subscribe and
// unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub tracks connected WebSocket clients and fans events out to them.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one upgraded connection plus the identity carried over
// from its connection ticket.
type WSClient struct {
	hub      *Hub
	conn     *websocket.Conn
	outbound chan []byte

	mu       sync.RWMutex
	channels map[string]struct{}

	userID string
	role   auth.Role
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin enforcement already happened in the CORS middleware.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// NewHub creates an empty hub. Call Run to start it.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.outbound)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// Broadcast delivers payload to every client subscribed to channel.
// The client list is snapshotted under the hub lock and released before
// any per-client work, so a stalled client never blocks the hub.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range targets {
		if client.subscribed(channel) {
			client.queue(data)
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", delivered)
	}
}

// ClientCount reports how many clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) attach(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// detach removes the client and, if this call was the one that removed
// it, closes its outbound channel. The existence check makes the close
// single-shot when detach races with a shutting-down Run.
func (h *Hub) detach(client *WSClient) {
	h.mu.Lock()
	_, present := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if present {
		close(client.outbound)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// handleWebSocket upgrades the connection. Browsers cannot set an
// Authorization header on WebSocket dials, so authentication rides on a
// short-lived single-use ticket minted by POST /auth/ws-ticket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.validateTicket(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:      s.hub,
		conn:     conn,
		outbound: make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
		userID:   entry.userID,
		role:     entry.role,
	}
	s.hub.attach(client)

	go client.writeLoop(s.wsCfg)
	go client.readLoop(s.wsCfg)
}

func wsDeadline(cfg config.WebSocketConfig) time.Duration {
	return time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
}

// readLoop consumes frames from the connection until it drops, then
// detaches the client from the hub.
func (c *WSClient) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(wsDeadline(cfg)))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsDeadline(cfg)))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Treat any inbound frame as liveness. Some browsers never answer
		// protocol-level pings, so application traffic keeps the deadline fresh.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(wsDeadline(cfg)))
		c.dispatch(frame)
	}
}

// writeLoop drains the outbound queue and keeps the connection alive
// with periodic pings. It owns all writes to the connection.
func (c *WSClient) writeLoop(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	for {
		select {
		case frame, open := <-c.outbound:
			if !open {
				//nolint:errcheck // Best-effort close frame, connection is going away
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) dispatch(frame []byte) {
	var msg WSMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.replyError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.updateSubscriptions(msg, true)
	case WSTypeUnsubscribe:
		c.updateSubscriptions(msg, false)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.replyError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// updateSubscriptions applies a subscribe or unsubscribe request and
// acknowledges it with the affected channel list.
func (c *WSClient) updateSubscriptions(msg WSMessage, add bool) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		c.replyError(msg.ID, "invalid payload")
		return
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		if add {
			c.replyError(msg.ID, "invalid subscribe payload")
		} else {
			c.replyError(msg.ID, "invalid unsubscribe payload")
		}
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if add {
			c.channels[ch] = struct{}{}
		} else {
			delete(c.channels, ch)
		}
	}
	c.mu.Unlock()

	if add {
		c.hub.logger.Info("websocket client subscribed", "channels", sub.Channels)
		c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": sub.Channels})
		return
	}
	c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
}

func (c *WSClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

// queue hands a frame to the write loop without ever blocking. A full
// buffer drops the frame; a send on a channel closed by detach is
// absorbed by the recover.
func (c *WSClient) queue(frame []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel during disconnect
	}()

	select {
	case c.outbound <- frame:
	default:
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.queue(data)
}

func (c *WSClient) replyError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
