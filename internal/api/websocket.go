package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/WebThingsIO/webthing-go/internal/infrastructure/logging"
	"github.com/WebThingsIO/webthing-go/internal/thing"
)

// Inbound protocol message types.
const (
	wsTypeSetProperty          = "setProperty"
	wsTypeRequestAction        = "requestAction"
	wsTypeAddEventSubscription = "addEventSubscription"
	wsTypeError                = "error"
)

const (
	// wsSendBufferSize is the per-client outbound message buffer size.
	// Notify never blocks: a client this far behind loses messages.
	wsSendBufferSize = 256

	// wsPingInterval is how often the server pings idle connections.
	wsPingInterval = 30 * time.Second

	// wsPongTimeout is how long past a ping a silent connection
	// survives.
	wsPongTimeout = 60 * time.Second

	// wsMaxMessageSize caps inbound frames.
	wsMaxMessageSize = 1 << 20
)

// Hub tracks connected WebSocket clients across the whole server so
// metrics can count them and shutdown can disconnect them. Message
// delivery does not pass through the hub: each client is a subscriber
// on its thing and receives fan-out notifications directly.
type Hub struct {
	logger  *logging.Logger
	clients map[*wsClient]struct{}
	mu      sync.RWMutex
}

// wsClient is one WebSocket connection bound to one thing. It
// implements thing.Subscriber, so property, action, and event
// messages arrive through the same fan-out path every other
// subscriber uses.
type wsClient struct {
	hub   *Hub
	thing *thing.Thing
	conn  *websocket.Conn
	send  chan []byte
}

// upgrader configures the WebSocket upgrader. All origins are allowed;
// access control is the Host check in the middleware stack.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *wsClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "thing", client.thing.ID(), "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// serveThingSocket upgrades the connection and binds the client to the
// thing as a subscriber. Existing live action records are replayed so
// a client connecting mid-flight sees them.
func (s *Server) serveThingSocket(w http.ResponseWriter, r *http.Request, t *thing.Thing) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		hub:   s.hub,
		thing: t,
		conn:  conn,
		send:  make(chan []byte, wsSendBufferSize),
	}

	s.hub.Register(client)
	t.Subscribe(client)

	for _, desc := range t.ActionDescriptions("") {
		client.sendMessage(string(thing.NotificationAction), desc)
	}

	// Start read/write pumps
	go client.writePump()
	go client.readPump()
}

// Notify implements thing.Subscriber. The notification kinds double as
// the protocol messageType strings and Data is the wire payload, so
// the frame is a straight marshal. Must not block: trySend drops when
// the buffer is full.
func (c *wsClient) Notify(n thing.Notification) {
	raw, err := json.Marshal(map[string]any{
		"messageType": string(n.Kind),
		"data":        n.Data,
	})
	if err != nil {
		c.hub.logger.Error("failed to marshal notification", "kind", n.Kind, "error", err)
		return
	}
	c.trySend(raw)
}

// readPump reads messages from the WebSocket connection. On exit the
// client is detached from the thing, purging any per-event
// registrations with it.
func (c *wsClient) readPump() {
	defer func() {
		c.thing.Unsubscribe(c)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection alive
		// even if browser doesn't respond to protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(wsPongTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(wsPongTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches an inbound protocol message.
func (c *wsClient) handleMessage(data []byte) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("Parsing request failed", nil)
		return
	}

	msgType, hasType := msg["messageType"].(string)
	payload, hasData := msg["data"].(map[string]any)
	if !hasType || !hasData {
		c.sendError("Invalid message", nil)
		return
	}

	switch msgType {
	case wsTypeSetProperty:
		for name, value := range payload {
			if err := c.thing.SetProperty(name, value); err != nil {
				c.sendError(err.Error(), nil)
			}
		}

	case wsTypeRequestAction:
		for name, params := range payload {
			var input map[string]any
			if p, ok := params.(map[string]any); ok {
				input, _ = p["input"].(map[string]any)
			}
			a, err := c.thing.RequestAction(name, input)
			if err != nil {
				c.sendError("Invalid action request", msg)
				continue
			}
			go a.Start()
		}

	case wsTypeAddEventSubscription:
		for name := range payload {
			c.thing.SubscribeToEvent(name, c)
		}

	default:
		c.sendError("Unknown messageType: "+msgType, msg)
	}
}

// trySend attempts to send data to the client's send channel.
// It silently handles closed channels (client disconnected during broadcast)
// and full buffers (slow client).
func (c *wsClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		c.hub.logger.Debug("websocket client buffer full, dropping message", "thing", c.thing.ID())
	}
}

// sendMessage marshals and queues one protocol frame.
func (c *wsClient) sendMessage(messageType string, data map[string]any) {
	raw, err := json.Marshal(map[string]any{
		"messageType": messageType,
		"data":        data,
	})
	if err != nil {
		return
	}
	c.trySend(raw)
}

// sendError queues a protocol error frame. When the failing request is
// supplied it is echoed back under "request".
func (c *wsClient) sendError(message string, request map[string]any) {
	data := map[string]any{
		"status":  "400 Bad Request",
		"message": message,
	}
	if request != nil {
		data["request"] = request
	}
	c.sendMessage(wsTypeError, data)
}
