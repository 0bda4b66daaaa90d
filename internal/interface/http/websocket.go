package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/pkg/logger"
)

const (
	wsWriteWait   = 10 * time.Second
	wsPongWait    = 60 * time.Second
	wsPingPeriod  = (wsPongWait * 9) / 10
	wsSendBuffer  = 32
	wsMaxReadSize = 4 << 10
)

// eventMessage is what clients receive for each domain event.
type eventMessage struct {
	Type        shared.EventType       `json:"type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HUB
// Fans domain events out to websocket clients by topic. Clients only get
// "something changed" notices and refetch through the REST endpoints.
// ══════════════════════════════════════════════════════════════════════════════

// Hub tracks websocket clients and their topic subscriptions.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logger.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	topics map[shared.EventType]bool
	once   sync.Once
}

// wants reports whether the client subscribed to t. No topics means all.
func (c *wsClient) wants(t shared.EventType) bool {
	return len(c.topics) == 0 || c.topics[t]
}

// NewHub subscribes a hub to every event on events.
func NewHub(events shared.EventSubscriber, allowedOrigins []string, log *logger.Logger) (*Hub, error) {
	if log == nil {
		log = logger.Default()
	}

	h := &Hub{
		logger:  log.With(logger.Component("ws_hub")),
		clients: make(map[*wsClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if originAllowed(allowedOrigins, origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}

	if err := events.SubscribeAll(h.broadcast); err != nil {
		return nil, err
	}
	return h, nil
}

// ServeWS upgrades the request and streams events until the client leaves.
// Topics come from ?topics=a,b; unknown topics are rejected before upgrading.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	topics, err := parseTopics(r.URL.Query().Get("topics"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_topics", err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logger.Err(err))
		return
	}

	c := &wsClient{
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		topics: topics,
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(wsWriteWait))
		_ = conn.Close()
		return
	}

	h.logger.Debug("websocket client connected", logger.Int("topics", len(topics)), logger.Int("clients", h.ClientCount()))

	go h.writePump(c)
	h.readPump(c)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Later events are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// close stops the writer, which then closes the connection.
func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

// broadcast is the event handler registered on the bus. Slow clients whose
// buffer is full are disconnected instead of blocking the bus.
func (h *Hub) broadcast(event shared.Event) error {
	data, err := json.Marshal(eventMessage{
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return nil
	}
	var slow []*wsClient
	for c := range h.clients {
		if !c.wants(event.EventType()) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client")
		h.unregister(c)
	}
	return nil
}

// readPump discards client messages and keeps the read deadline fresh on pongs.
func (h *Hub) readPump(c *wsClient) {
	defer h.unregister(c)

	c.conn.SetReadLimit(wsMaxReadSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", logger.Err(err))
			}
			return
		}
	}
}

// writePump sends queued events and pings. It owns the connection's writes.
func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// parseTopics reads a comma separated topic list. Empty means every topic.
func parseTopics(raw string) (map[shared.EventType]bool, error) {
	topics := make(map[shared.EventType]bool)
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := shared.ParseEventType(part)
		if err != nil {
			return nil, err
		}
		topics[t] = true
	}
	return topics, nil
}
