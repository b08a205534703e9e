// Package events streams preview job updates to WebSocket subscribers,
// grouped by studio session.
package events

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"promptmaster/internal/domain"
)

const (
	sendBuffer = 32
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Event is one job update as sent on the wire.
type Event struct {
	JobID      string              `json:"jobId"`
	SessionID  string              `json:"sessionId"`
	Generation uint64              `json:"generation"`
	State      string              `json:"state"`
	Handle     *domain.MediaHandle `json:"handle,omitempty"`
	Error      string              `json:"error,omitempty"`
}

type client struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
}

type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

// NewHub builds a hub. checkOrigin may be nil to accept same-origin only.
func NewHub(checkOrigin func(r *http.Request) bool, logger *zerolog.Logger) *Hub {
	l := zerolog.New(io.Discard)
	if logger != nil {
		l = *logger
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   l.With().Str("component", "events").Logger(),
		subs:     make(map[string]map[*client]struct{}),
	}
}

// Publish sends ev to every subscriber of sessionID. A subscriber whose
// buffer is full misses the event.
func (h *Hub) Publish(sessionID string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[sessionID] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn().Str("session_id", sessionID).Str("job_id", ev.JobID).Msg("subscriber buffer full, event dropped")
		}
	}
}

// Subscribers returns the number of live connections for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// ServeSession upgrades the request and subscribes it to sessionID until
// the peer goes away.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, sessionID: sessionID, send: make(chan []byte, sendBuffer)}
	h.register(c)
	go h.writePump(c)
	h.readPump(c)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, set := range h.subs {
		for c := range set {
			close(c.send)
		}
		delete(h.subs, sessionID)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[c.sessionID]
	if !ok {
		set = make(map[*client]struct{})
		h.subs[c.sessionID] = set
	}
	set[c] = struct{}{}
	h.logger.Debug().Str("session_id", c.sessionID).Int("subscribers", len(set)).Msg("subscriber joined")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[c.sessionID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.subs, c.sessionID)
	}
}

// readPump only services control frames; clients have nothing to say.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("session_id", c.sessionID).Msg("websocket read")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Warn().Err(err).Str("session_id", c.sessionID).Msg("websocket write")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
