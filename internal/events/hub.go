package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"yt-fetcher/internal/downloader"
	"yt-fetcher/internal/logging"
	"yt-fetcher/internal/metrics"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// frame is the wire shape of every pushed event.
type frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to connected clients, scoped to per-session rooms.
// A session only ever receives its own events.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*client]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Session isolation comes from the opaque token, not the Origin
			// header; the app is served from arbitrary hosts.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		rooms: make(map[string]map[*client]bool),
	}
}

// Serve upgrades the request and joins the client to the session's room.
// The resolved token is echoed back in a "connected" event so clients
// that presented a stale token learn their new session immediately.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, token string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	room, ok := h.rooms[token]
	if !ok {
		room = make(map[*client]bool)
		h.rooms[token] = room
	}
	room[c] = true
	h.mu.Unlock()

	metrics.EventClientsConnected.Inc()
	logging.Debug("client connected: session %s", shortToken(token))

	go c.writePump()
	go h.readPump(c, token)

	h.emit(token, "connected", map[string]string{"session_id": token})
}

// Emit pushes an arbitrary event into a session's room.
func (h *Hub) Emit(token, event string, data interface{}) {
	h.emit(token, event, data)
}

// Log implements downloader.Emitter. Messages are sanitized and capped
// before leaving the process.
func (h *Hub) Log(token, message string) {
	h.emit(token, "log_message", map[string]string{"message": SanitizeMessage(message)})
}

// Progress implements downloader.Emitter.
func (h *Hub) Progress(token string, p downloader.Progress) {
	h.emit(token, "progress_update", p)
}

func (h *Hub) emit(token, event string, data interface{}) {
	payload, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		logging.Error("failed to encode %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	room := h.rooms[token]
	for c := range room {
		select {
		case c.send <- payload:
		default:
			// Slow client; dropping beats blocking the orchestrator.
		}
	}
	h.mu.RUnlock()

	metrics.EventsEmittedTotal.WithLabelValues(event).Inc()
}

// readPump drains inbound frames (clients only listen, but pongs and
// close frames arrive here) and tears the client down on error.
func (h *Hub) readPump(c *client, token string) {
	defer h.drop(c, token)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

func (h *Hub) drop(c *client, token string) {
	h.mu.Lock()
	if room, ok := h.rooms[token]; ok {
		if room[c] {
			delete(room, c)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.rooms, token)
		}
	}
	h.mu.Unlock()

	_ = c.conn.Close()
	metrics.EventClientsConnected.Dec()
	logging.Debug("client disconnected: session %s", shortToken(token))
}

// RoomSize returns how many clients a session currently has connected.
func (h *Hub) RoomSize(token string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[token])
}

func shortToken(token string) string {
	if len(token) >= 8 {
		return token[:8]
	}
	return token
}
