package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/apiwatch/apiwatch/internal/model"
	"github.com/apiwatch/apiwatch/internal/pkg/logger"
	"github.com/gorilla/websocket"
)

// RecentStore keeps a capped window of recently persisted events so a
// freshly opened dashboard has something to show before new traffic
// arrives. Redis-backed in production, in-memory otherwise.
type RecentStore interface {
	Push(ctx context.Context, e *model.Event) error
	Recent(ctx context.Context, limit int) ([]*model.Event, error)
}

const (
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
	clientBuffer = 64
	pushTimeout  = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin than the collector.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans persisted events out to connected dashboard websockets. Publish
// never blocks the ingest path: slow clients drop frames.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	store   RecentStore
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(store RecentStore) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		store:   store,
	}
}

// Publish broadcasts one event to every connected client and records it in
// the recent-events store.
func (h *Hub) Publish(e *model.Event) {
	if e == nil {
		return
	}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		if err := h.store.Push(ctx, e); err != nil {
			logger.Warn("live feed store push failed", "error", err)
		}
		cancel()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow consumer; drop the frame rather than stall ingest.
		}
	}
}

// Recent returns the latest stored events, newest first.
func (h *Hub) Recent(ctx context.Context, limit int) ([]*model.Event, error) {
	if h.store == nil {
		return []*model.Event{}, nil
	}
	return h.store.Recent(ctx, limit)
}

// ServeWS upgrades the request and streams events until the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump exists only to notice the peer closing; the feed is one-way.
func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
