
package httpapi

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/snapshot"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Message is what websocket clients receive.
type Message struct {
	Type       string             `json:"type"`
	Success    bool               `json:"success"`
	LastUpdate time.Time          `json:"lastUpdate"`
	Currencies *snapshot.Snapshot `json:"currencies"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans snapshots out to websocket clients. New clients get the latest
// snapshot right away.
type Hub struct {
	log *logger.Logger

	clients    map[*client]struct{}
	broadcast  chan *snapshot.Snapshot
	register   chan *client
	unregister chan *client
	done       chan struct{}
	count      atomic.Int64

	mu     sync.RWMutex
	latest *snapshot.Snapshot
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan *snapshot.Snapshot, 16),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Publish queues snap for every client. It never blocks; when the queue is
// full the snapshot is dropped, new clients still receive it as latest.
func (h *Hub) Publish(snap *snapshot.Snapshot) {
	h.mu.Lock()
	h.latest = snap
	h.mu.Unlock()

	select {
	case h.broadcast <- snap:
	default:
		h.log.Warn("broadcast queue full, dropping cycle %s", snap.CycleID)
	}
}

func (h *Hub) Connections() int { return int(h.count.Load()) }

// Run is the hub loop.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.count.Store(0)
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.mu.RLock()
			latest := h.latest
			h.mu.RUnlock()
			if latest != nil {
				c.send <- message("INITIAL", latest)
			}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.count.Store(int64(len(h.clients)))
			}

		case snap := <-h.broadcast:
			msg := message("UPDATE", snap)
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Client too slow, disconnect to keep the hub moving.
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}

func message(typ string, snap *snapshot.Snapshot) Message {
	return Message{Type: typ, Success: true, LastUpdate: snap.LastUpdate, Currencies: snap}
}

// Handle upgrades the request and registers the client.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade: %v", err)
		return
	}

	cl := &client{hub: h, conn: conn, send: make(chan Message, 8)}
	select {
	case h.register <- cl:
	case <-h.done:
		conn.Close()
		return
	}

	go cl.writePump()
	go cl.readPump()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// readPump only watches the connection; clients send nothing useful.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("read: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.hub.log.Debug("write: %v", err)
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
