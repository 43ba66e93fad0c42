package realtime

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 16
)

// SpotEvent announces a change of spot availability
type SpotEvent struct {
	Type          string `json:"type"`
	SpotID        uint   `json:"spot_id"`
	LotID         uint   `json:"lot_id"`
	IsAvailable   bool   `json:"is_available"`
	ReservationID uint   `json:"reservation_id,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// Event types
const (
	EventSpotReserved = "spot_reserved"
	EventSpotReleased = "spot_released"
	EventSpotFreed    = "spot_freed"
)

type client struct {
	conn *websocket.Conn
	send chan SpotEvent
}

// Hub fans spot events out to connected WebSocket clients
type Hub struct {
	upgrader websocket.Upgrader

	clients    map[*client]struct{}
	clientsMux sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

// PublishSpotEvent delivers the event to every client.
// Slow clients whose buffer is full are dropped.
func (h *Hub) PublishSpotEvent(event SpotEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	h.clientsMux.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			slow = append(slow, c)
		}
	}
	h.clientsMux.RUnlock()

	for _, c := range slow {
		log.Printf("[Realtime] Dropping slow client %s", c.conn.RemoteAddr())
		h.remove(c)
	}
}

// ServeWS upgrades the request and streams events until the peer goes away
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Realtime] Upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan SpotEvent, sendBuffer)}
	h.clientsMux.Lock()
	h.clients[c] = struct{}{}
	h.clientsMux.Unlock()

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) remove(c *client) {
	h.clientsMux.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.clientsMux.Unlock()
}

// readLoop only consumes control frames; clients never send data
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
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

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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

// Close disconnects all clients
func (h *Hub) Close() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
