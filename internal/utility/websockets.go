package utility

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow CORS for development
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Messages queued per connection before it is treated as stalled.
	sendBuffer = 16
)

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// ProgressHub holds the open websocket connections of each user. A user may be
// connected from several devices at once. Each connection has its own writer, so
// Send never waits on a peer.
type ProgressHub struct {
	mu      sync.Mutex
	clients map[string]map[*websocket.Conn]*hubClient
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{clients: make(map[string]map[*websocket.Conn]*hubClient)}
}

// Register a new client connection
func (h *ProgressHub) Register(userID string, conn *websocket.Conn) {
	client := &hubClient{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}

	h.mu.Lock()
	conns, ok := h.clients[userID]
	if !ok {
		conns = make(map[*websocket.Conn]*hubClient)
		h.clients[userID] = conns
	}
	conns[conn] = client
	n := len(conns)
	h.mu.Unlock()

	go h.writePump(userID, client)
	log.Info().Str("user_id", userID).Int("connections", n).Msg("WebSocket Client Connected")
}

// Unregister a client (when they close the app)
func (h *ProgressHub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(userID, conn)
}

func (h *ProgressHub) remove(userID string, conn *websocket.Conn) {
	conns, ok := h.clients[userID]
	if !ok {
		return
	}
	client, ok := conns[conn]
	if !ok {
		return
	}
	delete(conns, conn)
	close(client.done)
	conn.Close()
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
	log.Info().Str("user_id", userID).Msg("WebSocket Client Disconnected")
}

func (h *ProgressHub) writePump(userID string, client *hubClient) {
	for {
		select {
		case <-client.done:
			return
		case msg := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Error().Err(err).Str("user_id", userID).Msg("Failed to send WS message, removing client")
				h.Unregister(userID, client.conn)
				return
			}
		}
	}
}

// Connections reports how many sockets userID has open.
func (h *ProgressHub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

// Send queues v as JSON for every connection of userID without blocking. A connection
// whose queue is full is dropped.
func (h *ProgressHub) Send(userID string, v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to encode WS message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, client := range h.clients[userID] {
		select {
		case client.send <- msg:
		default:
			log.Warn().Str("user_id", userID).Msg("WS client is not reading, removing client")
			h.remove(userID, conn)
		}
	}
}
