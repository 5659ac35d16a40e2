package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/facevault/internal/models"
	"github.com/your-org/facevault/internal/observability"
	"github.com/your-org/facevault/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client represents a connected WebSocket client.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID string // optional filter
}

type message struct {
	sessionID string
	data      []byte
}

// ErrHubClosed is returned by Notify once the hub has stopped.
var ErrHubClosed = errors.New("ws hub closed")

// Hub maintains active WebSocket clients and broadcasts capture statuses.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub event loop until ctx is done. Call this in a goroutine,
// once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "session_filter", client.sessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				observability.WSConnections.Dec()
			}
			h.mu.Unlock()
			slog.Debug("ws client disconnected")

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg message) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients {
		if client.sessionID != "" && client.sessionID != msg.sessionID {
			continue
		}
		select {
		case client.send <- msg.data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	// Client buffer full: disconnect.
	h.mu.Lock()
	for _, client := range slow {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
			observability.WSConnections.Dec()
		}
	}
	h.mu.Unlock()
}

// Notify broadcasts a capture status to subscribed clients.
func (h *Hub) Notify(ctx context.Context, status models.CaptureStatus) error {
	data, err := json.Marshal(dto.WSEvent{
		Type:      "capture_status",
		SessionID: status.SessionID,
		Data: dto.CaptureStatus{
			SessionID: status.SessionID,
			RequestID: status.RequestID,
			Outcome:   status.Outcome,
			Message:   status.Message,
			PhotoURL:  status.PhotoURL,
			Timestamp: status.Timestamp.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("marshal ws event: %w", err)
	}

	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}

	select {
	case h.broadcast <- message{sessionID: status.SessionID, data: data}:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS handles WebSocket upgrade requests.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, 64),
		sessionID: c.Query("session_id"),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	for {
		// Incoming messages are ignored; the read only detects disconnection.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
