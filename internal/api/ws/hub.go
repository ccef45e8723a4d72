package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/woundphoto/internal/models"
	"github.com/your-org/woundphoto/internal/observability"
	"github.com/your-org/woundphoto/internal/queue"
	"github.com/your-org/woundphoto/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware and the API key.
	CheckOrigin: func(r *http.Request) bool { return true },
}

var errHubStopped = errors.New("ws hub stopped")

// Client represents a connected WebSocket client.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string // optional filter
}

type message struct {
	userID string
	data   []byte
}

// Hub maintains active WebSocket clients and fans photo events out to them.
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

// Run starts the hub event loop until ctx is done. Call this in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "filter", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				h.drop(client)
			}
			h.mu.Unlock()
			slog.Debug("ws client disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.userID != "" && client.userID != msg.userID {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client buffer full, disconnect.
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes client; h.mu must be held.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	observability.WSConnections.Dec()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues evt for every client whose filter matches.
func (h *Hub) Broadcast(ctx context.Context, evt *dto.WSEvent, payload []byte) error {
	select {
	case h.broadcast <- message{userID: evt.Photo.UserID, data: payload}:
		return nil
	case <-h.done:
		return errHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishPhoto hands a persisted photo straight to connected clients.
// Used when no event bus is configured.
func (h *Hub) PublishPhoto(ctx context.Context, photo *models.Photo) error {
	payload, err := queue.EncodePhotoEvent(photo)
	if err != nil {
		return err
	}
	return h.Broadcast(ctx, &dto.WSEvent{Type: dto.EventPhotoUploaded, Photo: dto.NewPhotoResponse(photo)}, payload)
}

// HandleBusEvent rebroadcasts an event received from the bus.
func (h *Hub) HandleBusEvent(ctx context.Context, evt *dto.WSEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return h.Broadcast(ctx, evt, payload)
}

// HandleWS handles WebSocket upgrade requests. ?userId= limits the feed to one patient.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 64),
		userID: c.Query("userId"),
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

	// Incoming messages are ignored; the loop only detects disconnection.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
