package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/domain/repositories"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send small control messages.
	maxMessageSize = 4 * 1024

	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub tracks the open sockets of every owner and pushes ingest progress to them
type Hub struct {
	// Registered clients, grouped by owner.
	clients map[string]map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// Closed when Run returns so late unregisters do not block.
	done chan struct{}

	validator *MessageValidator
	logger    *zap.Logger
}

var _ repositories.IngestEventPublisher = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		validator:  NewMessageValidator(),
		logger:     logger,
	}
}

// Run starts the hub's main loop until ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.ownerID] == nil {
				h.clients[client.ownerID] = make(map[*Client]struct{})
			}
			h.clients[client.ownerID][client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("owner_id", client.ownerID))

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Info("Client unregistered", zap.String("owner_id", client.ownerID))
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	owned, ok := h.clients[client.ownerID]
	if !ok {
		return
	}
	if _, ok := owned[client]; ok {
		delete(owned, client)
		close(client.send)
	}
	if len(owned) == 0 {
		delete(h.clients, client.ownerID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for owner, owned := range h.clients {
		for client := range owned {
			close(client.send)
		}
		delete(h.clients, owner)
	}
}

// ClientCount returns the number of open sockets for an owner
func (h *Hub) ClientCount(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[ownerID])
}

// Publish pushes an ingest event to every socket of its owner. Slow clients
// drop the message instead of blocking the pipeline.
func (h *Hub) Publish(ctx context.Context, event entities.IngestEvent) error {
	payload, err := json.Marshal(CreateIngestProgressMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[event.OwnerID] {
		select {
		case client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		default:
			h.logger.Warn("Dropping progress message for slow client",
				zap.String("owner_id", event.OwnerID),
				zap.String("stage", string(event.Stage)))
		}
	}
	return nil
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	ownerID string

	logger *zap.Logger
}

// HandleWebSocketWithAuth upgrades a request whose owner was already authenticated
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, ownerID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan WriteData, sendBuffer),
		ownerID: ownerID,
		logger:  logger.With(zap.String("owner_id", ownerID)),
	}

	// The greeting is queued before registration so it is always the first frame.
	if payload, err := json.Marshal(CreateConnectedMessage(ownerID)); err == nil {
		client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}
	}
	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.ownerID][c]; !ok {
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Send buffer full, dropping message")
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.sendJSON(CreateErrorMessage("unsupported_frame", "only text messages are accepted", ""))
			continue
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
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

// processMessage answers client control messages
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid client message", zap.Error(err))
		c.sendJSON(CreateErrorMessage("invalid_message", "message could not be processed", err.Error()))
		return
	}

	switch m := msg.(type) {
	case *PingMessage:
		c.sendJSON(CreatePongMessage(m.Data))
	}
}
