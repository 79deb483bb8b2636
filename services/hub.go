package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Message is the frame exchanged in both directions.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MessageHandler processes one inbound frame. A returned error is sent
// back to the client as an "error" frame.
type MessageHandler func(ctx context.Context, c *Client, payload json.RawMessage) error

// Broadcaster is the part of the Hub services push updates through.
type Broadcaster interface {
	BroadcastToRoom(roomID uuid.UUID, msgType string, payload interface{})
	SendToUser(userID uuid.UUID, msgType string, payload interface{}) bool
	Unsubscribe(userID, roomID uuid.UUID)
}

// Hub tracks one live connection per user and which rooms each
// connection listens to. Run owns registration; the maps are guarded by
// mutex so broadcasters can read them from any goroutine.
type Hub struct {
	clients map[*Client]bool
	users   map[uuid.UUID]*Client
	rooms   map[uuid.UUID]map[*Client]bool
	mutex   sync.RWMutex

	register   chan *Client
	unregister chan *Client

	handlers   map[string]MessageHandler
	handlersMu sync.RWMutex

	logger *slog.Logger
	ctx    context.Context
	done   chan struct{}
}

type Client struct {
	hub      *Hub
	id       string
	socket   *websocket.Conn
	send     chan []byte
	userID   uuid.UUID
	username string

	// rooms is guarded by hub.mutex.
	rooms     map[uuid.UUID]bool
	closeOnce sync.Once
}

func (c *Client) UserID() uuid.UUID { return c.userID }
func (c *Client) Username() string  { return c.username }

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		users:      make(map[uuid.UUID]*Client),
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		handlers:   make(map[string]MessageHandler),
		logger:     logger,
		ctx:        context.Background(),
		done:       make(chan struct{}),
	}
}

// Handle registers fn for inbound frames of msgType.
func (h *Hub) Handle(msgType string, fn MessageHandler) {
	h.handlersMu.Lock()
	h.handlers[msgType] = fn
	h.handlersMu.Unlock()
}

// Run processes registrations until ctx is cancelled, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			previous := h.users[client.userID]
			if previous != nil {
				h.removeLocked(previous)
			}
			h.clients[client] = true
			h.users[client.userID] = client
			total := len(h.clients)
			h.mutex.Unlock()

			if previous != nil {
				h.logger.Info("connection replaced", "user_id", client.userID, "client_id", previous.id)
			}
			h.logger.Debug("client registered", "user_id", client.userID, "client_id", client.id, "total", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			_, ok := h.clients[client]
			var rooms []uuid.UUID
			if ok {
				rooms = client.roomIDs()
				h.removeLocked(client)
			}
			total := len(h.clients)
			h.mutex.Unlock()

			if ok {
				h.logger.Debug("client unregistered", "user_id", client.userID, "client_id", client.id, "total", total)
				for _, roomID := range rooms {
					h.broadcastPresence(roomID)
				}
			}
		}
	}
}

// Done is closed when Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// removeLocked forgets the client and closes its send channel so
// writePump shuts the socket down. Callers hold h.mutex.
func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client)
	if h.users[client.userID] == client {
		delete(h.users, client.userID)
	}
	for roomID := range client.rooms {
		if members := h.rooms[roomID]; members != nil {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	client.rooms = make(map[uuid.UUID]bool)
	client.closeOnce.Do(func() { close(client.send) })
}

func (h *Hub) drop(clients []*Client) {
	if len(clients) == 0 {
		return
	}
	h.mutex.Lock()
	for _, client := range clients {
		if h.clients[client] {
			h.logger.Warn("send buffer full, dropping client", "user_id", client.userID, "client_id", client.id)
			h.removeLocked(client)
		}
	}
	h.mutex.Unlock()
}

func encode(msgType string, payload interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Payload: payload})
}

// BroadcastToRoom sends a frame to every connection subscribed to roomID.
func (h *Hub) BroadcastToRoom(roomID uuid.UUID, msgType string, payload interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.logger.Error("marshal message", "type", msgType, "error", err)
		return
	}

	var slow []*Client
	h.mutex.RLock()
	for client := range h.rooms[roomID] {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	h.drop(slow)
}

// SendToUser reports whether the user had a live connection.
func (h *Hub) SendToUser(userID uuid.UUID, msgType string, payload interface{}) bool {
	data, err := encode(msgType, payload)
	if err != nil {
		h.logger.Error("marshal message", "type", msgType, "error", err)
		return false
	}

	h.mutex.RLock()
	client := h.users[userID]
	h.mutex.RUnlock()
	if client == nil {
		return false
	}
	return h.sendTo(client, data)
}

// Send delivers a frame to one connection.
func (h *Hub) Send(client *Client, msgType string, payload interface{}) bool {
	data, err := encode(msgType, payload)
	if err != nil {
		h.logger.Error("marshal message", "type", msgType, "error", err)
		return false
	}
	return h.sendTo(client, data)
}

func (h *Hub) sendTo(client *Client, data []byte) bool {
	h.mutex.RLock()
	if !h.clients[client] {
		h.mutex.RUnlock()
		return false
	}
	select {
	case client.send <- data:
		h.mutex.RUnlock()
		return true
	default:
		h.mutex.RUnlock()
		h.drop([]*Client{client})
		return false
	}
}

// Subscribe adds the connection to roomID's audience and announces the
// new presence list.
func (h *Hub) Subscribe(client *Client, roomID uuid.UUID) {
	h.mutex.Lock()
	if !h.clients[client] {
		h.mutex.Unlock()
		return
	}
	members := h.rooms[roomID]
	if members == nil {
		members = make(map[*Client]bool)
		h.rooms[roomID] = members
	}
	members[client] = true
	client.rooms[roomID] = true
	h.mutex.Unlock()

	h.broadcastPresence(roomID)
}

// Unsubscribe removes userID's connection from roomID, if subscribed.
func (h *Hub) Unsubscribe(userID, roomID uuid.UUID) {
	h.mutex.Lock()
	client := h.users[userID]
	removed := false
	if client != nil && client.rooms[roomID] {
		delete(client.rooms, roomID)
		if members := h.rooms[roomID]; members != nil {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
		removed = true
	}
	h.mutex.Unlock()

	if removed {
		h.broadcastPresence(roomID)
	}
}

// OnlineUsers lists users with a live subscription to roomID.
func (h *Hub) OnlineUsers(roomID uuid.UUID) []uuid.UUID {
	h.mutex.RLock()
	ids := make([]uuid.UUID, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		ids = append(ids, client.userID)
	}
	h.mutex.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.users[userID] != nil
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastPresence(roomID uuid.UUID) {
	h.BroadcastToRoom(roomID, "presence_update", map[string]interface{}{
		"roomId": roomID,
		"online": h.OnlineUsers(roomID),
	})
}

// RegisterClient takes ownership of conn and starts its pumps. A previous
// connection of the same user is closed.
func (h *Hub) RegisterClient(conn *websocket.Conn, userID uuid.UUID, username string) *Client {
	client := &Client{
		hub:      h,
		id:       uuid.NewString(),
		socket:   conn,
		send:     make(chan []byte, sendBufferSize),
		userID:   userID,
		username: username,
		rooms:    make(map[uuid.UUID]bool),
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return client
	}

	go client.writePump()
	go client.readPump()

	return client
}

func (c *Client) roomIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", "user_id", c.userID, "error", err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.Send(c, "error", map[string]string{"message": "Invalid message format"})
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.socket.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg inboundMessage) {
	if msg.Type == "ping" {
		c.hub.Send(c, "pong", "pong")
		return
	}

	c.hub.handlersMu.RLock()
	fn := c.hub.handlers[msg.Type]
	c.hub.handlersMu.RUnlock()

	if fn == nil {
		c.hub.logger.Debug("unknown message type", "type", msg.Type, "user_id", c.userID)
		c.hub.Send(c, "error", map[string]string{"message": "Unknown message type: " + msg.Type})
		return
	}

	ctx, cancel := context.WithTimeout(c.hub.ctx, 10*time.Second)
	defer cancel()

	if err := fn(ctx, c, msg.Payload); err != nil {
		text, ok := publicMessage(err)
		if !ok {
			c.hub.logger.Error("websocket handler failed", "type", msg.Type, "user_id", c.userID, "error", err)
			text = "Internal server error"
		}
		c.hub.Send(c, "error", map[string]string{
			"message": text,
			"type":    msg.Type,
		})
	}
}
