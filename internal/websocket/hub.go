package notifyws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/saeid-a/coachmatch/internal/models"
)

var errHubStopped = errors.New("notification hub stopped")

// Hub pushes notifications to the websocket clients of their recipient.
// A user may hold several connections at once. Client sets are owned by the
// Run goroutine.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.Notification
	done       chan struct{}
}

// Client is one websocket connection. Its send channel is never closed;
// the hub cancels the client context instead, which stops WritePump and,
// through the closed connection, ReadPump.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
}

type reader interface {
	MarkRead(ctx context.Context, notificationID string, recipientID string) (*models.Notification, error)
}

type Message struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification,omitempty"`
	Content      string               `json:"content,omitempty"`
	Timestamp    string               `json:"timestamp"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.Notification, 64),
		done:       make(chan struct{}),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for userID, set := range h.clients {
				for client := range set {
					client.cancel()
				}
				delete(h.clients, userID)
			}
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			h.remove(client)
		case notification := <-h.broadcast:
			h.deliver(notification)
		}
	}
}

// Register adds client to the hub. After the hub stopped the client is
// cancelled right away.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.cancel()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
	client.cancel()
}

// Publish queues notification for its recipient's open connections. Users
// without a connection simply read it from the notification list later.
func (h *Hub) Publish(ctx context.Context, notification models.Notification) error {
	select {
	case h.broadcast <- notification:
		return nil
	case <-h.done:
		return errHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver is Publish for callers without a request context, such as the
// cross-instance subscriber.
func (h *Hub) Deliver(notification models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Publish(ctx, notification); err != nil {
		log.Printf("notification hub dropped %s: %v", notification.ID, err)
	}
}

func (h *Hub) deliver(notification models.Notification) {
	encoded, err := json.Marshal(Message{
		Type:         "notification",
		Notification: &notification,
		Timestamp:    timestamp(notification.CreatedAt),
	})
	if err != nil {
		log.Printf("notification hub encode message: %v", err)
		return
	}
	h.sendToUser(notification.RecipientID, encoded)
}

// sendToUser drops clients whose buffer is full; they reconnect and read
// the notification list.
func (h *Hub) sendToUser(userID string, payload []byte) {
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := set[client]; exists {
		delete(set, client)
		client.cancel()
	}
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

// ReadPump handles client frames until the connection closes or the hub
// drops the client. Clients can acknowledge a notification with
// {"type":"mark_read","notification_id":"..."}; the service bounds the
// store call.
func (c *Client) ReadPump(service reader) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil || c.ctx.Err() != nil {
			return
		}
		c.handleFrame(service, payload)
	}
}

func (c *Client) handleFrame(service reader, payload []byte) {
	var incoming struct {
		Type           string `json:"type"`
		NotificationID string `json:"notification_id"`
	}
	if err := json.Unmarshal(payload, &incoming); err != nil {
		writeMessage(c, "error", "invalid message payload")
		return
	}

	switch incoming.Type {
	case "ping":
		writeMessage(c, "pong", "")
	case "mark_read":
		if incoming.NotificationID == "" {
			writeMessage(c, "error", "notification_id is required")
			return
		}
		if _, err := service.MarkRead(c.ctx, incoming.NotificationID, c.userID); err != nil {
			writeMessage(c, "error", "failed to mark notification as read")
			return
		}
		writeMessage(c, "marked_read", incoming.NotificationID)
	default:
		writeMessage(c, "error", "unsupported message type")
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// writeMessage replies to the client directly. A dropped client or a full
// buffer discards the reply.
func writeMessage(client *Client, messageType, content string) {
	if client.ctx.Err() != nil {
		return
	}
	payload, err := json.Marshal(Message{
		Type:      messageType,
		Content:   content,
		Timestamp: timestamp(time.Now()),
	})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	case <-client.ctx.Done():
	default:
		client.cancel()
	}
}

func timestamp(at time.Time) string {
	return at.UTC().Format(time.RFC3339)
}
