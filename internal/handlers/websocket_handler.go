package handlers

import (
	"net/http"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	websocket "github.com/gorilla/websocket"

	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Subscriber hands out observer event channels
type Subscriber interface {
	Subscribe(id string) <-chan domain.ObserverEvent
	Unsubscribe(id string)
}

// WSMessage is a control message exchanged with an observer
type WSMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id,omitempty"`
	Error    string `json:"error,omitempty"`
	Time     string `json:"time,omitempty"`
}

// WebSocketHandler streams observer events to connected clients
type WebSocketHandler struct {
	events Subscriber
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(events Subscriber) *WebSocketHandler {
	return &WebSocketHandler{events: events}
}

// wsClient serializes writes to one connection
type wsClient struct {
	id        string
	conn      *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil {
			logger.Warn("Failed to close WebSocket connection", "client_id", c.id, "error", err)
		}
	})
}

func (c *wsClient) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// HandleWebSocket upgrades the connection and forwards events until the
// client disconnects or the event stream closes
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade to WebSocket", "error", err)
		return
	}

	client := &wsClient{id: uuid.New().String(), conn: conn}
	logger.Info("Observer connected", "client_id", client.id, "remote", r.RemoteAddr)

	events := h.events.Subscribe(client.id)
	done := make(chan struct{})

	// A closed event stream ends the connection, which unblocks the read loop
	go func() {
		defer close(done)
		defer client.close()
		h.forwardEvents(client, events)
	}()

	h.sendMessage(client, WSMessage{Type: "connected", ClientID: client.id, Time: now()})
	h.messageLoop(client)

	h.events.Unsubscribe(client.id)
	<-done
	logger.Info("Observer disconnected", "client_id", client.id)
}

func (h *WebSocketHandler) messageLoop(client *wsClient) {
	for {
		var msg WSMessage
		if err := client.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Failed to read WebSocket message", "client_id", client.id, "error", err)
			}
			return
		}

		switch msg.Type {
		case "ping":
			h.sendMessage(client, WSMessage{Type: "pong", Time: now()})
		default:
			h.sendMessage(client, WSMessage{Type: "error", Error: "Unknown message type: " + msg.Type})
		}
	}
}

func (h *WebSocketHandler) forwardEvents(client *wsClient, events <-chan domain.ObserverEvent) {
	for event := range events {
		if err := client.write(event); err != nil {
			logger.Warn("Failed to forward event", "client_id", client.id, "event_type", event.Type, "error", err)
			return
		}
	}
}

func (h *WebSocketHandler) sendMessage(client *wsClient, msg WSMessage) {
	if err := client.write(msg); err != nil {
		logger.Warn("Failed to send WebSocket message", "client_id", client.id, "error", err)
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
