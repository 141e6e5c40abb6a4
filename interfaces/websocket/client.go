package websocket

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

// InboundMessage is a message sent by the render layer.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// InboundHandler processes messages read from a client.
type InboundHandler func(c *Client, msg InboundMessage)

// Client is one render-layer connection subscribed to a session.
type Client struct {
	id        string
	sessionID string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	inbound   InboundHandler
	logger    *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client. An empty sessionID follows the mounted
// session.
func NewClient(sessionID string, hub *Hub, conn *websocket.Conn, inbound InboundHandler, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:        id,
		sessionID: sessionID,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		inbound:   inbound,
		logger: logger.With(
			zap.String("session_id", sessionID),
			zap.String("connection_id", id),
		),
	}
}

// Start registers the client and runs its pumps.
func (c *Client) Start() {
	c.hub.register <- c
	go c.writePump()
	go c.readPump()
	c.sendConnectionEstablished()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
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
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		switch messageType {
		case websocket.TextMessage:
			c.handleTextMessage(message)
		case websocket.BinaryMessage:
			c.logger.Debug("binary messages not supported")
		}
	}
}

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
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) handleTextMessage(message []byte) {
	message = bytes.TrimSpace(message)

	var msg InboundMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug("ignoring unparseable message", zap.Error(err))
		return
	}
	if msg.Type == "pong" {
		return
	}
	if c.inbound == nil {
		return
	}
	c.inbound(c, msg)
}

// Reply queues a message for this client only.
func (c *Client) Reply(messageType string, data any) {
	msg, err := newMessage(c.sessionID, messageType, data)
	if err != nil {
		c.logger.Error("failed to marshal reply", zap.Error(err))
		return
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- raw:
	default:
		c.logger.Warn("send buffer full, reply dropped", zap.String("type", messageType))
	}
}

// closeSend closes the outbound queue once. Only the hub calls it.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendConnectionEstablished() {
	c.Reply(TypeConnectionEstablished, map[string]string{
		"connection_id": c.id,
		"session_id":    c.sessionID,
	})
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// SessionID returns the session the client subscribed to.
func (c *Client) SessionID() string {
	return c.sessionID
}
