// Package websocket pushes view updates to connected render layers and
// accepts drag write-backs from them.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"treeview-ai/application/ports"
	"treeview-ai/domain/core/entities"
)

// Outbound message types.
const (
	TypeConnectionEstablished = "CONNECTION_ESTABLISHED"
	TypeFrame                 = "FRAME"
	TypeFitView               = "FIT_VIEW"
	TypeNotification          = "NOTIFICATION"
	TypeMessage               = "MESSAGE"
	TypeError                 = "ERROR"
	TypePing                  = "ping"
)

// Hub tracks connections per session and fans view updates out to them.
// It implements ports.View; its methods never block the caller.
type Hub struct {
	// sessionID -> set of clients. Clients that subscribed with an empty
	// session id follow whatever session is mounted.
	connections map[string]map[*Client]bool
	mu          sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	metrics HubMetrics
}

var _ ports.View = (*Hub)(nil)

// HubMetrics counts hub traffic.
type HubMetrics struct {
	ActiveConnections atomic.Int64
	MessagesSent      atomic.Int64
	MessagesDropped   atomic.Int64
}

// BroadcastMessage is the envelope every outbound message travels in.
type BroadcastMessage struct {
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// NewHub creates a hub. Call Run to start it.
func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		connections: make(map[string]map[*Client]bool),
		register:    make(chan *Client, 100),
		unregister:  make(chan *Client, 100),
		broadcast:   make(chan *BroadcastMessage, 1000),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Run is the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.deliver(message)

		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop shuts the hub down and closes every connection.
func (h *Hub) Stop() {
	h.logger.Info("stopping websocket hub")
	h.cancel()
}

func (h *Hub) Render(frame ports.Frame) {
	h.publish(frame.SessionID, TypeFrame, frame)
}

func (h *Hub) FitView(sessionID string) {
	h.publish(sessionID, TypeFitView, struct{}{})
}

func (h *Hub) Notify(sessionID string, n ports.Notification) {
	h.publish(sessionID, TypeNotification, n)
}

func (h *Hub) AppendMessage(sessionID string, m entities.Message) {
	h.publish(sessionID, TypeMessage, m)
}

// publish queues a message without blocking; it is dropped when the queue
// is full.
func (h *Hub) publish(sessionID, messageType string, data any) {
	msg, err := newMessage(sessionID, messageType, data)
	if err != nil {
		h.logger.Error("failed to marshal message",
			zap.String("type", messageType),
			zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.metrics.MessagesDropped.Add(1)
		h.logger.Warn("broadcast queue full, message dropped",
			zap.String("session_id", sessionID),
			zap.String("type", messageType))
	}
}

func newMessage(sessionID, messageType string, data any) (*BroadcastMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &BroadcastMessage{
		SessionID: sessionID,
		Type:      messageType,
		Data:      raw,
		Timestamp: time.Now().Unix(),
	}, nil
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[client.sessionID] == nil {
		h.connections[client.sessionID] = make(map[*Client]bool)
	}
	h.connections[client.sessionID][client] = true
	h.metrics.ActiveConnections.Add(1)

	h.logger.Info("client registered",
		zap.String("session_id", client.sessionID),
		zap.String("connection_id", client.id),
		zap.Int("session_connections", len(h.connections[client.sessionID])))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.connections[client.sessionID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	client.closeSend()
	if len(clients) == 0 {
		delete(h.connections, client.sessionID)
	}
	h.metrics.ActiveConnections.Add(-1)

	h.logger.Info("client unregistered",
		zap.String("session_id", client.sessionID),
		zap.String("connection_id", client.id))
}

func (h *Hub) deliver(message *BroadcastMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.connections[message.SessionID])+len(h.connections[""]))
	for c := range h.connections[message.SessionID] {
		targets = append(targets, c)
	}
	if message.SessionID != "" {
		for c := range h.connections[""] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- data:
			h.metrics.MessagesSent.Add(1)
		default:
			h.metrics.MessagesDropped.Add(1)
			h.logger.Warn("closing slow client",
				zap.String("session_id", client.sessionID),
				zap.String("connection_id", client.id))
			go func(c *Client) {
				h.unregister <- c
				c.conn.Close()
			}(client)
		}
	}
}

func (h *Hub) ping() {
	msg := []byte(`{"type":"ping"}`)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.connections {
		for client := range clients {
			select {
			case client.send <- msg:
			default:
			}
		}
	}
}

func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, clients := range h.connections {
		for client := range clients {
			client.closeSend()
			client.conn.Close()
		}
		delete(h.connections, sessionID)
	}
	h.metrics.ActiveConnections.Store(0)
	h.logger.Info("all websocket connections closed")
}

// ConnectionCount returns the number of connections subscribed to sessionID.
func (h *Hub) ConnectionCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[sessionID])
}

// Metrics returns the hub counters.
func (h *Hub) Metrics() (active, sent, dropped int64) {
	return h.metrics.ActiveConnections.Load(), h.metrics.MessagesSent.Load(), h.metrics.MessagesDropped.Load()
}
