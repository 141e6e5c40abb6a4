package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"treeview-ai/application/ports"
	"treeview-ai/application/reconcile"
	"treeview-ai/domain/core/valueobjects"
	pkgerrors "treeview-ai/pkg/errors"
)

// Inbound message types.
const (
	TypeMoveNode = "MOVE_NODE"
	TypeViewport = "VIEWPORT"
)

// Controller is the part of the reconciliation controller the socket
// needs.
type Controller interface {
	Frame(ctx context.Context) (ports.Frame, error)
	Status(ctx context.Context) (reconcile.Status, error)
	MoveNode(ctx context.Context, id valueobjects.NodeID, pos valueobjects.Position) error
	SetViewport(ctx context.Context, width, height float64) error
}

// Server upgrades HTTP requests to websocket connections on the hub.
type Server struct {
	hub        *Hub
	controller Controller
	upgrader   websocket.Upgrader
	maxConns   int
	timeout    time.Duration
	logger     *zap.Logger
}

// ServerConfig holds websocket server configuration.
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	AllowedOrigins  []string
	// MaxConnections caps connections per session.
	MaxConnections int
	// RequestTimeout bounds each inbound controller call.
	RequestTimeout time.Duration
}

// DefaultServerConfig returns the default websocket configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		MaxConnections:  16,
		RequestTimeout:  5 * time.Second,
	}
}

// NewServer creates a server. A nil config uses the defaults.
func NewServer(hub *Hub, controller Controller, config *ServerConfig, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	return &Server{
		hub:        hub,
		controller: controller,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     checkOrigin(config.AllowedOrigins),
		},
		maxConns: config.MaxConnections,
		timeout:  config.RequestTimeout,
		logger:   logger,
	}
}

// checkOrigin accepts requests without an Origin header, and any origin
// when the list is empty or contains "*".
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket upgrades the request. The optional "session" query
// parameter restricts the connection to one session; without it the
// connection follows whatever session is mounted.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")

	if s.maxConns > 0 && s.hub.ConnectionCount(sessionID) >= s.maxConns {
		s.logger.Warn("connection limit exceeded",
			zap.String("session_id", sessionID),
			zap.Int("current_connections", s.hub.ConnectionCount(sessionID)))
		http.Error(w, "Connection limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr))
		return
	}

	client := NewClient(sessionID, s.hub, conn, s.handleInbound, s.logger)
	client.Start()

	s.logger.Info("websocket connection established",
		zap.String("session_id", sessionID),
		zap.String("connection_id", client.ID()),
		zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	frame, err := s.controller.Frame(ctx)
	if err != nil {
		s.logger.Warn("failed to load initial frame", zap.Error(err))
		return
	}
	if sessionID == "" || frame.SessionID == sessionID {
		client.Reply(TypeFrame, frame)
	}
}

type moveNodeRequest struct {
	ID       string `json:"id"`
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"position"`
}

type viewportRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) handleInbound(c *Client, msg InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var err error
	switch msg.Type {
	case TypeMoveNode:
		err = s.moveNode(ctx, c, msg.Data)
	case TypeViewport:
		var req viewportRequest
		if err = json.Unmarshal(msg.Data, &req); err != nil {
			err = pkgerrors.NewMalformed("viewport payload", err)
			break
		}
		err = s.controller.SetViewport(ctx, req.Width, req.Height)
	default:
		c.logger.Debug("ignoring message", zap.String("type", msg.Type))
		return
	}

	if err != nil {
		c.logger.Info("inbound message rejected",
			zap.String("type", msg.Type),
			zap.Error(err))
		c.Reply(TypeError, map[string]string{
			"request": msg.Type,
			"type":    string(pkgerrors.TypeOf(err)),
			"message": pkgerrors.Message(err),
		})
	}
}

func (s *Server) moveNode(ctx context.Context, c *Client, data json.RawMessage) error {
	var req moveNodeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return pkgerrors.NewMalformed("move payload", err)
	}
	if req.ID == "" {
		return pkgerrors.NewValidation("node id is required")
	}

	// A drag from a canvas still showing a previous session is stale.
	if c.SessionID() != "" {
		st, err := s.controller.Status(ctx)
		if err != nil {
			return err
		}
		if st.SessionID != c.SessionID() {
			return pkgerrors.NewConflict("session " + c.SessionID() + " is no longer mounted")
		}
	}

	pos := valueobjects.Position{X: req.Position.X, Y: req.Position.Y}
	return s.controller.MoveNode(ctx, valueobjects.NodeID(req.ID), pos)
}
