// Package di wires the view host together.
package di

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"treeview-ai/application/interpreter"
	"treeview-ai/application/ports"
	"treeview-ai/application/reconcile"
	"treeview-ai/infrastructure/bridge"
	"treeview-ai/infrastructure/config"
	"treeview-ai/infrastructure/observability"
	"treeview-ai/interfaces/websocket"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *observability.Collector
	Tracing     *observability.TracerProvider
	Client      *bridge.Client
	Sessions    ports.SessionBridge
	Chat        ports.ChatBridge
	Interpreter *interpreter.Interpreter
	Hub         *websocket.Hub
	Controller  *reconcile.Controller
	WebSocket   *websocket.Server
	Router      http.Handler
	// Watcher is nil when no configuration file was loaded.
	Watcher *config.Watcher
}

// MountConfiguredSession mounts the session named in the configuration, if
// any. A history failure is logged and tolerated.
func (c *Container) MountConfiguredSession(ctx context.Context) error {
	id := c.Config.Session.ID
	if id == "" {
		c.Logger.Info("no session configured, waiting for a mount request")
		return nil
	}
	result, err := c.Controller.Mount(ctx, id)
	if err != nil && result.HistoryError == "" {
		return err
	}
	c.Logger.Info("configured session mounted",
		zap.String("session_id", id),
		zap.Int("messages", result.Messages),
		zap.Int("replayed", result.Replayed),
		zap.String("history_error", result.HistoryError))
	return nil
}
