package di

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"treeview-ai/application/interpreter"
	"treeview-ai/application/ports"
	"treeview-ai/application/reconcile"
	domainconfig "treeview-ai/domain/config"
	"treeview-ai/domain/services"
	"treeview-ai/infrastructure/bridge"
	"treeview-ai/infrastructure/config"
	"treeview-ai/infrastructure/observability"
	"treeview-ai/interfaces/http/rest"
	"treeview-ai/interfaces/websocket"
)

// ProvideLogger builds the process logger.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(cfg.Environment, cfg.Observability.LogLevel)
}

// ProvideMetrics builds the prometheus collector.
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Observability.Namespace)
}

// ProvideTracing installs the global tracer provider. The cleanup flushes
// pending spans.
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: cfg.Observability.Namespace,
		Environment: cfg.Environment,
		Endpoint:    cfg.Observability.TracingEndpoint,
		SampleRate:  cfg.Observability.SampleRate,
		Insecure:    cfg.Observability.TracingInsecure,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideBridgeClient builds the HTTP client shared by both bridges.
func ProvideBridgeClient(cfg *config.Config, logger *zap.Logger, metrics *observability.Collector) *bridge.Client {
	return bridge.NewClient(bridge.ClientConfig{
		BaseURL:          cfg.API.BaseURL,
		Token:            cfg.API.Token,
		Timeout:          cfg.API.Timeout,
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		OpenTimeout:      cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		MinRequests:      cfg.Breaker.MinRequests,
	}, logger.Named("bridge"), metrics)
}

// ProvideSessionBridge returns the traced session bridge.
func ProvideSessionBridge(client *bridge.Client) ports.SessionBridge {
	return bridge.TraceSessionBridge(bridge.NewSessionBridge(client))
}

// ProvideChatBridge returns the traced chat bridge.
func ProvideChatBridge(client *bridge.Client) ports.ChatBridge {
	return bridge.TraceChatBridge(bridge.NewChatBridge(client))
}

// ProvideInterpreter builds the reply interpreter.
func ProvideInterpreter(logger *zap.Logger) *interpreter.Interpreter {
	return interpreter.New(logger.Named("interpreter"))
}

// ProvideHub starts the websocket hub.
func ProvideHub(logger *zap.Logger) (*websocket.Hub, func()) {
	hub := websocket.NewHub(logger.Named("websocket"))
	go hub.Run()
	return hub, hub.Stop
}

// ProvideController builds the reconciliation controller rendering into
// the hub.
func ProvideController(
	cfg *config.Config,
	sessions ports.SessionBridge,
	chat ports.ChatBridge,
	interp *interpreter.Interpreter,
	hub *websocket.Hub,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*reconcile.Controller, func()) {
	domain := cfg.Domain
	opts := reconcile.Options{
		View:    hub,
		Logger:  logger.Named("reconcile"),
		Metrics: metrics,
		Config:  &domain,
	}
	if cfg.Session.ViewportWidth > 0 && cfg.Session.ViewportHeight > 0 {
		opts.Viewport = &services.Viewport{Width: cfg.Session.ViewportWidth, Height: cfg.Session.ViewportHeight}
	}
	ctrl := reconcile.NewController(sessions, chat, interp, opts)
	return ctrl, func() {
		if err := ctrl.Close(); err != nil {
			logger.Warn("failed to close controller", zap.Error(err))
		}
	}
}

// ProvideWebSocketServer builds the websocket endpoint.
func ProvideWebSocketServer(cfg *config.Config, hub *websocket.Hub, ctrl *reconcile.Controller, logger *zap.Logger) *websocket.Server {
	wsConfig := websocket.DefaultServerConfig()
	wsConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	return websocket.NewServer(hub, ctrl, wsConfig, logger.Named("websocket"))
}

// ProvideRouter builds the HTTP handler.
func ProvideRouter(
	cfg *config.Config,
	ctrl *reconcile.Controller,
	ws *websocket.Server,
	metrics *observability.Collector,
	logger *zap.Logger,
) http.Handler {
	routerConfig := rest.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Recorder:       metrics,
		WebSocket:      ws.HandleWebSocket,
	}
	if cfg.Observability.MetricsEnabled {
		routerConfig.Metrics = metrics.Handler()
	}
	return rest.NewRouter(ctrl, routerConfig, logger.Named("http")).Setup()
}

// ProvideWatcher hot-reloads the engine tunables from the configuration
// file into the controller. Without a file it returns nil.
func ProvideWatcher(cfg *config.Config, ctrl *reconcile.Controller, logger *zap.Logger) (*config.Watcher, func(), error) {
	if cfg.File == "" {
		return nil, func() {}, nil
	}
	w, err := config.NewWatcher(cfg.File, logger.Named("config"))
	if err != nil {
		return nil, nil, err
	}
	w.OnChange(func(domain *domainconfig.DomainConfig) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := ctrl.UpdateConfig(ctx, domain); err != nil {
			logger.Warn("failed to apply reloaded config", zap.Error(err))
		}
	})
	w.Start()
	return w, w.Stop, nil
}
