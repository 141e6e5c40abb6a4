//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"treeview-ai/infrastructure/config"
)

// ObservabilityProviders covers logging, metrics and tracing.
var ObservabilityProviders = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracing,
)

// BridgeProviders covers the session and chat API.
var BridgeProviders = wire.NewSet(
	ProvideBridgeClient,
	ProvideSessionBridge,
	ProvideChatBridge,
)

// ApplicationProviders covers the interpreter and the controller.
var ApplicationProviders = wire.NewSet(
	ProvideInterpreter,
	ProvideController,
	ProvideWatcher,
)

// InterfaceProviders covers the HTTP and websocket surfaces.
var InterfaceProviders = wire.NewSet(
	ProvideHub,
	ProvideWebSocketServer,
	ProvideRouter,
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ObservabilityProviders,
	BridgeProviders,
	ApplicationProviders,
	InterfaceProviders,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The returned
// cleanup tears it down in reverse order.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
