package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"treeview-ai/infrastructure/config"
	"treeview-ai/infrastructure/di"
)

func newServeCmd(configPath *string) *cobra.Command {
	var (
		address string
		session string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the view host until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			if session != "" {
				cfg.Session.ID = session
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&address, "addr", "", "listen address (overrides server.address)")
	cmd.Flags().StringVar(&session, "session", "", "session to mount at startup (overrides session.id)")
	return cmd
}

// serve runs the HTTP server until ctx is cancelled, then shuts it down
// and tears the container down.
func serve(ctx context.Context, cfg *config.Config) error {
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer cleanup()
	logger := container.Logger
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.Strings("sources", cfg.LoadedFrom),
		zap.String("environment", cfg.Environment),
		zap.String("api", cfg.API.BaseURL))

	mountCtx, cancel := context.WithTimeout(ctx, cfg.API.Timeout)
	if err := container.MountConfiguredSession(mountCtx); err != nil {
		// The host stays up; a mount can be retried over HTTP.
		logger.Error("failed to mount configured session", zap.Error(err))
	}
	cancel()

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      container.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("address", cfg.Server.Address),
			zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
