package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirasaad/fxquote/infra/initializer"
	"github.com/amirasaad/fxquote/pkg/app"
	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/amirasaad/fxquote/webapi"
	log "github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
)

// @title fxquote API
// @version 1.0.0
// @description Exchange rate quotes that degrade gracefully: live, cache, stale cache, fallback.
// @license.name MIT
// @host localhost:8000
// @BasePath /
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(config.EnvFile())
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	fiberApp, cleanup, err := newServer(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Default().Error("Failed to release dependencies", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger := slog.Default()
	logger.Info("Starting server",
		"env", cfg.Env,
		"address", addr,
		"scheme", cfg.Server.Scheme,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- fiberApp.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server", "timeout", cfg.Server.ShutdownTimeout)
	if err := fiberApp.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newServer wires dependencies, services and routes. The returned cleanup
// releases cache connections.
func newServer(cfg *config.App, opts ...initializer.Option) (*fiber.App, func() error, error) {
	deps, err := initializer.InitializeDependencies(cfg, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	a, err := app.New(deps, cfg)
	if err != nil {
		_ = deps.Close()
		return nil, nil, fmt.Errorf("failed to create application: %w", err)
	}

	return webapi.SetupApp(a), deps.Close, nil
}
