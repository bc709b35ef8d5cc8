// Package app provides the top-level application lifecycle of the market
// creator. It wires together every dependency (session store, workspace,
// submission pipeline, history, notifications, image mirror) and starts the
// interactive or headless mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pydea-rs/omen-creator-panel/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
	deps    *Dependencies
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies and blocks in the given mode until the context
// is cancelled or the mode ends.
func (a *App) Run(ctx context.Context, mode string) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", mode),
		slog.String("endpoint", a.cfg.API.Endpoint),
	)

	deps, err := a.wire(ctx)
	if err != nil {
		return err
	}

	switch strings.ToLower(mode) {
	case "tui":
		return a.TUIMode(ctx, deps)
	case "serve":
		return a.ServeMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", mode)
	}
}

// Exec wires the dependencies, selects the configured endpoint and runs fn.
// One-shot commands use it.
func (a *App) Exec(ctx context.Context, fn func(ctx context.Context, deps *Dependencies) error) error {
	deps, err := a.wire(ctx)
	if err != nil {
		return err
	}
	if err := deps.Workspace.Select(ctx, deps.Endpoint); err != nil {
		return fmt.Errorf("app: select endpoint: %w", err)
	}
	return fn(ctx, deps)
}

func (a *App) wire(ctx context.Context) (*Dependencies, error) {
	if a.deps != nil {
		return a.deps, nil
	}
	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	a.deps = deps
	return deps, nil
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Debug("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	a.deps = nil
}
