package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pydea-rs/omen-creator-panel/internal/category"
	"github.com/pydea-rs/omen-creator-panel/internal/server"
	"github.com/pydea-rs/omen-creator-panel/internal/server/handler"
	"github.com/pydea-rs/omen-creator-panel/internal/server/ws"
	"github.com/pydea-rs/omen-creator-panel/internal/tui"
)

// TUIMode runs the interactive terminal form until the user quits.
func (a *App) TUIMode(ctx context.Context, deps *Dependencies) error {
	m := tui.New(ctx, deps.Workspace, deps.Orchestrator, tui.Options{
		Endpoint:        deps.Endpoint,
		DefaultCategory: a.cfg.Submission.DefaultCategory,
		Picker: category.Options{
			HideDelay: a.cfg.Picker.HideDelay.Duration,
			TopOffset: a.cfg.Picker.TopOffset,
			Gap:       a.cfg.Picker.Gap,
		},
		Logger: a.logger,
	})
	return tui.Run(ctx, m, a.cfg.TUI.Mouse)
}

// ServeMode runs the headless HTTP + websocket API. The configured endpoint
// is selected in the background so the server is reachable while reference
// data loads.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	logger := a.logger.With(slog.String("mode", "serve"))
	busy := func() bool { return deps.Orchestrator.State().Busy() }

	var lock handler.Locker
	if deps.LockManager != nil {
		lock = deps.LockManager
	}
	var history handler.HistoryLister
	if deps.History != nil {
		history = deps.History
	}

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(),
		Session:    handler.NewSessionHandler(deps.Workspace, busy, logger),
		Reference:  handler.NewReferenceHandler(deps.Workspace, logger),
		Submission: handler.NewSubmissionHandler(deps.Workspace, deps.Orchestrator, lock, logger),
		History:    handler.NewHistoryHandler(history, logger),
	}
	hub := ws.NewHub(deps.SignalBus, deps.Snapshot, logger)
	srv := server.NewServer(server.Config{
		Addr:           a.cfg.Server.Addr,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		APIKey:         a.cfg.Server.APIKey,
		RateLimit:      a.cfg.Server.RateLimit,
		RateWindow:     a.cfg.Server.RateWindow.Duration,
		IdempotencyTTL: a.cfg.Server.IdempotencyTTL.Duration,
	}, handlers, hub, deps.RateLimiter, logger)

	if a.cfg.Server.APIKey == "" {
		logger.Warn("server: no api_key configured, the API is open")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := deps.Workspace.Select(gctx, deps.Endpoint); err != nil {
			logger.Warn("serve: initial endpoint selection failed", slog.Any("error", err))
		}
		return nil
	})

	g.Go(func() error {
		if err := hub.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(srv.Start)

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
