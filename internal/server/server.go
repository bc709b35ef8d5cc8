// Package server is the headless HTTP + websocket API of the market creator.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
	"github.com/pydea-rs/omen-creator-panel/internal/server/handler"
	"github.com/pydea-rs/omen-creator-panel/internal/server/middleware"
	"github.com/pydea-rs/omen-creator-panel/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Addr        string
	CORSOrigins []string
	APIKey      string // empty disables authentication
	RateLimit   int    // requests per RateWindow per client, 0 disables
	RateWindow  time.Duration
	// IdempotencyTTL is how long an Idempotency-Key on POST /api/markets
	// is remembered. Zero selects ten minutes.
	IdempotencyTTL time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health     *handler.HealthHandler
	Session    *handler.SessionHandler
	Reference  *handler.ReferenceHandler
	Submission *handler.SubmissionHandler
	History    *handler.HistoryHandler
}

// Server wraps the http.Server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware
// chain: CORS, logging, rate limit, auth. limiter and hub may be nil.
func NewServer(cfg Config, h Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      Routes(cfg, h, hub, limiter, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Routes builds the full handler, exposed for tests.
func Routes(cfg Config, h Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)

	mux.HandleFunc("GET /api/endpoints", h.Session.ListEndpoints)
	mux.HandleFunc("PUT /api/endpoint", h.Session.SelectEndpoint)
	mux.HandleFunc("GET /api/session", h.Session.GetSession)
	mux.HandleFunc("POST /api/session/login", h.Session.Login)
	mux.HandleFunc("DELETE /api/session", h.Session.Logout)

	mux.HandleFunc("GET /api/categories", h.Reference.ListCategories)
	mux.HandleFunc("GET /api/oracles", h.Reference.ListOracles)
	mux.HandleFunc("POST /api/reference/refresh", h.Reference.Refresh)

	mux.HandleFunc("GET /api/submission", h.Submission.GetState)
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	mux.Handle("POST /api/markets", middleware.Idempotency(middleware.NewDedup(ttl))(http.HandlerFunc(h.Submission.CreateMarket)))

	mux.HandleFunc("GET /api/history", h.History.ListHistory)

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var handler http.Handler = mux
	handler = middleware.Auth(cfg.APIKey, "/api/health")(handler)
	if limiter != nil && cfg.RateLimit > 0 {
		handler = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	handler = middleware.CORS(cfg.CORSOrigins)(handler)
	return handler
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
