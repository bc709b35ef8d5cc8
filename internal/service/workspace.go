package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
	"github.com/pydea-rs/omen-creator-panel/internal/session"
)

// Client is one endpoint's API surface.
type Client interface {
	Login(ctx context.Context, username, password string) (string, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	Oracles(ctx context.Context) ([]domain.Oracle, error)
	UploadImage(ctx context.Context, token string, img domain.Image) (string, error)
	CreateMarket(ctx context.Context, token string, req domain.CreateMarketRequest) error
}

// Dialer builds the client for an endpoint.
type Dialer func(ep domain.Endpoint) Client

// Workspace is the per-endpoint working set: which deployment is active,
// its session, and its reference data. Switching endpoints drops all of it
// and rebuilds from the new endpoint before loading ends.
type Workspace struct {
	dial     Dialer
	sessions *session.Manager
	cache    domain.ReferenceCache
	logger   *slog.Logger

	switchMu sync.Mutex

	mu         sync.RWMutex
	endpoint   domain.Endpoint
	client     Client
	categories []domain.Category
	oracles    []domain.Oracle
	loading    bool
	loadErrs   map[string]error
	gen        uint64
	busy       func() bool
	listeners  []func()
}

// NewWorkspace creates a Workspace with no endpoint selected. cache may be
// nil.
func NewWorkspace(dial Dialer, sessions *session.Manager, cache domain.ReferenceCache, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Workspace{
		dial:     dial,
		sessions: sessions,
		cache:    cache,
		logger:   logger.With(slog.String("component", "workspace")),
		busy:     func() bool { return false },
	}
	sessions.OnChange(func(domain.Session) { w.changed() })
	return w
}

// SetBusy installs the check for a submission in flight.
func (w *Workspace) SetBusy(fn func() bool) {
	w.mu.Lock()
	w.busy = fn
	w.mu.Unlock()
}

// OnChange registers fn to run after endpoint, session or data changes.
func (w *Workspace) OnChange(fn func()) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// Select switches to ep. Categories and oracles are cleared at once, the
// session is re-derived from the store, then both lists are fetched in
// parallel. Each fetch failure is logged and kept individually; Select only
// fails when the session could not be loaded. A newer Select makes the
// results of an older one irrelevant.
func (w *Workspace) Select(ctx context.Context, ep domain.Endpoint) error {
	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.endpoint = ep
	w.client = w.dial(ep)
	w.categories = nil
	w.oracles = nil
	w.loadErrs = nil
	w.loading = true
	client := w.client
	w.mu.Unlock()
	w.changed()

	w.logger.InfoContext(ctx, "workspace: selecting endpoint",
		slog.String("name", ep.Name),
		slog.String("base_url", ep.BaseURL),
	)

	var sessErr error
	w.switchMu.Lock()
	if w.current(gen) {
		if _, err := w.sessions.Switch(ctx, ep.BaseURL); err != nil {
			sessErr = fmt.Errorf("workspace: switch session: %w", err)
		}
	}
	w.switchMu.Unlock()

	cats, oracles, errs := w.load(ctx, client, ep)

	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return sessErr
	}
	w.categories = cats
	w.oracles = oracles
	w.loadErrs = errs
	w.loading = false
	w.mu.Unlock()
	w.changed()

	return sessErr
}

// Refresh drops cached reference data for the active endpoint and loads it
// again.
func (w *Workspace) Refresh(ctx context.Context) error {
	ep := w.Endpoint()
	if ep.BaseURL == "" {
		return fmt.Errorf("workspace: %w: nothing selected", domain.ErrUnknownEndpoint)
	}
	if w.cache != nil {
		if err := w.cache.Invalidate(ctx, ep.BaseURL); err != nil {
			w.logger.WarnContext(ctx, "workspace: cache invalidate failed", slog.Any("error", err))
		}
	}
	return w.Select(ctx, ep)
}

func (w *Workspace) load(ctx context.Context, client Client, ep domain.Endpoint) ([]domain.Category, []domain.Oracle, map[string]error) {
	var (
		cats    []domain.Category
		oracles []domain.Oracle
		mu      sync.Mutex
		errs    = make(map[string]error)
	)
	fail := func(what string, err error) {
		w.logger.WarnContext(ctx, "workspace: fetch failed",
			slog.String("resource", what),
			slog.String("base_url", ep.BaseURL),
			slog.Any("error", err),
		)
		mu.Lock()
		errs[what] = err
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := w.fetchCategories(gctx, client, ep.BaseURL)
		if err != nil {
			fail("categories", err)
			return nil
		}
		cats = c
		return nil
	})
	g.Go(func() error {
		o, err := w.fetchOracles(gctx, client, ep.BaseURL)
		if err != nil {
			fail("oracles", err)
			return nil
		}
		oracles = o
		return nil
	})
	_ = g.Wait()

	if len(errs) == 0 {
		errs = nil
	}
	return cats, oracles, errs
}

func (w *Workspace) fetchCategories(ctx context.Context, client Client, key string) ([]domain.Category, error) {
	if w.cache != nil {
		if c, err := w.cache.Categories(ctx, key); err == nil {
			return c, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			w.logger.WarnContext(ctx, "workspace: cache read failed", slog.Any("error", err))
		}
	}
	c, err := client.Categories(ctx)
	if err != nil {
		return nil, err
	}
	if w.cache != nil {
		if err := w.cache.SetCategories(ctx, key, c); err != nil {
			w.logger.WarnContext(ctx, "workspace: cache set failed", slog.Any("error", err))
		}
	}
	return c, nil
}

func (w *Workspace) fetchOracles(ctx context.Context, client Client, key string) ([]domain.Oracle, error) {
	if w.cache != nil {
		if o, err := w.cache.Oracles(ctx, key); err == nil {
			return o, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			w.logger.WarnContext(ctx, "workspace: cache read failed", slog.Any("error", err))
		}
	}
	o, err := client.Oracles(ctx)
	if err != nil {
		return nil, err
	}
	if w.cache != nil {
		if err := w.cache.SetOracles(ctx, key, o); err != nil {
			w.logger.WarnContext(ctx, "workspace: cache set failed", slog.Any("error", err))
		}
	}
	return o, nil
}

// Login authenticates against the active endpoint and stores the token.
func (w *Workspace) Login(ctx context.Context, username, password string) error {
	client, err := w.activeClient()
	if err != nil {
		return err
	}
	token, err := client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	return w.sessions.Establish(ctx, token)
}

// Logout drops the active endpoint's session.
func (w *Workspace) Logout(ctx context.Context) error {
	return w.sessions.Logout(ctx)
}

// UploadImage routes to the active endpoint.
func (w *Workspace) UploadImage(ctx context.Context, token string, img domain.Image) (string, error) {
	client, err := w.activeClient()
	if err != nil {
		return "", err
	}
	return client.UploadImage(ctx, token, img)
}

// CreateMarket routes to the active endpoint.
func (w *Workspace) CreateMarket(ctx context.Context, token string, req domain.CreateMarketRequest) error {
	client, err := w.activeClient()
	if err != nil {
		return err
	}
	return client.CreateMarket(ctx, token, req)
}

// Disabled reports whether the form must refuse interaction: data still
// loading, no session, or a submission in flight.
func (w *Workspace) Disabled() bool {
	w.mu.RLock()
	loading, busy := w.loading, w.busy
	w.mu.RUnlock()
	return loading || !w.sessions.IsAuthenticated() || busy()
}

// Endpoint returns the active endpoint.
func (w *Workspace) Endpoint() domain.Endpoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.endpoint
}

// Session returns the active session.
func (w *Workspace) Session() domain.Session {
	return w.sessions.Current()
}

// Categories returns the loaded category forest.
func (w *Workspace) Categories() []domain.Category {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.categories
}

// Oracles returns the loaded oracle list.
func (w *Workspace) Oracles() []domain.Oracle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.oracles
}

// Loading reports whether reference data is being fetched.
func (w *Workspace) Loading() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loading
}

// LoadErrors returns the per-resource fetch failures of the last load.
func (w *Workspace) LoadErrors() map[string]error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]error, len(w.loadErrs))
	for k, v := range w.loadErrs {
		out[k] = v
	}
	return out
}

func (w *Workspace) activeClient() (Client, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.client == nil {
		return nil, fmt.Errorf("workspace: %w: nothing selected", domain.ErrUnknownEndpoint)
	}
	return w.client, nil
}

func (w *Workspace) current(gen uint64) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gen == gen
}

func (w *Workspace) changed() {
	w.mu.RLock()
	ls := append([]func(){}, w.listeners...)
	w.mu.RUnlock()
	for _, fn := range ls {
		fn()
	}
}
