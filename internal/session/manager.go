// Package session tracks which endpoint is active and the token issued for
// each endpoint.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// Manager is the explicit session context handed to every component that
// needs authentication state. Tokens live in an endpoint→token map that is
// mirrored to a persistent Store.
type Manager struct {
	mu       sync.RWMutex
	store    domain.SessionStore
	logger   *slog.Logger
	endpoint string
	tokens   map[string]string

	listeners []func(domain.Session)
}

// NewManager creates a Manager over store with no endpoint selected.
func NewManager(store domain.SessionStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		logger: logger.With(slog.String("component", "session")),
		tokens: make(map[string]string),
	}
}

// OnChange registers fn to run after every session change.
func (m *Manager) OnChange(fn func(domain.Session)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Switch makes endpoint current and re-derives its session from the store.
// Nothing from the previous endpoint carries over.
func (m *Manager) Switch(ctx context.Context, endpoint string) (domain.Session, error) {
	token, err := m.store.Get(ctx, endpoint)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, fmt.Errorf("session: load %s: %w", endpoint, err)
	}

	m.mu.Lock()
	m.endpoint = endpoint
	if token != "" {
		m.tokens[endpoint] = token
	} else {
		delete(m.tokens, endpoint)
	}
	s := m.currentLocked()
	m.mu.Unlock()

	m.notify(s)
	return s, nil
}

// Establish stores a freshly issued token for the current endpoint.
func (m *Manager) Establish(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("session: empty token")
	}
	m.mu.Lock()
	endpoint := m.endpoint
	m.mu.Unlock()
	if endpoint == "" {
		return fmt.Errorf("session: %w: no endpoint selected", domain.ErrUnknownEndpoint)
	}

	if err := m.store.Set(ctx, endpoint, token); err != nil {
		return fmt.Errorf("session: persist token: %w", err)
	}

	m.mu.Lock()
	if m.endpoint != endpoint {
		// Switched away while persisting; the token stays stored for later.
		m.mu.Unlock()
		return nil
	}
	m.tokens[endpoint] = token
	s := m.currentLocked()
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "logged in", slog.String("endpoint", endpoint))
	m.notify(s)
	return nil
}

// Logout clears the current endpoint's token. Calling it again is a no-op
// that leaves the same logged-out state.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	endpoint := m.endpoint
	_, had := m.tokens[endpoint]
	delete(m.tokens, endpoint)
	s := m.currentLocked()
	m.mu.Unlock()

	var err error
	if endpoint != "" {
		if cerr := m.store.Clear(ctx, endpoint); cerr != nil && !errors.Is(cerr, domain.ErrNotFound) {
			err = fmt.Errorf("session: clear token: %w", cerr)
		}
	}
	if had {
		m.logger.InfoContext(ctx, "logged out", slog.String("endpoint", endpoint))
		m.notify(s)
	}
	return err
}

// ForceLogout drops the session after the server rejected it or the local
// state was found inconsistent.
func (m *Manager) ForceLogout(ctx context.Context, reason string) {
	m.logger.WarnContext(ctx, "forcing logout", slog.String("reason", reason))
	if err := m.Logout(ctx); err != nil {
		m.logger.ErrorContext(ctx, "forced logout could not clear store", slog.Any("error", err))
	}
}

// Current returns the session of the active endpoint.
func (m *Manager) Current() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentLocked()
}

// Token returns the current endpoint's token, or "".
func (m *Manager) Token() string {
	return m.Current().Token
}

// IsAuthenticated reports whether the current endpoint has a token.
func (m *Manager) IsAuthenticated() bool {
	return m.Current().IsAuthenticated()
}

// Endpoint returns the active endpoint identity.
func (m *Manager) Endpoint() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.endpoint
}

func (m *Manager) currentLocked() domain.Session {
	return domain.Session{Endpoint: m.endpoint, Token: m.tokens[m.endpoint]}
}

func (m *Manager) notify(s domain.Session) {
	m.mu.RLock()
	ls := append([]func(domain.Session){}, m.listeners...)
	m.mu.RUnlock()
	for _, fn := range ls {
		fn(s)
	}
}
