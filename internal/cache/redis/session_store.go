package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// SessionStore implements domain.SessionStore with one hash holding every
// endpoint's token, so several panels on one machine share a login.
//
// Key schema:
//
//	omencreator:sessions  - hash endpoint base URL -> token
type SessionStore struct {
	rdb *redis.Client
	key string
}

// NewSessionStore creates a SessionStore backed by the given Client.
func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{rdb: c.Underlying(), key: keyPrefix + "sessions"}
}

// Get returns the token for endpoint or domain.ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, endpoint string) (string, error) {
	tok, err := s.rdb.HGet(ctx, s.key, endpoint).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("redis: get session %s: %w", endpoint, err)
	}
	if tok == "" {
		return "", domain.ErrNotFound
	}
	return tok, nil
}

// Set stores token for endpoint.
func (s *SessionStore) Set(ctx context.Context, endpoint, token string) error {
	if err := s.rdb.HSet(ctx, s.key, endpoint, token).Err(); err != nil {
		return fmt.Errorf("redis: set session %s: %w", endpoint, err)
	}
	return nil
}

// Clear removes endpoint's token. Clearing an absent entry is not an error.
func (s *SessionStore) Clear(ctx context.Context, endpoint string) error {
	if err := s.rdb.HDel(ctx, s.key, endpoint).Err(); err != nil {
		return fmt.Errorf("redis: clear session %s: %w", endpoint, err)
	}
	return nil
}

var _ domain.SessionStore = (*SessionStore)(nil)
