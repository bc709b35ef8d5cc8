package domain

import (
	"context"
	"time"
)

// ReferenceCache keeps the category forest and oracle list of an endpoint.
// Misses return ErrNotFound.
type ReferenceCache interface {
	SetCategories(ctx context.Context, endpoint string, roots []Category) error
	Categories(ctx context.Context, endpoint string) ([]Category, error)
	SetOracles(ctx context.Context, endpoint string, oracles []Oracle) error
	Oracles(ctx context.Context, endpoint string) ([]Oracle, error)
	Invalidate(ctx context.Context, endpoint string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub for submission state fan-out.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
