package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// DefaultReferenceTTL bounds how long a cached list is trusted.
const DefaultReferenceTTL = 5 * time.Minute

// ReferenceCache implements domain.ReferenceCache using one Redis hash per
// endpoint with JSON-serialized fields.
//
// Key schema:
//
//	omencreator:ref:{baseURL}  - hash with fields "categories" and "oracles"
type ReferenceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewReferenceCache creates a ReferenceCache. ttl <= 0 selects
// DefaultReferenceTTL.
func NewReferenceCache(c *Client, ttl time.Duration) *ReferenceCache {
	if ttl <= 0 {
		ttl = DefaultReferenceTTL
	}
	return &ReferenceCache{rdb: c.Underlying(), ttl: ttl}
}

func refKey(endpoint string) string { return keyPrefix + "ref:" + endpoint }

const (
	fieldCategories = "categories"
	fieldOracles    = "oracles"
)

// SetCategories stores the category forest of endpoint.
func (rc *ReferenceCache) SetCategories(ctx context.Context, endpoint string, roots []domain.Category) error {
	return rc.set(ctx, endpoint, fieldCategories, roots)
}

// Categories returns the cached forest or domain.ErrNotFound.
func (rc *ReferenceCache) Categories(ctx context.Context, endpoint string) ([]domain.Category, error) {
	var out []domain.Category
	if err := rc.get(ctx, endpoint, fieldCategories, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetOracles stores the oracle list of endpoint.
func (rc *ReferenceCache) SetOracles(ctx context.Context, endpoint string, oracles []domain.Oracle) error {
	return rc.set(ctx, endpoint, fieldOracles, oracles)
}

// Oracles returns the cached oracle list or domain.ErrNotFound.
func (rc *ReferenceCache) Oracles(ctx context.Context, endpoint string) ([]domain.Oracle, error) {
	var out []domain.Oracle
	if err := rc.get(ctx, endpoint, fieldOracles, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Invalidate drops both lists of endpoint.
func (rc *ReferenceCache) Invalidate(ctx context.Context, endpoint string) error {
	if err := rc.rdb.Del(ctx, refKey(endpoint)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate reference %s: %w", endpoint, err)
	}
	return nil
}

func (rc *ReferenceCache) set(ctx context.Context, endpoint, field string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", field, err)
	}
	key := refKey(endpoint)
	pipe := rc.rdb.TxPipeline()
	pipe.HSet(ctx, key, field, data)
	pipe.Expire(ctx, key, rc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set %s %s: %w", field, endpoint, err)
	}
	return nil
}

func (rc *ReferenceCache) get(ctx context.Context, endpoint, field string, dst any) error {
	data, err := rc.rdb.HGet(ctx, refKey(endpoint), field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("redis: get %s %s: %w", field, endpoint, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("redis: unmarshal %s %s: %w", field, endpoint, err)
	}
	return nil
}

var _ domain.ReferenceCache = (*ReferenceCache)(nil)
