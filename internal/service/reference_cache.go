package service

import (
	"context"
	"sync"
	"time"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

var _ domain.ReferenceCache = (*MemoryReferenceCache)(nil)

type refEntry struct {
	categories   []domain.Category
	categoriesAt time.Time
	oracles      []domain.Oracle
	oraclesAt    time.Time
}

// MemoryReferenceCache keeps reference data in process for ttl.
type MemoryReferenceCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*refEntry
}

// NewMemoryReferenceCache returns a cache whose entries expire after ttl.
func NewMemoryReferenceCache(ttl time.Duration) *MemoryReferenceCache {
	return &MemoryReferenceCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*refEntry),
	}
}

func (c *MemoryReferenceCache) entry(endpoint string) *refEntry {
	e, ok := c.entries[endpoint]
	if !ok {
		e = &refEntry{}
		c.entries[endpoint] = e
	}
	return e
}

func (c *MemoryReferenceCache) fresh(at time.Time) bool {
	return !at.IsZero() && c.now().Sub(at) < c.ttl
}

func (c *MemoryReferenceCache) SetCategories(_ context.Context, endpoint string, roots []domain.Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(endpoint)
	e.categories, e.categoriesAt = roots, c.now()
	return nil
}

func (c *MemoryReferenceCache) Categories(_ context.Context, endpoint string) ([]domain.Category, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[endpoint]; ok && c.fresh(e.categoriesAt) {
		return e.categories, nil
	}
	return nil, domain.ErrNotFound
}

func (c *MemoryReferenceCache) SetOracles(_ context.Context, endpoint string, oracles []domain.Oracle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(endpoint)
	e.oracles, e.oraclesAt = oracles, c.now()
	return nil
}

func (c *MemoryReferenceCache) Oracles(_ context.Context, endpoint string) ([]domain.Oracle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[endpoint]; ok && c.fresh(e.oraclesAt) {
		return e.oracles, nil
	}
	return nil, domain.ErrNotFound
}

func (c *MemoryReferenceCache) Invalidate(_ context.Context, endpoint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, endpoint)
	return nil
}
