package core

import (
	"context"
	"slices"
	"sync"
)

// GuestCache holds the guest listing between imports. It is filled on the
// first read after Invalidate.
type GuestCache struct {
	load func(ctx context.Context) ([]GuestSummary, error)

	mu    sync.Mutex
	data  []GuestSummary
	dirty bool
}

// NewGuestCache creates an empty cache filled by load.
func NewGuestCache(load func(ctx context.Context) ([]GuestSummary, error)) *GuestCache {
	return &GuestCache{load: load, dirty: true}
}

// Get returns the cached listing, loading it if needed. The caller gets its
// own copy.
func (c *GuestCache) Get(ctx context.Context) ([]GuestSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dirty {
		data, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		c.data, c.dirty = data, false
	}
	return slices.Clone(c.data), nil
}

// Invalidate marks the listing stale.
func (c *GuestCache) Invalidate() {
	c.mu.Lock()
	c.dirty = true
	c.data = nil
	c.mu.Unlock()
}
