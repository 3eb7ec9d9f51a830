package curation

import (
	"sync"
	"time"
)

// ttlCache holds one value for a fixed time.
type ttlCache[T any] struct {
	mu       sync.Mutex
	value    T
	cachedAt time.Time
	valid    bool
	ttl      time.Duration
	now      func() time.Time
}

func newTTLCache[T any](ttl time.Duration, now func() time.Time) *ttlCache[T] {
	return &ttlCache[T]{ttl: ttl, now: now}
}

func (c *ttlCache[T]) get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.ttl <= 0 || c.now().Sub(c.cachedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return c.value, true
}

func (c *ttlCache[T]) set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.cachedAt = c.now()
	c.valid = true
}

func (c *ttlCache[T]) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}
