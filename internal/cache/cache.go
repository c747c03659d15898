// Package cache holds the bounded-lifetime caches used to avoid repeating
// expensive external lookups.
//
// A Cache never returns an entry past its expiry. Writing a key replaces the
// value and its expiry together; there is no refresh operation.
package cache

import (
	"sync"
	"time"
)

type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// TTLCache is an in-memory Cache safe for concurrent use. Expired entries are
// dropped lazily on Get or in bulk by Sweep.
type TTLCache[K comparable, V any] struct {
	ttl     time.Duration
	now     func() time.Time
	lock    sync.RWMutex
	entries map[K]entry[V]
}

func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return NewTTLCacheWithClock[K, V](ttl, time.Now)
}

func NewTTLCacheWithClock[K comparable, V any](ttl time.Duration, now func() time.Time) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		ttl:     ttl,
		now:     now,
		entries: make(map[K]entry[V]),
	}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.lock.RLock()
	e, found := c.entries[key]
	c.lock.RUnlock()

	if !found {
		var zero V
		return zero, false
	}

	if e.expired(c.now()) {
		c.lock.Lock()
		// another writer may have replaced it since the read lock was released
		if current, ok := c.entries[key]; ok && current.expired(c.now()) {
			delete(c.entries, key)
		}
		c.lock.Unlock()

		var zero V
		return zero, false
	}

	return e.value, true
}

func (c *TTLCache[K, V]) Put(key K, value V) {
	e := entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.entries[key] = e
}

// Sweep removes every expired entry and reports how many were dropped.
func (c *TTLCache[K, V]) Sweep() int {
	now := c.now()

	c.lock.Lock()
	defer c.lock.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *TTLCache[K, V]) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.entries)
}

func (c *TTLCache[K, V]) TTL() time.Duration {
	return c.ttl
}
