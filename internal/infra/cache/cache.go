// Package cache provides in-memory TTL caches backed by an expirable LRU.
// Each instance of the BFA holds its own caches; a restart forgets every
// session and selection.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Recorder receives hit/miss counts. *observability.Metrics satisfies it.
type Recorder interface {
	IncrCacheHit(cache string)
	IncrCacheMiss(cache string)
}

type nopRecorder struct{}

func (nopRecorder) IncrCacheHit(string)  {}
func (nopRecorder) IncrCacheMiss(string) {}

// LRU is a thread-safe size-bounded cache with per-entry TTL.
type LRU[T any] struct {
	name  string
	items *expirable.LRU[string, T]
	rec   Recorder
}

// New creates a cache holding at most size entries, each living for ttl.
// A nil recorder disables hit/miss accounting.
func New[T any](name string, size int, ttl time.Duration, rec Recorder) *LRU[T] {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &LRU[T]{
		name:  name,
		items: expirable.NewLRU[string, T](size, nil, ttl),
		rec:   rec,
	}
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *LRU[T]) Get(key string) (T, bool) {
	v, ok := c.items.Get(key)
	if ok {
		c.rec.IncrCacheHit(c.name)
	} else {
		c.rec.IncrCacheMiss(c.name)
	}
	return v, ok
}

// Set stores a value, resetting its TTL.
func (c *LRU[T]) Set(key string, value T) {
	c.items.Add(key, value)
}

// Delete removes a value from the cache.
func (c *LRU[T]) Delete(key string) {
	c.items.Remove(key)
}

// Len returns the number of live entries.
func (c *LRU[T]) Len() int {
	return c.items.Len()
}
