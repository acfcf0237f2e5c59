// Package cache implements the query result cache: a TTL-bounded LRU keyed
// by a digest of everything that can change a query's answer. Policy corpora
// change rarely and users repeat questions, so hit rates are high and a hit
// skips the entire retrieval pipeline.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a bounded TTL + LRU cache. Safe for concurrent use.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache holding at most capacity entries, each valid for ttl.
// A zero ttl disables expiry and leaves only the LRU bound.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity <= 0 {
		capacity = 512
	}
	return &Cache[V]{
		lru: expirable.NewLRU[string, V](capacity, nil, ttl),
	}
}

// Get returns the entry for key. Expired entries count as misses.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores the entry for key.
func (c *Cache[V]) Set(key string, value V) {
	c.lru.Add(key, value)
}

// Purge drops every entry. Called on corpus swap: entries are keyed by
// corpus hash so stale ones could never be returned, but they can never hit
// again either and would only evict live entries.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// Len returns the current number of entries.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Stats returns hit and miss counts since construction.
func (c *Cache[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// HitRate returns the fraction of lookups served from cache.
func (c *Cache[V]) HitRate() float64 {
	h, m := c.Stats()
	total := h + m
	if total == 0 {
		return 0
	}
	return float64(h) / float64(total)
}
