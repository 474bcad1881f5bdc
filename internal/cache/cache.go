// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package cache provides the TTL-bound read-through cache sitting in
// front of the storage adapters.
//
// The cache is versioned as a whole, not per entry: a single "last
// write" timestamp is the basis for the TTL check, and any stale read
// clears every entry (conservative invalidation). Staleness is checked
// lazily on read; there is no background timer. Each process context
// maintains its own cache, so staleness windows are per-context.
package cache

import (
	"sync"
	"time"

	"github.com/localekit/localekit/internal/metrics"
)

// DefaultTTL is the default cache lifetime (5 minutes).
const DefaultTTL = 5 * time.Minute

// Entry is one cached item.
type Entry struct {
	Key        string
	Value      any
	InsertedAt time.Time
}

// Stats tracks cache performance counters.
type Stats struct {
	Hits          int64
	Misses        int64
	Invalidations int64
	TotalKeys     int64
}

// Cache is a thread-safe in-memory cache with whole-cache TTL semantics.
// Construct one per application context; there are no package-level
// instances.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]Entry
	lastWrite time.Time
	ttl       time.Duration
	stats     Stats

	// now is swappable for deterministic expiry tests.
	now func() time.Time
}

// New creates a cache with the given TTL. A non-positive ttl falls back
// to DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the cache's time source. Tests use it to step time
// without sleeping.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Get retrieves a value. If the entry is absent, or the cache as a whole
// has outlived its TTL, the entire cache is cleared and a miss is
// reported; the caller is expected to re-populate from storage.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) > 0 && c.now().Sub(c.lastWrite) > c.ttl {
		c.entries = make(map[string]Entry)
		c.stats.Invalidations++
		c.stats.TotalKeys = 0
		c.stats.Misses++
		metrics.CacheInvalidations.Inc()
		metrics.CacheMisses.Inc()
		return nil, false
	}

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		metrics.CacheMisses.Inc()
		return nil, false
	}

	c.stats.Hits++
	metrics.CacheHits.Inc()
	return entry.Value, true
}

// Set stores a value and resets the global last-write timestamp that the
// TTL check is based on.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = Entry{Key: key, Value: value, InsertedAt: now}
	c.lastWrite = now
	c.stats.TotalKeys = int64(len(c.entries))
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) == 0 {
		return
	}
	c.entries = make(map[string]Entry)
	c.stats.Invalidations++
	c.stats.TotalKeys = 0
	metrics.CacheInvalidations.Inc()
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetStats returns a snapshot of the cache counters.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// HitRate returns the hit percentage over all reads, or 0 with no reads.
func (c *Cache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.stats.Hits + c.stats.Misses
	if total == 0 {
		return 0
	}
	return float64(c.stats.Hits) / float64(total) * 100
}
