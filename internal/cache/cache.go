// SPDX-License-Identifier: MIT

// Package cache stores upstream catalog responses with a TTL, either in
// process memory or in Redis.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Cache provides thread-safe byte caching with expiration.
type Cache interface {
	// Get returns the cached bytes for key, or false when missing or expired.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes key.
	Delete(ctx context.Context, key string)
	// Stats returns cache statistics.
	Stats() Stats
	// Close releases background resources.
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64 // successful Get operations
	Misses      int64 // Get operations that found nothing usable
	Sets        int64
	Evictions   int64 // expired entries removed by the janitor
	CurrentSize int
}

type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

func (c *counters) snapshot(size int) Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return now.After(e.expiration)
}

// MemoryCache is an in-memory Cache with a background janitor.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   counters
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryCache creates an in-memory cache. cleanupInterval controls how often
// expired entries are removed; zero disables the janitor.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*entry),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	} else {
		close(c.done)
	}
	return c
}

// Get retrieves a value.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found || e.isExpired(c.now()) {
		c.stats.misses.Add(1)
		return nil, false
	}
	c.stats.hits.Add(1)
	return e.value, true
}

// Set stores a copy of value.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	stored := append([]byte(nil), value...)

	c.mu.Lock()
	c.entries[key] = &entry{value: stored, expiration: c.now().Add(ttl)}
	c.mu.Unlock()
	c.stats.sets.Add(1)
}

// Delete removes a value.
func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	return c.stats.snapshot(size)
}

// Close stops the janitor and waits for it to exit.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
	return nil
}

func (c *MemoryCache) deleteExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if e.isExpired(now) {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.evictions.Add(int64(count))
	return count
}

func (c *MemoryCache) janitor(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

// NoOpCache never stores anything. It is used when caching is disabled.
type NoOpCache struct{}

func (NoOpCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (NoOpCache) Set(context.Context, string, []byte, time.Duration) {}
func (NoOpCache) Delete(context.Context, string) {}
func (NoOpCache) Stats() Stats { return Stats{} }
func (NoOpCache) Close() error { return nil }
