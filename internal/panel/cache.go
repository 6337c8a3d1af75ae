package panel

import (
	"sync"
	"time"
)

type cacheEntry struct {
	stats      Stats
	computedAt time.Time
}

// StatsCache holds aggregate user counts per panel with a freshness TTL.
// Entries older than the TTL are treated as absent. Constructed once at
// process start and injected into the aggregator.
type StatsCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewStatsCache creates a cache with the given TTL.
func NewStatsCache(ttl time.Duration) *StatsCache {
	return &StatsCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns a fresh entry for the key, if one exists.
func (c *StatsCache) Get(key string) (Stats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().Sub(entry.computedAt) >= c.ttl {
		return Stats{}, false
	}
	return entry.stats, true
}

// Set stores stats for the key with the current timestamp.
func (c *StatsCache) Set(key string, stats Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{stats: stats, computedAt: c.now()}
}

// Prune evicts stale entries and returns how many were removed. Keeps the
// cache bounded across long-lived processes with rotating tokens.
func (c *StatsCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.computedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held, fresh or stale.
func (c *StatsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
