package cache

import (
	"context"
	"log"
	"sync"
	"time"
)

// MemoryCache is an in-process TTL cache. Eviction is lazy: expired entries
// are dropped when read. Sweep exists for periodic cleanup but correctness
// never depends on it.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

type memoryEntry struct {
	record    PageRecord
	expiresAt time.Time
}

// NewMemoryCache creates an in-memory cache with the given TTL
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	log.Printf("[Cache] MemoryCache initialized (ttl=%s)", ttl)
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// Get returns the cached record for url, or false if absent or expired
func (c *MemoryCache) Get(_ context.Context, url string) (*PageRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[url]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, url)
		return nil, false
	}
	record := entry.record
	return &record, true
}

// Put stores a copy of record under url, resetting its TTL
func (c *MemoryCache) Put(_ context.Context, url string, record *PageRecord) {
	if record == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[url] = memoryEntry{
		record:    *record,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Sweep removes all expired entries and returns how many were dropped
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for url, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, url)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, including any not yet swept
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache occupancy
func (c *MemoryCache) Stats() Stats {
	return Stats{Size: c.Len(), TTL: int(c.ttl.Seconds())}
}
