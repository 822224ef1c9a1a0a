package mediaproxy

import (
	"sort"
	"sync"
	"time"
)

// Locator is an upstream media URL plus the headers required to fetch it.
type Locator struct {
	URL     string
	Headers map[string]string
}

// cacheEntry represents a cached locator.
type cacheEntry struct {
	locator   Locator
	expiresAt time.Time
}

// LocatorCache keeps recently resolved locators so that repeated range
// requests for the same media do not trigger a new resolution each time.
type LocatorCache struct {
	mu       sync.Mutex
	items    map[string]cacheEntry
	ttl      time.Duration
	maxItems int
	now      func() time.Time
}

// NewLocatorCache creates a cache; a non-positive ttl disables caching.
func NewLocatorCache(ttl time.Duration, maxItems int) *LocatorCache {
	return &LocatorCache{
		items:    make(map[string]cacheEntry),
		ttl:      ttl,
		maxItems: max(maxItems, 1),
		now:      time.Now,
	}
}

// Get returns the locator cached under key if it has not expired.
func (c *LocatorCache) Get(key string) (Locator, bool) {
	if c == nil || c.ttl <= 0 {
		return Locator{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		return Locator{}, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.items, key)
		return Locator{}, false
	}
	return entry.locator, true
}

// Set stores a locator, evicting expired entries first and then the entries
// closest to expiry when the cache is full.
func (c *LocatorCache) Set(key string, loc Locator) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxItems {
		c.evict(len(c.items) - c.maxItems + 1)
	}
	c.items[key] = cacheEntry{locator: loc, expiresAt: c.now().Add(c.ttl)}
}

// Delete removes a locator from the cache.
func (c *LocatorCache) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of cached locators, expired ones included.
func (c *LocatorCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// evict removes at least n entries. Caller holds the lock.
func (c *LocatorCache) evict(n int) {
	now := c.now()
	for key, entry := range c.items {
		if !now.Before(entry.expiresAt) {
			delete(c.items, key)
			n--
		}
	}
	if n <= 0 {
		return
	}

	type keyExpiry struct {
		key       string
		expiresAt time.Time
	}
	entries := make([]keyExpiry, 0, len(c.items))
	for key, entry := range c.items {
		entries = append(entries, keyExpiry{key, entry.expiresAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].expiresAt.Before(entries[j].expiresAt) })

	for _, entry := range entries[:min(n, len(entries))] {
		delete(c.items, entry.key)
	}
}
