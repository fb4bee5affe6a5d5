// Package cache provides an in-memory TTL key/value store with
// per-category default lifetimes and hit/miss accounting.
//
// Entries expire lazily: staleness is checked on read and the expired
// entry deleted then, counted as a miss. CleanupExpired offers an
// explicit sweep for callers that want to bound memory between reads.
package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTTLs maps data categories to their default entry lifetime.
// Quotes go stale in a minute; fundamentals barely move intraday.
var DefaultTTLs = map[string]time.Duration{
	"price":        60 * time.Second,
	"company_info": 24 * time.Hour,
	"news":         30 * time.Minute,
	"sentiment":    time.Hour,
}

// DefaultTTL applies to entries with no explicit TTL and no known category.
const DefaultTTL = 5 * time.Minute

// entry is the stored record for one key. Owned exclusively by Cache;
// callers never see or mutate it directly.
type entry struct {
	data      interface{}
	createdAt time.Time
	ttl       time.Duration
	hits      int
}

// Stats is a point-in-time snapshot of cache accounting.
type Stats struct {
	Hits    int     `json:"hits"`
	Misses  int     `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Size    int     `json:"size"`
}

// Cache is a mutex-guarded TTL store safe for concurrent callers.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttls    map[string]time.Duration
	defTTL  time.Duration

	hits   int
	misses int

	logger *zap.SugaredLogger
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithCategoryTTLs overrides the per-category default TTL table.
func WithCategoryTTLs(ttls map[string]time.Duration) Option {
	return func(c *Cache) {
		c.ttls = make(map[string]time.Duration, len(ttls))
		for k, v := range ttls {
			c.ttls[k] = v
		}
	}
}

// WithDefaultTTL overrides the fallback TTL for uncategorized entries.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *Cache) { c.defTTL = d }
}

// WithClock injects a time source. Tests use this instead of sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache with the default category TTL table.
func New(log *zap.SugaredLogger, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		ttls:    DefaultTTLs,
		defTTL:  DefaultTTL,
		logger:  log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop().Sugar()
	}
	return c
}

// Get returns the cached data for key, or (nil, false) on a miss.
// An expired entry is deleted on read and counted as a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	if c.now().After(e.createdAt.Add(e.ttl)) {
		delete(c.entries, key)
		c.misses++
		c.logger.Debugw("Cache entry expired on read",
			"cache_key", key,
			"ttl_seconds", e.ttl.Seconds())
		return nil, false
	}

	e.hits++
	c.hits++
	return e.data, true
}

// Set stores data under key. A positive ttl wins outright; otherwise the
// category's default applies, then the cache-wide default.
func (c *Cache) Set(key string, data interface{}, ttl time.Duration, category string) {
	if ttl <= 0 {
		if catTTL, ok := c.ttls[category]; ok && catTTL > 0 {
			ttl = catTTL
		} else {
			ttl = c.defTTL
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		data:      data,
		createdAt: c.now(),
		ttl:       ttl,
	}
}

// Delete removes key, reporting whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear removes every entry. Hit/miss counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// CleanupExpired sweeps out every entry whose TTL has elapsed and
// returns the number removed. Unexpired entries are untouched.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.createdAt.Add(e.ttl)) {
			delete(c.entries, key)
			removed++
		}
	}

	if removed > 0 {
		c.logger.Debugw("Cache cleanup removed expired entries",
			"count", removed,
			"size", len(c.entries))
	}
	return removed
}

// GetStats returns a snapshot of hit/miss accounting and current size.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: rate,
		Size:    len(c.entries),
	}
}
