package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cache is a concurrency-safe TTL cache for search results, keyed by the
// normalized query and options. Expired entries are pruned by a background
// ticker and opportunistically on writes.
type Cache struct {
	ttl             time.Duration
	cleanupInterval time.Duration
	maxEntries      int

	mu      sync.RWMutex
	entries map[string]cacheEntry

	cleanupTicker *time.Ticker
	cleanupStop   chan bool
	closeOnce     sync.Once

	hits   int64
	misses int64
}

type cacheEntry struct {
	results   []Result
	expiresAt time.Time
}

// CacheConfig holds configuration for the Cache
type CacheConfig struct {
	TTL             time.Duration `json:"ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
	MaxEntries      int           `json:"max_entries"`
}

// NewCache creates a new Cache instance with the given configuration
func NewCache(config CacheConfig) *Cache {
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 1 * time.Minute
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 512
	}

	c := &Cache{
		ttl:             config.TTL,
		cleanupInterval: config.CleanupInterval,
		maxEntries:      config.MaxEntries,
		entries:         make(map[string]cacheEntry),
		cleanupStop:     make(chan bool, 1),
	}

	c.startCleanup()

	return c
}

// Close stops the background cleanup and drops all entries.
// Closing an already-closed cache is a no-op.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		if c.cleanupTicker != nil {
			c.cleanupTicker.Stop()
			close(c.cleanupStop)
		}
	})

	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	return nil
}

// Get returns cached results for the query, if present and not expired.
// The returned slice is a copy and safe for the caller to modify.
func (c *Cache) Get(query string, opts Options) ([]Result, bool) {
	key := cacheKey(query, opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		// Expired; drop it so the map doesn't hold stale data.
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	c.hits++
	results := make([]Result, len(entry.results))
	copy(results, entry.results)
	return results, true
}

// Put stores results for the query. When the cache is full the entry
// closest to expiry is evicted.
func (c *Cache) Put(query string, opts Options, results []Result) {
	key := cacheKey(query, opts)

	stored := make([]Result, len(results))
	copy(stored, results)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.pruneLocked()
		if len(c.entries) >= c.maxEntries {
			c.evictSoonestLocked()
		}
	}

	c.entries[key] = cacheEntry{
		results:   stored,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Len returns the number of cached entries, including not-yet-pruned
// expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// startCleanup starts the automatic cleanup process
func (c *Cache) startCleanup() {
	c.cleanupTicker = time.NewTicker(c.cleanupInterval)
	go func() {
		for {
			select {
			case <-c.cleanupTicker.C:
				c.mu.Lock()
				c.pruneLocked()
				c.mu.Unlock()
			case <-c.cleanupStop:
				return
			}
		}
	}()
}

func (c *Cache) pruneLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) evictSoonestLocked() {
	var soonestKey string
	var soonest time.Time
	for key, entry := range c.entries {
		if soonestKey == "" || entry.expiresAt.Before(soonest) {
			soonestKey = key
			soonest = entry.expiresAt
		}
	}
	if soonestKey != "" {
		delete(c.entries, soonestKey)
	}
}

// cacheKey normalizes the query (case, whitespace) and folds in the
// options that change what a provider returns.
func cacheKey(query string, opts Options) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	key := fmt.Sprintf("%s|max=%d", normalized, opts.limit())
	if opts.Freshness != "" {
		key += "|fresh=" + opts.Freshness
	}
	if len(opts.IncludeDomains) > 0 {
		key += "|inc=" + strings.Join(opts.IncludeDomains, ",")
	}
	if len(opts.ExcludeDomains) > 0 {
		key += "|exc=" + strings.Join(opts.ExcludeDomains, ",")
	}
	return key
}

// Cached wraps a provider with a read-through cache.
func Cached(p Provider, cache *Cache) Provider {
	return &cachedProvider{provider: p, cache: cache}
}

type cachedProvider struct {
	provider Provider
	cache    *Cache
}

func (cp *cachedProvider) Name() string { return cp.provider.Name() }

func (cp *cachedProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if results, ok := cp.cache.Get(query, opts); ok {
		return results, nil
	}

	results, err := cp.provider.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	cp.cache.Put(query, opts, results)
	return results, nil
}
