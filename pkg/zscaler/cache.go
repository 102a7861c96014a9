package zscaler

import (
	"container/list"
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/zscaler/internal/constants"
)

//go:generate mockgen -destination=mocks/mock_zscaler.go -package=mocks github.com/fivetwenty-io/zscaler/pkg/zscaler Cache,Executor,Logger

// Cache stores successful GET responses keyed by normalized request URL.
//
// Implementations never return errors: a backend failure is logged and
// degrades to a miss. Expired entries are never returned.
type Cache interface {
	// CreateKey derives the cache key for a request URL.
	CreateKey(rawURL string) string
	Contains(ctx context.Context, key string) bool
	Get(ctx context.Context, key string) (*CacheEntry, bool)
	// Add inserts or overwrites an entry and resets its idle timer.
	Add(ctx context.Context, key string, entry *CacheEntry)
	Delete(ctx context.Context, key string)
	// Clear removes every entry.
	Clear(ctx context.Context)
}

// CacheEntry represents a cached response.
type CacheEntry struct {
	Key            string      `json:"key"`
	StatusCode     int         `json:"status_code"`
	Headers        http.Header `json:"headers,omitempty"`
	Body           []byte      `json:"body"`
	InsertedAt     time.Time   `json:"inserted_at"`
	LastAccessedAt time.Time   `json:"last_accessed_at"`
}

// Expired reports whether the entry is past its time-to-live or has been idle
// past its time-to-idle. A zero duration disables that bound.
func (e *CacheEntry) Expired(now time.Time, ttl, tti time.Duration) bool {
	if ttl > 0 && now.Sub(e.InsertedAt) >= ttl {
		return true
	}

	if tti > 0 && now.Sub(e.LastAccessedAt) >= tti {
		return true
	}

	return false
}

func (e *CacheEntry) clone() *CacheEntry {
	out := *e
	out.Body = append([]byte(nil), e.Body...)
	out.Headers = e.Headers.Clone()

	return &out
}

// NormalizeCacheKey returns the URL with its query parameters sorted, so that
// equivalent requests share a key. Unparseable URLs are returned unchanged.
func NormalizeCacheKey(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.Fragment = ""
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Scheme = strings.ToLower(parsed.Scheme)

	// Encode sorts by key.
	if parsed.RawQuery != "" {
		parsed.RawQuery = parsed.Query().Encode()
	}

	return parsed.String()
}

// MemoryCacheConfig configures memory cache.
type MemoryCacheConfig struct {
	// MaxSize is the maximum number of items in the cache. Least recently
	// used entries are evicted first.
	MaxSize int `validate:"gte=0"`

	// TTL is the time-to-live measured from insertion.
	TTL time.Duration `validate:"gte=0"`

	// TTI is the time-to-idle measured from the last access.
	TTI time.Duration `validate:"gte=0"`

	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// MemoryCache implements an in-memory bounded TTL/TTI cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	maxSize int
	ttl     time.Duration
	tti     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a new memory cache. Zero values select defaults.
func NewMemoryCache(config *MemoryCacheConfig) *MemoryCache {
	if config == nil {
		config = &MemoryCacheConfig{}
	}

	cache := &MemoryCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: config.MaxSize,
		ttl:     config.TTL,
		tti:     config.TTI,
		now:     config.Now,
	}

	if cache.maxSize <= 0 {
		cache.maxSize = constants.DefaultCacheSize
	}

	if cache.ttl <= 0 {
		cache.ttl = constants.DefaultCacheTTL
	}

	if cache.tti <= 0 {
		cache.tti = constants.DefaultCacheTTI
	}

	if cache.now == nil {
		cache.now = time.Now
	}

	return cache
}

// CreateKey normalizes the request URL.
func (c *MemoryCache) CreateKey(rawURL string) string {
	return NormalizeCacheKey(rawURL)
}

// Contains reports whether a live entry exists without touching its idle timer.
func (c *MemoryCache) Contains(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.lookup(key)

	return ok
}

// Get retrieves a live entry and marks it as recently used.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.lookup(key)
	if !ok {
		return nil, false
	}

	entry, _ := elem.Value.(*CacheEntry)
	entry.LastAccessedAt = c.now()
	c.order.MoveToFront(elem)

	return entry.clone(), true
}

// Add stores an entry, evicting the least recently used one when full.
func (c *MemoryCache) Add(ctx context.Context, key string, entry *CacheEntry) {
	if entry == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stored := entry.clone()
	stored.Key = key
	stored.InsertedAt = now
	stored.LastAccessedAt = now

	if elem, ok := c.entries[key]; ok {
		elem.Value = stored
		c.order.MoveToFront(elem)

		return
	}

	c.entries[key] = c.order.PushFront(stored)

	for c.order.Len() > c.maxSize {
		c.removeElement(c.order.Back())
	}
}

// Delete removes an entry.
func (c *MemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes all entries.
func (c *MemoryCache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// Cleanup removes expired entries and returns how many were removed.
func (c *MemoryCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0

	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		entry, _ := elem.Value.(*CacheEntry)
		if entry.Expired(now, c.ttl, c.tti) {
			c.removeElement(elem)

			removed++
		}

		elem = prev
	}

	return removed
}

// lookup returns a live element, dropping it when expired. Callers hold mu.
func (c *MemoryCache) lookup(key string) (*list.Element, bool) {
	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	entry, _ := elem.Value.(*CacheEntry)
	if entry.Expired(c.now(), c.ttl, c.tti) {
		c.removeElement(elem)

		return nil, false
	}

	return elem, true
}

func (c *MemoryCache) removeElement(elem *list.Element) {
	entry, _ := elem.Value.(*CacheEntry)
	delete(c.entries, entry.Key)
	c.order.Remove(elem)
}
