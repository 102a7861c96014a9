package zscaler

import (
	"context"
	"fmt"
	"time"

	"github.com/fivetwenty-io/zscaler/internal/constants"
)

// CacheType represents the type of cache backend.
type CacheType string

const (
	// CacheTypeMemory represents in-memory cache.
	CacheTypeMemory CacheType = "memory"

	// CacheTypeNATS represents NATS KV cache.
	CacheTypeNATS CacheType = "nats"

	// CacheTypeRedis represents Redis cache.
	CacheTypeRedis CacheType = "redis"

	// CacheTypeNone represents no caching.
	CacheTypeNone CacheType = "none"
)

// CacheConfig configures cache backend.
type CacheConfig struct {
	// Disabled selects NoOpCache regardless of Type.
	Disabled bool

	// Type is the cache backend type. Empty means memory.
	Type CacheType `validate:"omitempty,oneof=memory nats redis none"`

	// TTL and TTI apply to every backend unless the backend config sets its own.
	TTL time.Duration `validate:"gte=0"`
	TTI time.Duration `validate:"gte=0"`

	// Memory cache configuration
	Memory *MemoryCacheConfig

	// NATS KV cache configuration
	NATS *NATSKVConfig

	// Redis cache configuration
	Redis *RedisCacheConfig
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Type: CacheTypeMemory,
		TTL:  constants.DefaultCacheTTL,
		TTI:  constants.DefaultCacheTTI,
		Memory: &MemoryCacheConfig{
			MaxSize: constants.DefaultCacheSize,
		},
	}
}

// NewCacheFromConfig creates a cache backend from configuration.
func NewCacheFromConfig(config *CacheConfig) (Cache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	if config.Disabled {
		return NewNoOpCache(), nil
	}

	switch config.Type {
	case CacheTypeMemory, "":
		return NewMemoryCacheFromConfig(config)

	case CacheTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		natsConfig := *config.NATS
		natsConfig.TTL = firstDuration(natsConfig.TTL, config.TTL)
		natsConfig.TTI = firstDuration(natsConfig.TTI, config.TTI)

		return NewNATSKVCache(&natsConfig)

	case CacheTypeRedis:
		if config.Redis == nil {
			return nil, ErrRedisConfigRequired
		}

		redisConfig := *config.Redis
		redisConfig.TTL = firstDuration(redisConfig.TTL, config.TTL)
		redisConfig.TTI = firstDuration(redisConfig.TTI, config.TTI)

		return NewRedisCache(&redisConfig)

	case CacheTypeNone:
		return NewNoOpCache(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCacheType, config.Type)
	}
}

// NewMemoryCacheFromConfig creates a memory cache from configuration.
func NewMemoryCacheFromConfig(config *CacheConfig) (Cache, error) {
	memoryConfig := MemoryCacheConfig{MaxSize: constants.DefaultCacheSize}
	if config.Memory != nil {
		memoryConfig = *config.Memory
	}

	memoryConfig.TTL = firstDuration(memoryConfig.TTL, config.TTL)
	memoryConfig.TTI = firstDuration(memoryConfig.TTI, config.TTI)

	return NewMemoryCache(&memoryConfig), nil
}

func firstDuration(values ...time.Duration) time.Duration {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}

	return 0
}

// NoOpCache is a cache that does nothing (no caching).
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// CreateKey returns the URL unchanged.
func (c *NoOpCache) CreateKey(rawURL string) string {
	return rawURL
}

// Contains always returns false.
func (c *NoOpCache) Contains(ctx context.Context, key string) bool {
	return false
}

// Get always misses.
func (c *NoOpCache) Get(ctx context.Context, key string) (*CacheEntry, bool) {
	return nil, false
}

// Add does nothing.
func (c *NoOpCache) Add(ctx context.Context, key string, entry *CacheEntry) {}

// Delete does nothing.
func (c *NoOpCache) Delete(ctx context.Context, key string) {}

// Clear does nothing.
func (c *NoOpCache) Clear(ctx context.Context) {}

// CacheChain implements a chain of cache backends (L1, L2, etc.)
//
// Chain keys are normalized URLs; each level derives its own key from them.
type CacheChain struct {
	caches []Cache
}

// NewCacheChain creates a new cache chain.
func NewCacheChain(caches ...Cache) *CacheChain {
	return &CacheChain{
		caches: caches,
	}
}

// CreateKey normalizes the request URL.
func (c *CacheChain) CreateKey(rawURL string) string {
	return NormalizeCacheKey(rawURL)
}

// Contains checks if a key exists in any cache.
func (c *CacheChain) Contains(ctx context.Context, key string) bool {
	for _, cache := range c.caches {
		if cache.Contains(ctx, cache.CreateKey(key)) {
			return true
		}
	}

	return false
}

// Get retrieves an item from the cache chain.
func (c *CacheChain) Get(ctx context.Context, key string) (*CacheEntry, bool) {
	for i, cache := range c.caches {
		entry, ok := cache.Get(ctx, cache.CreateKey(key))
		if !ok {
			continue
		}

		// Found in this cache, populate earlier caches
		for j := range i {
			c.caches[j].Add(ctx, c.caches[j].CreateKey(key), entry)
		}

		return entry, true
	}

	return nil, false
}

// Add stores an item in all caches.
func (c *CacheChain) Add(ctx context.Context, key string, entry *CacheEntry) {
	for _, cache := range c.caches {
		cache.Add(ctx, cache.CreateKey(key), entry)
	}
}

// Delete removes an item from all caches.
func (c *CacheChain) Delete(ctx context.Context, key string) {
	for _, cache := range c.caches {
		cache.Delete(ctx, cache.CreateKey(key))
	}
}

// Clear removes all items from all caches.
func (c *CacheChain) Clear(ctx context.Context) {
	for _, cache := range c.caches {
		cache.Clear(ctx)
	}
}
