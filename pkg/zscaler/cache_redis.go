package zscaler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fivetwenty-io/zscaler/internal/constants"
)

// RedisCacheConfig configures the Redis cache.
type RedisCacheConfig struct {
	// Addr is the Redis address. Ignored when Client is set.
	Addr     string
	Password string
	DB       int `validate:"gte=0"`

	// Client is an existing client. The cache does not close it.
	Client redis.UniversalClient `validate:"-"`

	// KeyPrefix namespaces every key; Clear only touches keys under it.
	KeyPrefix string

	TTL time.Duration `validate:"gte=0"`
	TTI time.Duration `validate:"gte=0"`

	Logger Logger `validate:"-"`
}

// RedisCache stores responses in Redis. Each key expires at the earlier of
// its remaining time-to-live and its time-to-idle, refreshed on every read.
type RedisCache struct {
	client     redis.UniversalClient
	ownsClient bool
	prefix     string
	ttl        time.Duration
	tti        time.Duration
	logger     Logger
	now        func() time.Time
}

// NewRedisCache creates a Redis cache.
func NewRedisCache(config *RedisCacheConfig) (*RedisCache, error) {
	if config == nil || (config.Client == nil && config.Addr == "") {
		return nil, ErrRedisConfigRequired
	}

	err := validate.Struct(config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cache := &RedisCache{
		client: config.Client,
		prefix: config.KeyPrefix,
		ttl:    config.TTL,
		tti:    config.TTI,
		logger: config.Logger,
		now:    time.Now,
	}

	if cache.client == nil {
		cache.client = redis.NewClient(&redis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		})
		cache.ownsClient = true
	}

	if cache.prefix == "" {
		cache.prefix = constants.DefaultRedisKeyPrefix
	}

	if cache.ttl <= 0 {
		cache.ttl = constants.DefaultCacheTTL
	}

	if cache.tti <= 0 {
		cache.tti = constants.DefaultCacheTTI
	}

	if cache.logger == nil {
		cache.logger = NoOpLogger{}
	}

	return cache, nil
}

// CreateKey prefixes the normalized URL.
func (c *RedisCache) CreateKey(rawURL string) string {
	return c.prefix + NormalizeCacheKey(rawURL)
}

// Contains reports whether a live entry exists.
func (c *RedisCache) Contains(ctx context.Context, key string) bool {
	_, ok := c.load(ctx, c.client, key)

	return ok
}

// Get retrieves a live entry and refreshes its idle timer. The read and the
// refresh run under WATCH, so a concurrent Clear or Add wins over the refresh.
func (c *RedisCache) Get(ctx context.Context, key string) (*CacheEntry, bool) {
	var (
		entry *CacheEntry
		ok    bool
	)

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		entry, ok = c.load(ctx, tx, key)
		if !ok {
			return nil
		}

		refreshed := entry.clone()
		refreshed.LastAccessedAt = c.now()

		data, expiry, encoded := c.encode(key, refreshed)
		if !encoded {
			return nil
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, expiry)

			return nil
		})

		return err
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("Redis cache idle refresh skipped", map[string]interface{}{"key": key})
	case err != nil:
		c.logger.Warn("Redis cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	if !ok {
		return nil, false
	}

	return entry, true
}

// Add stores an entry.
func (c *RedisCache) Add(ctx context.Context, key string, entry *CacheEntry) {
	if entry == nil {
		return
	}

	now := c.now()
	stored := entry.clone()
	stored.Key = key
	stored.InsertedAt = now
	stored.LastAccessedAt = now

	c.store(ctx, key, stored)
}

// Delete removes an entry.
func (c *RedisCache) Delete(ctx context.Context, key string) {
	err := c.client.Del(ctx, key).Err()
	if err != nil {
		c.logger.Warn("Redis cache delete failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// Clear deletes every key under the prefix.
func (c *RedisCache) Clear(ctx context.Context) {
	var cursor uint64

	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", constants.RedisScanCount).Result()
		if err != nil {
			c.logger.Warn("Redis cache clear failed", map[string]interface{}{"error": err.Error()})

			return
		}

		if len(keys) > 0 {
			err = c.client.Del(ctx, keys...).Err()
			if err != nil {
				c.logger.Warn("Redis cache clear failed", map[string]interface{}{"error": err.Error()})

				return
			}
		}

		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// Close closes the client when the cache created it.
func (c *RedisCache) Close() error {
	if !c.ownsClient {
		return nil
	}

	err := c.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

// redisReader is satisfied by both the client and a WATCH transaction.
type redisReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (c *RedisCache) load(ctx context.Context, reader redisReader, key string) (*CacheEntry, bool) {
	data, err := reader.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Redis cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}

		return nil, false
	}

	entry := &CacheEntry{}

	err = json.Unmarshal(data, entry)
	if err != nil {
		c.logger.Warn("Redis cache entry corrupt", map[string]interface{}{"key": key, "error": err.Error()})
		c.Delete(ctx, key)

		return nil, false
	}

	if entry.Expired(c.now(), c.ttl, c.tti) {
		c.Delete(ctx, key)

		return nil, false
	}

	return entry, true
}

func (c *RedisCache) store(ctx context.Context, key string, entry *CacheEntry) {
	data, expiry, ok := c.encode(key, entry)
	if !ok {
		return
	}

	err := c.client.Set(ctx, key, data, expiry).Err()
	if err != nil {
		c.logger.Warn("Redis cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// encode returns the payload and the Redis expiry. An entry with no time
// left is not encoded.
func (c *RedisCache) encode(key string, entry *CacheEntry) ([]byte, time.Duration, bool) {
	expiry := c.expiry(entry)
	if expiry <= 0 {
		return nil, 0, false
	}

	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("Redis cache encode failed", map[string]interface{}{"key": key, "error": err.Error()})

		return nil, 0, false
	}

	return data, expiry, true
}

func (c *RedisCache) expiry(entry *CacheEntry) time.Duration {
	remaining := c.ttl - c.now().Sub(entry.InsertedAt)
	if remaining < c.tti {
		return remaining
	}

	return c.tti
}
