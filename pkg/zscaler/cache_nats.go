package zscaler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fivetwenty-io/zscaler/internal/constants"
)

// NATSKVConfig configures the NATS JetStream KV cache.
type NATSKVConfig struct {
	// URL of the NATS server. Ignored when Conn is set.
	URL string `validate:"omitempty,url"`

	// Conn is an existing connection. The cache does not close it.
	Conn *nats.Conn `validate:"-"`

	// Bucket is the KV bucket name, created when missing.
	Bucket string

	// TTL becomes the bucket max age; TTI is enforced on read.
	TTL time.Duration `validate:"gte=0"`
	TTI time.Duration `validate:"gte=0"`

	Logger Logger `validate:"-"`
}

// kvBucket is the subset of nats.KeyValue the cache uses.
type kvBucket interface {
	get(key string) ([]byte, uint64, error)
	put(key string, value []byte) error
	// update writes only while the key is still at revision.
	update(key string, value []byte, revision uint64) error
	remove(key string) error
	keys(ctx context.Context) ([]string, error)
}

type jetStreamBucket struct {
	kv nats.KeyValue
}

func (b jetStreamBucket) get(key string) ([]byte, uint64, error) {
	entry, err := b.kv.Get(key)
	if err != nil {
		return nil, 0, err
	}

	return entry.Value(), entry.Revision(), nil
}

func (b jetStreamBucket) put(key string, value []byte) error {
	_, err := b.kv.Put(key, value)

	return err
}

func (b jetStreamBucket) update(key string, value []byte, revision uint64) error {
	_, err := b.kv.Update(key, value, revision)

	return err
}

func (b jetStreamBucket) remove(key string) error {
	return b.kv.Purge(key)
}

func (b jetStreamBucket) keys(ctx context.Context) ([]string, error) {
	keys, err := b.kv.Keys(nats.Context(ctx))
	if errors.Is(err, nats.ErrNoKeysFound) {
		return nil, nil
	}

	return keys, err
}

// NATSKVCache stores responses in a JetStream key-value bucket so several
// processes can share one cache.
type NATSKVCache struct {
	bucket   kvBucket
	conn     *nats.Conn
	ownsConn bool
	ttl      time.Duration
	tti      time.Duration
	logger   Logger
	now      func() time.Time
}

// NewNATSKVCache connects to NATS and opens (or creates) the bucket.
func NewNATSKVCache(config *NATSKVConfig) (*NATSKVCache, error) {
	if config == nil || (config.Conn == nil && config.URL == "") {
		return nil, ErrNATSConfigRequired
	}

	err := validate.Struct(config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	conn := config.Conn
	ownsConn := false

	if conn == nil {
		conn, err = nats.Connect(config.URL, nats.Name("zscaler-cache"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}

		ownsConn = true
	}

	js, err := conn.JetStream()
	if err != nil {
		closeIfOwned(conn, ownsConn)

		return nil, fmt.Errorf("failed to open JetStream context: %w", err)
	}

	bucketName := config.Bucket
	if bucketName == "" {
		bucketName = constants.DefaultNATSBucket
	}

	ttl := config.TTL
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}

	kv, err := js.KeyValue(bucketName)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucketName,
			Description: "Zscaler API response cache",
			TTL:         ttl,
		})
	}

	if err != nil {
		closeIfOwned(conn, ownsConn)

		return nil, fmt.Errorf("failed to open KV bucket %s: %w", bucketName, err)
	}

	cache := newNATSKVCache(jetStreamBucket{kv: kv}, ttl, config.TTI, config.Logger)
	cache.conn = conn
	cache.ownsConn = ownsConn

	return cache, nil
}

func newNATSKVCache(bucket kvBucket, ttl, tti time.Duration, logger Logger) *NATSKVCache {
	if tti <= 0 {
		tti = constants.DefaultCacheTTI
	}

	if logger == nil {
		logger = NoOpLogger{}
	}

	return &NATSKVCache{
		bucket: bucket,
		ttl:    ttl,
		tti:    tti,
		logger: logger,
		now:    time.Now,
	}
}

func closeIfOwned(conn *nats.Conn, owned bool) {
	if owned {
		conn.Close()
	}
}

// CreateKey hashes the normalized URL; KV keys cannot hold URL characters.
func (c *NATSKVCache) CreateKey(rawURL string) string {
	sum := sha256.Sum256([]byte(NormalizeCacheKey(rawURL)))

	return hex.EncodeToString(sum[:])
}

// Contains reports whether a live entry exists.
func (c *NATSKVCache) Contains(ctx context.Context, key string) bool {
	_, _, ok := c.load(key)

	return ok
}

// Get retrieves a live entry and refreshes its idle timer. The refresh only
// lands while the key is unchanged, so a concurrent Clear is never undone.
func (c *NATSKVCache) Get(ctx context.Context, key string) (*CacheEntry, bool) {
	entry, revision, ok := c.load(key)
	if !ok {
		return nil, false
	}

	entry.LastAccessedAt = c.now()

	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("NATS cache encode failed", map[string]interface{}{"key": key, "error": err.Error()})

		return entry, true
	}

	err = c.bucket.update(key, data, revision)
	if err != nil {
		c.logger.Debug("NATS cache idle refresh skipped", map[string]interface{}{"key": key, "error": err.Error()})
	}

	return entry, true
}

// Add stores an entry.
func (c *NATSKVCache) Add(ctx context.Context, key string, entry *CacheEntry) {
	if entry == nil {
		return
	}

	now := c.now()
	stored := entry.clone()
	stored.Key = key
	stored.InsertedAt = now
	stored.LastAccessedAt = now

	c.store(key, stored)
}

// Delete removes an entry.
func (c *NATSKVCache) Delete(ctx context.Context, key string) {
	err := c.bucket.remove(key)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		c.logger.Warn("NATS cache delete failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// Clear purges every key in the bucket.
func (c *NATSKVCache) Clear(ctx context.Context) {
	keys, err := c.bucket.keys(ctx)
	if err != nil {
		c.logger.Warn("NATS cache clear failed", map[string]interface{}{"error": err.Error()})

		return
	}

	for _, key := range keys {
		c.Delete(ctx, key)
	}
}

// Close closes the connection when the cache opened it.
func (c *NATSKVCache) Close() error {
	if c.conn != nil && c.ownsConn {
		c.conn.Close()
	}

	return nil
}

func (c *NATSKVCache) load(key string) (*CacheEntry, uint64, bool) {
	data, revision, err := c.bucket.get(key)
	if err != nil {
		if !errors.Is(err, nats.ErrKeyNotFound) {
			c.logger.Warn("NATS cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}

		return nil, 0, false
	}

	entry := &CacheEntry{}

	err = json.Unmarshal(data, entry)
	if err != nil {
		c.logger.Warn("NATS cache entry corrupt", map[string]interface{}{"key": key, "error": err.Error()})
		_ = c.bucket.remove(key)

		return nil, 0, false
	}

	if entry.Expired(c.now(), c.ttl, c.tti) {
		_ = c.bucket.remove(key)

		return nil, 0, false
	}

	return entry, revision, true
}

func (c *NATSKVCache) store(key string, entry *CacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("NATS cache encode failed", map[string]interface{}{"key": key, "error": err.Error()})

		return
	}

	err = c.bucket.put(key, data)
	if err != nil {
		c.logger.Warn("NATS cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
