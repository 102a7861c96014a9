package zscaler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errBucketDown    = errors.New("bucket unavailable")
	errWrongRevision = errors.New("wrong last sequence")
)

// memoryBucket stands in for a JetStream KV bucket.
type memoryBucket struct {
	mu        sync.Mutex
	values    map[string][]byte
	revisions map[string]uint64
	sequence  uint64
	fail      bool

	// afterGet runs outside the lock once a read has returned.
	afterGet func()
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{values: make(map[string][]byte), revisions: make(map[string]uint64)}
}

func (b *memoryBucket) get(key string) ([]byte, uint64, error) {
	value, revision, err := b.read(key)

	if err == nil && b.afterGet != nil {
		hook := b.afterGet
		b.afterGet = nil
		hook()
	}

	return value, revision, err
}

func (b *memoryBucket) read(key string) ([]byte, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail {
		return nil, 0, errBucketDown
	}

	value, ok := b.values[key]
	if !ok {
		return nil, 0, nats.ErrKeyNotFound
	}

	return value, b.revisions[key], nil
}

func (b *memoryBucket) put(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail {
		return errBucketDown
	}

	b.sequence++
	b.values[key] = value
	b.revisions[key] = b.sequence

	return nil
}

func (b *memoryBucket) update(key string, value []byte, revision uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail {
		return errBucketDown
	}

	if _, ok := b.values[key]; !ok || b.revisions[key] != revision {
		return errWrongRevision
	}

	b.sequence++
	b.values[key] = value
	b.revisions[key] = b.sequence

	return nil
}

func (b *memoryBucket) remove(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.values[key]; !ok {
		return nats.ErrKeyNotFound
	}

	b.sequence++
	delete(b.values, key)
	delete(b.revisions, key)

	return nil
}

func (b *memoryBucket) keys(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail {
		return nil, errBucketDown
	}

	keys := make([]string, 0, len(b.values))
	for key := range b.values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys, nil
}

// recordingLogger keeps warning messages.
type recordingLogger struct {
	NoOpLogger

	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, _ map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.warns = append(l.warns, msg)
}

func natsEntry(body string) *CacheEntry {
	return &CacheEntry{StatusCode: http.StatusOK, Body: []byte(body)}
}

func TestNATSKVCache_CreateKey(t *testing.T) {
	t.Parallel()

	cache := newNATSKVCache(newMemoryBucket(), time.Minute, time.Minute, nil)

	a := cache.CreateKey("https://host/app?page=1&pagesize=20")
	b := cache.CreateKey("https://host/app?pagesize=20&page=1")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.Regexp(t, `^[0-9a-f]+$`, a)
	assert.NotEqual(t, a, cache.CreateKey("https://host/app?page=2&pagesize=20"))
}

func TestNATSKVCache_AddGet(t *testing.T) {
	t.Parallel()

	bucket := newMemoryBucket()
	cache := newNATSKVCache(bucket, time.Minute, time.Minute, nil)
	ctx := context.Background()

	key := cache.CreateKey("https://host/app")
	cache.Add(ctx, key, natsEntry(`{"id":"1"}`))

	assert.True(t, cache.Contains(ctx, key))

	entry, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, key, entry.Key)
	assert.JSONEq(t, `{"id":"1"}`, string(entry.Body))

	_, ok = cache.Get(ctx, "absent")
	assert.False(t, ok)

	cache.Add(ctx, "nil", nil)
	assert.NotContains(t, bucket.values, "nil")
}

func TestNATSKVCache_Expiry(t *testing.T) {
	t.Parallel()

	bucket := newMemoryBucket()
	cache := newNATSKVCache(bucket, 10*time.Minute, 2*time.Minute, nil)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Add(ctx, "k", natsEntry("v"))

	now = now.Add(time.Minute)
	_, ok := cache.Get(ctx, "k")
	require.True(t, ok)

	// Idle timer was refreshed by the read.
	now = now.Add(90 * time.Second)
	_, ok = cache.Get(ctx, "k")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get(ctx, "k")
	assert.False(t, ok)
	assert.Empty(t, bucket.values)
}

func TestNATSKVCache_GetDoesNotRestoreClearedEntry(t *testing.T) {
	t.Parallel()

	bucket := newMemoryBucket()
	cache := newNATSKVCache(bucket, time.Minute, time.Minute, nil)
	other := newNATSKVCache(bucket, time.Minute, time.Minute, nil)
	ctx := context.Background()

	cache.Add(ctx, "k", natsEntry("before"))

	// Another process clears after a mutation while this read is in flight.
	bucket.afterGet = func() { other.Clear(ctx) }

	entry, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "before", string(entry.Body))

	assert.False(t, cache.Contains(ctx, "k"))
	assert.Empty(t, bucket.values)
}

func TestNATSKVCache_GetRefreshLosesToNewerWrite(t *testing.T) {
	t.Parallel()

	bucket := newMemoryBucket()
	cache := newNATSKVCache(bucket, time.Minute, time.Minute, nil)
	ctx := context.Background()

	cache.Add(ctx, "k", natsEntry("old"))

	bucket.afterGet = func() { cache.Add(ctx, "k", natsEntry("new")) }

	_, ok := cache.Get(ctx, "k")
	require.True(t, ok)

	entry, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "new", string(entry.Body))
}

func TestNATSKVCache_DeleteAndClear(t *testing.T) {
	t.Parallel()

	bucket := newMemoryBucket()
	cache := newNATSKVCache(bucket, time.Minute, time.Minute, nil)
	ctx := context.Background()

	cache.Add(ctx, "a", natsEntry("a"))
	cache.Add(ctx, "b", natsEntry("b"))
	cache.Add(ctx, "c", natsEntry("c"))

	cache.Delete(ctx, "a")
	cache.Delete(ctx, "missing")
	assert.False(t, cache.Contains(ctx, "a"))
	assert.Len(t, bucket.values, 2)

	cache.Clear(ctx)
	assert.Empty(t, bucket.values)
}

func TestNATSKVCache_CorruptEntry(t *testing.T) {
	t.Parallel()

	bucket := newMemoryBucket()
	logger := &recordingLogger{}
	cache := newNATSKVCache(bucket, time.Minute, time.Minute, logger)

	bucket.values["bad"] = []byte("{oops")

	_, ok := cache.Get(context.Background(), "bad")
	assert.False(t, ok)
	assert.NotContains(t, bucket.values, "bad")
	assert.Equal(t, []string{"NATS cache entry corrupt"}, logger.warns)
}

func TestNATSKVCache_BackendFailure(t *testing.T) {
	t.Parallel()

	bucket := newMemoryBucket()
	logger := &recordingLogger{}
	cache := newNATSKVCache(bucket, time.Minute, time.Minute, logger)
	ctx := context.Background()

	bucket.fail = true

	cache.Add(ctx, "k", natsEntry("v"))

	_, ok := cache.Get(ctx, "k")
	assert.False(t, ok)

	cache.Clear(ctx)

	assert.Equal(t, []string{
		"NATS cache write failed",
		"NATS cache read failed",
		"NATS cache clear failed",
	}, logger.warns)
}

func TestNewNATSKVCache_RequiresTarget(t *testing.T) {
	t.Parallel()

	_, err := NewNATSKVCache(nil)
	require.ErrorIs(t, err, ErrNATSConfigRequired)

	_, err = NewNATSKVCache(&NATSKVConfig{Bucket: "b"})
	require.ErrorIs(t, err, ErrNATSConfigRequired)

	_, err = NewNATSKVCache(&NATSKVConfig{URL: "not a url"})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNATSKVCache_CloseWithoutConn(t *testing.T) {
	t.Parallel()

	cache := newNATSKVCache(newMemoryBucket(), time.Minute, time.Minute, nil)
	require.NoError(t, cache.Close())
}
