package zscaler_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
)

func TestNewCacheFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("nil config selects memory", func(t *testing.T) {
		t.Parallel()

		cache, err := zscaler.NewCacheFromConfig(nil)
		require.NoError(t, err)
		assert.IsType(t, &zscaler.MemoryCache{}, cache)
	})

	t.Run("empty type selects memory", func(t *testing.T) {
		t.Parallel()

		cache, err := zscaler.NewCacheFromConfig(&zscaler.CacheConfig{TTL: time.Minute})
		require.NoError(t, err)
		assert.IsType(t, &zscaler.MemoryCache{}, cache)
	})

	t.Run("disabled wins over type", func(t *testing.T) {
		t.Parallel()

		cache, err := zscaler.NewCacheFromConfig(&zscaler.CacheConfig{Disabled: true, Type: zscaler.CacheTypeRedis})
		require.NoError(t, err)
		assert.IsType(t, &zscaler.NoOpCache{}, cache)
	})

	t.Run("none", func(t *testing.T) {
		t.Parallel()

		cache, err := zscaler.NewCacheFromConfig(&zscaler.CacheConfig{Type: zscaler.CacheTypeNone})
		require.NoError(t, err)
		assert.IsType(t, &zscaler.NoOpCache{}, cache)
	})

	t.Run("redis", func(t *testing.T) {
		t.Parallel()

		server := miniredis.RunT(t)

		cache, err := zscaler.NewCacheFromConfig(&zscaler.CacheConfig{
			Type:  zscaler.CacheTypeRedis,
			TTL:   time.Minute,
			Redis: &zscaler.RedisCacheConfig{Addr: server.Addr()},
		})
		require.NoError(t, err)
		assert.IsType(t, &zscaler.RedisCache{}, cache)
	})

	t.Run("redis without config", func(t *testing.T) {
		t.Parallel()

		_, err := zscaler.NewCacheFromConfig(&zscaler.CacheConfig{Type: zscaler.CacheTypeRedis})
		require.ErrorIs(t, err, zscaler.ErrRedisConfigRequired)
	})

	t.Run("nats without config", func(t *testing.T) {
		t.Parallel()

		_, err := zscaler.NewCacheFromConfig(&zscaler.CacheConfig{Type: zscaler.CacheTypeNATS})
		require.ErrorIs(t, err, zscaler.ErrNATSConfigRequired)
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()

		_, err := zscaler.NewCacheFromConfig(&zscaler.CacheConfig{Type: "memcached"})
		require.ErrorIs(t, err, zscaler.ErrUnsupportedCacheType)
	})
}

func TestDefaultCacheConfig(t *testing.T) {
	t.Parallel()

	config := zscaler.DefaultCacheConfig()

	assert.Equal(t, zscaler.CacheTypeMemory, config.Type)
	assert.Equal(t, 10*time.Minute, config.TTL)
	assert.Equal(t, 5*time.Minute, config.TTI)
	assert.Equal(t, 1000, config.Memory.MaxSize)
	assert.False(t, config.Disabled)
}
