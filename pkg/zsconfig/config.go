// Package zsconfig loads a zscaler.Config from ZSCALER_* environment
// variables and an optional YAML config file.
//
// Keys use snake_case; nested keys map to underscores in the environment, so
// cache.redis.addr is read from ZSCALER_CACHE_REDIS_ADDR. Environment values
// win over the file.
package zsconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/fivetwenty-io/zscaler/internal/constants"
	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
)

// Config keys.
const (
	KeyClientID         = "client_id"
	KeyClientSecret     = "client_secret"
	KeyCustomerID       = "customer_id"
	KeyCloud            = "cloud"
	KeyBaseURL          = "base_url"
	KeyRequestTimeout   = "request_timeout"
	KeyGETAttempts      = "get_attempts"
	KeyMutationAttempts = "mutation_attempts"
	KeyRetryWaitMin     = "retry_wait_min"
	KeyRetryWaitMax     = "retry_wait_max"
	KeyRateLimit        = "rate_limit"
	KeyUserAgent        = "user_agent"
	KeyDebug            = "debug"

	KeyCacheDisabled  = "cache.disabled"
	KeyCacheType      = "cache.type"
	KeyCacheTTL       = "cache.ttl"
	KeyCacheTTI       = "cache.tti"
	KeyCacheMaxSize   = "cache.max_size"
	KeyNATSURL        = "cache.nats.url"
	KeyNATSBucket     = "cache.nats.bucket"
	KeyRedisAddr      = "cache.redis.addr"
	KeyRedisPassword  = "cache.redis.password"
	KeyRedisDB        = "cache.redis.db"
	KeyRedisKeyPrefix = "cache.redis.key_prefix"
)

// DefaultConfigFile returns $HOME/.zscaler/config.yml.
func DefaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".zscaler", "config.yml")
}

// NewViper returns a viper instance bound to the ZSCALER_* environment and,
// when configFile is set, to that file. A missing file is not an error.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyCloud, string(zscaler.CloudProduction))
	v.SetDefault(KeyCacheType, string(zscaler.CacheTypeMemory))
	v.SetDefault(KeyCacheTTL, constants.DefaultCacheTTL)
	v.SetDefault(KeyCacheTTI, constants.DefaultCacheTTI)
	v.SetDefault(KeyCacheMaxSize, constants.DefaultCacheSize)

	if configFile == "" {
		return v, nil
	}

	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	return v, nil
}

// Load reads the environment and the optional config file.
func Load(configFile string) (*zscaler.Config, error) {
	v, err := NewViper(configFile)
	if err != nil {
		return nil, err
	}

	return FromViper(v), nil
}

// FromViper builds a zscaler.Config from v.
func FromViper(v *viper.Viper) *zscaler.Config {
	return &zscaler.Config{
		ClientID:         v.GetString(KeyClientID),
		ClientSecret:     v.GetString(KeyClientSecret),
		CustomerID:       v.GetString(KeyCustomerID),
		Cloud:            zscaler.Cloud(strings.ToUpper(v.GetString(KeyCloud))),
		BaseURL:          v.GetString(KeyBaseURL),
		RequestTimeout:   v.GetDuration(KeyRequestTimeout),
		GETAttempts:      v.GetInt(KeyGETAttempts),
		MutationAttempts: v.GetInt(KeyMutationAttempts),
		RetryWaitMin:     v.GetDuration(KeyRetryWaitMin),
		RetryWaitMax:     v.GetDuration(KeyRetryWaitMax),
		RateLimit:        v.GetFloat64(KeyRateLimit),
		UserAgent:        v.GetString(KeyUserAgent),
		Debug:            v.GetBool(KeyDebug),
		Cache:            cacheFromViper(v),
	}
}

func cacheFromViper(v *viper.Viper) *zscaler.CacheConfig {
	cache := &zscaler.CacheConfig{
		Disabled: v.GetBool(KeyCacheDisabled),
		Type:     zscaler.CacheType(strings.ToLower(v.GetString(KeyCacheType))),
		TTL:      v.GetDuration(KeyCacheTTL),
		TTI:      v.GetDuration(KeyCacheTTI),
		Memory: &zscaler.MemoryCacheConfig{
			MaxSize: v.GetInt(KeyCacheMaxSize),
			TTL:     v.GetDuration(KeyCacheTTL),
			TTI:     v.GetDuration(KeyCacheTTI),
		},
	}

	if url := v.GetString(KeyNATSURL); url != "" {
		cache.NATS = &zscaler.NATSKVConfig{
			URL:    url,
			Bucket: v.GetString(KeyNATSBucket),
		}
	}

	if addr := v.GetString(KeyRedisAddr); addr != "" {
		cache.Redis = &zscaler.RedisCacheConfig{
			Addr:      addr,
			Password:  v.GetString(KeyRedisPassword),
			DB:        v.GetInt(KeyRedisDB),
			KeyPrefix: v.GetString(KeyRedisKeyPrefix),
		}
	}

	return cache
}

// Save writes the credentials and cloud from cfg to configFile, creating the
// directory when needed.
func Save(configFile string, cfg *zscaler.Config) error {
	err := os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set(KeyClientID, cfg.ClientID)
	v.Set(KeyClientSecret, cfg.ClientSecret)
	v.Set(KeyCustomerID, cfg.CustomerID)
	v.Set(KeyCloud, string(cfg.Cloud))

	if cfg.BaseURL != "" {
		v.Set(KeyBaseURL, cfg.BaseURL)
	}

	err = v.WriteConfigAs(configFile)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	err = os.Chmod(configFile, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	return nil
}
