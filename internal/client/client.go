package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/zscaler/internal/auth"
	"github.com/fivetwenty-io/zscaler/internal/http"
	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
)

// ZPA management API prefix; resource paths continue with the customer ID.
const customersPath = "/mgmtconfig/v1/admin/customers/"

var _ zscaler.Client = (*Client)(nil)

// Client implements zscaler.Client.
type Client struct {
	executor      *http.Client
	authenticator *auth.Authenticator
	config        *zscaler.Config
	baseURL       string
	cache         zscaler.Cache
	metrics       *zscaler.MetricsCollector
	logger        zscaler.Logger
}

// New validates the config, builds the cache and executor, and signs in. A
// rejected sign-in fails construction.
func New(ctx context.Context, config *zscaler.Config) (*Client, error) {
	client, err := newUnauthenticated(config)
	if err != nil {
		return nil, err
	}

	err = client.Login(ctx)
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("initial sign-in: %w", err)
	}

	return client, nil
}

func newUnauthenticated(config *zscaler.Config) (*Client, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	cfg := config.WithDefaults()

	baseURL, err := cfg.ResolveBaseURL()
	if err != nil {
		return nil, err
	}

	cache, err := newCache(cfg)
	if err != nil {
		return nil, err
	}

	var metrics *zscaler.MetricsCollector
	if cfg.MetricsRegisterer != nil {
		metrics, err = zscaler.NewMetricsCollector(cfg.MetricsRegisterer)
		if err != nil {
			return nil, err
		}
	}

	authenticator := auth.NewAuthenticator(&auth.Config{
		BaseURL:      baseURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		HTTPClient:   cfg.HTTPClient,
		Logger:       cfg.Logger,
		Metrics:      metrics,
	})

	executor := http.NewClient(baseURL, authenticator, createHTTPClientOptions(cfg, cache, metrics)...)

	return &Client{
		executor:      executor,
		authenticator: authenticator,
		config:        cfg,
		baseURL:       baseURL,
		cache:         cache,
		metrics:       metrics,
		logger:        cfg.Logger,
	}, nil
}

// newCache builds the configured backend, handing it the client logger.
func newCache(cfg *zscaler.Config) (zscaler.Cache, error) {
	cacheConfig := zscaler.DefaultCacheConfig()
	if cfg.Cache != nil {
		copied := *cfg.Cache
		cacheConfig = &copied
	}

	if cacheConfig.NATS != nil && cacheConfig.NATS.Logger == nil {
		natsConfig := *cacheConfig.NATS
		natsConfig.Logger = cfg.Logger
		cacheConfig.NATS = &natsConfig
	}

	if cacheConfig.Redis != nil && cacheConfig.Redis.Logger == nil {
		redisConfig := *cacheConfig.Redis
		redisConfig.Logger = cfg.Logger
		cacheConfig.Redis = &redisConfig
	}

	cache, err := zscaler.NewCacheFromConfig(cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	return cache, nil
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(cfg *zscaler.Config, cache zscaler.Cache, metrics *zscaler.MetricsCollector) []http.Option {
	httpOpts := []http.Option{
		http.WithLogger(cfg.Logger),
		http.WithDebug(cfg.Debug),
		http.WithUserAgent(cfg.UserAgent),
		http.WithTimeout(cfg.RequestTimeout),
		http.WithRetryConfig(cfg.GETAttempts, cfg.MutationAttempts, cfg.RetryWaitMin, cfg.RetryWaitMax),
		http.WithCache(cache),
		http.WithMetrics(metrics),
	}

	if cfg.HTTPClient != nil {
		httpOpts = append(httpOpts, http.WithHTTPClient(cfg.HTTPClient))
	}

	if cfg.RateLimit > 0 {
		httpOpts = append(httpOpts, http.WithRequestInterceptor(zscaler.RateLimitInterceptor(cfg.RateLimit, int(cfg.RateLimit))))
	}

	if cfg.Debug {
		httpOpts = append(httpOpts,
			http.WithRequestInterceptor(zscaler.LoggingInterceptor(cfg.Logger)),
			http.WithResponseInterceptor(zscaler.LoggingResponseInterceptor(cfg.Logger)),
		)
	}

	for _, interceptor := range cfg.RequestInterceptors {
		httpOpts = append(httpOpts, http.WithRequestInterceptor(interceptor))
	}

	for _, interceptor := range cfg.ResponseInterceptors {
		httpOpts = append(httpOpts, http.WithResponseInterceptor(interceptor))
	}

	return httpOpts
}

// CreateRequest implements zscaler.Executor.
func (c *Client) CreateRequest(ctx context.Context, method, path string, body interface{}, headers map[string]string, params url.Values, keepEmptyParams bool) (*zscaler.Request, error) {
	return c.executor.CreateRequest(ctx, method, path, body, headers, params, keepEmptyParams)
}

// Execute implements zscaler.Executor. A 401 invalidates the session, signs
// in again and re-issues the request once.
func (c *Client) Execute(ctx context.Context, req *zscaler.Request) (*zscaler.Response, error) {
	resp, err := c.executor.Execute(ctx, req)
	if err == nil || !zscaler.IsUnauthorized(err) {
		return resp, err
	}

	c.logger.Info("Session rejected, signing in again", map[string]interface{}{
		"method": req.Method,
		"path":   req.Path,
	})

	_, loginErr := c.authenticator.RefreshToken(ctx)
	if loginErr != nil {
		return resp, fmt.Errorf("%w (re-login failed: %w)", err, loginErr)
	}

	return c.executor.Execute(ctx, req)
}

// Login performs the sign-in exchange, replacing the held token.
func (c *Client) Login(ctx context.Context) error {
	c.authenticator.Invalidate()

	return c.authenticator.Login(ctx)
}

// AuthState returns the authenticator state.
func (c *Client) AuthState() zscaler.AuthState {
	return c.authenticator.State()
}

// CustomerID returns the configured customer ID.
func (c *Client) CustomerID() string {
	return c.config.CustomerID
}

// Cloud returns the configured cloud.
func (c *Client) Cloud() zscaler.Cloud {
	return c.config.Cloud
}

// BaseURL returns the resolved base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Cache returns the response cache.
func (c *Client) Cache() zscaler.Cache {
	return c.cache
}

// Metrics returns the metrics collector, or nil when metrics are disabled.
func (c *Client) Metrics() *zscaler.MetricsCollector {
	return c.metrics
}

// HTTP returns the underlying executor with its verb helpers.
func (c *Client) HTTP() *http.Client {
	return c.executor
}

// FormResponseBody converts wire keys to host keys.
func (c *Client) FormResponseBody(body map[string]interface{}) map[string]interface{} {
	return zscaler.FormResponseBody(body)
}

// FormatRequestBody converts host keys to wire keys.
func (c *Client) FormatRequestBody(body map[string]interface{}) map[string]interface{} {
	return zscaler.FormatRequestBody(body)
}

// CustomerPath returns the management API path for a customer-scoped
// resource, e.g. CustomerPath("segmentGroup").
func (c *Client) CustomerPath(segments ...string) string {
	path := customersPath + url.PathEscape(c.config.CustomerID)

	for _, segment := range segments {
		path += "/" + strings.Trim(segment, "/")
	}

	return path
}

// Close releases the cache backend connection, if any.
func (c *Client) Close() error {
	closer, ok := c.cache.(io.Closer)
	if !ok {
		return nil
	}

	err := closer.Close()
	if err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}

	return nil
}
