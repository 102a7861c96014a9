package zscaler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fivetwenty-io/zscaler/internal/constants"
)

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, map[string]interface{}) {}
func (NoOpLogger) Info(string, map[string]interface{})  {}
func (NoOpLogger) Warn(string, map[string]interface{})  {}
func (NoOpLogger) Error(string, map[string]interface{}) {}

// AuthState is the authenticator's position in the sign-in lifecycle.
type AuthState int

const (
	AuthStateUnauthenticated AuthState = iota
	AuthStateAuthenticating
	AuthStateAuthenticated
	AuthStateFailed
)

func (s AuthState) String() string {
	switch s {
	case AuthStateUnauthenticated:
		return "unauthenticated"
	case AuthStateAuthenticating:
		return "authenticating"
	case AuthStateAuthenticated:
		return "authenticated"
	case AuthStateFailed:
		return "failed"
	default:
		return fmt.Sprintf("AuthState(%d)", int(s))
	}
}

// Config represents client configuration for building a zscaler.Client.
//
// # Cloud resolution
//
// Cloud selects the API base URL from a fixed table. An unknown tag fails
// construction with ErrUnknownCloud. BaseURL, when set, replaces the table
// lookup (the Cloud tag is still validated); it exists for proxies and tests.
//
// # Retries
//
// GET requests are attempted up to GETAttempts times and mutations up to
// MutationAttempts times, counting the first attempt. Only transient failures
// are retried; see IsTransientStatus.
//
// # Caching
//
// Cache selects the response cache backend. A nil Cache means the default
// in-memory cache; Cache.Disabled selects NoOpCache. The process-wide
// environment toggle is read by pkg/zsconfig, never by the client itself.
type Config struct {
	// Required credentials.
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
	CustomerID   string `validate:"required"`

	// Cloud is the environment tag, e.g. PRODUCTION or BETA. Empty means PRODUCTION.
	Cloud Cloud

	// BaseURL overrides the cloud table lookup.
	BaseURL string `validate:"omitempty,url"`

	// RequestTimeout applies to every HTTP attempt. Zero selects the default.
	RequestTimeout time.Duration `validate:"gte=0"`

	// GETAttempts and MutationAttempts are retry budgets counted in attempts.
	GETAttempts      int `validate:"gte=0,lte=20"`
	MutationAttempts int `validate:"gte=0,lte=20"`

	// RetryWaitMin is the backoff base; RetryWaitMax caps a single wait.
	RetryWaitMin time.Duration `validate:"gte=0"`
	RetryWaitMax time.Duration `validate:"gte=0"`

	// RateLimit caps outgoing requests per second. Zero disables the limiter.
	RateLimit float64 `validate:"gte=0"`

	Cache *CacheConfig

	// Debug enables per-request debug logs when a Logger is provided.
	Debug bool
	// Logger is an optional structured logger used by every layer.
	Logger Logger `validate:"-"`
	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// MetricsRegisterer receives the client's Prometheus collectors. Nil
	// disables metrics.
	MetricsRegisterer prometheus.Registerer `validate:"-"`

	RequestInterceptors  []RequestInterceptor  `validate:"-"`
	ResponseInterceptors []ResponseInterceptor `validate:"-"`

	// HTTPClient is the base transport. The executor uses a copy with Timeout
	// set to RequestTimeout.
	HTTPClient *http.Client `validate:"-"`
}

var validate = validator.New()

// Validate checks the required fields and ranges and resolves the cloud tag.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigRequired
	}

	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	_, err = ParseCloud(string(c.Cloud))
	if err != nil {
		return err
	}

	if c.RetryWaitMax > 0 && c.RetryWaitMin > c.RetryWaitMax {
		return fmt.Errorf("%w: RetryWaitMin %s exceeds RetryWaitMax %s", ErrInvalidConfig, c.RetryWaitMin, c.RetryWaitMax)
	}

	return nil
}

// WithDefaults returns a copy of the config with zero values replaced by defaults.
func (c *Config) WithDefaults() *Config {
	out := *c

	if out.Cloud == "" {
		out.Cloud = CloudProduction
	}

	if out.RequestTimeout == 0 {
		out.RequestTimeout = constants.DefaultRequestTimeout
	}

	if out.GETAttempts == 0 {
		out.GETAttempts = constants.DefaultGETAttempts
	}

	if out.MutationAttempts == 0 {
		out.MutationAttempts = constants.DefaultMutationAttempts
	}

	if out.RetryWaitMin == 0 {
		out.RetryWaitMin = constants.DefaultRetryWaitMin
	}

	if out.RetryWaitMax == 0 {
		out.RetryWaitMax = constants.DefaultRetryWaitMax
	}

	if out.UserAgent == "" {
		out.UserAgent = constants.DefaultUserAgent
	}

	if out.Logger == nil {
		out.Logger = NoOpLogger{}
	}

	return &out
}

// ResolveBaseURL returns BaseURL when set, otherwise the cloud's base URL.
func (c *Config) ResolveBaseURL() (string, error) {
	cloud, err := ParseCloud(string(c.Cloud))
	if err != nil {
		return "", err
	}

	if c.BaseURL != "" {
		return c.BaseURL, nil
	}

	return cloud.BaseURL()
}

// Request is one logical API call, assembled by Executor.CreateRequest.
type Request struct {
	Method  string
	URL     string
	Path    string
	Query   url.Values
	Headers http.Header
	Body    []byte
	// Metadata is free-form data shared between interceptors.
	Metadata map[string]interface{}
}

// Response is the unwrapped result of Executor.Execute.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	// Cached is true when the response was served from the cache.
	Cached bool
	// Attempts is the number of HTTP attempts made; zero for cached responses.
	Attempts int
	// Error is set for response interceptors when the call failed.
	Error error
}

// GetBody returns the raw response body.
func (r *Response) GetBody() []byte {
	return r.Body
}

// GetStatusCode returns the HTTP status code.
func (r *Response) GetStatusCode() int {
	return r.StatusCode
}

// GetHeaders returns the response headers.
func (r *Response) GetHeaders() http.Header {
	return r.Headers
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v interface{}) error {
	err := json.Unmarshal(r.Body, v)
	if err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}

	return nil
}

// Results returns the items of a list response. The body may be a bare array
// or an object carrying the items under "list", "items" or "records".
func (r *Response) Results() ([]json.RawMessage, error) {
	page, err := parsePage(r.Body)
	if err != nil {
		return nil, err
	}

	return page.items, nil
}

// Executor builds and performs API calls. Resource wrappers consume it.
type Executor interface {
	// CreateRequest assembles a request without performing I/O. Map bodies are
	// converted to wire keys; empty params are dropped unless keepEmptyParams.
	CreateRequest(ctx context.Context, method, path string, body interface{}, headers map[string]string, params url.Values, keepEmptyParams bool) (*Request, error)

	// Execute performs the request with authentication, retry and caching.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Client is a signed-in API client.
type Client interface {
	Executor

	CustomerID() string
	// CustomerPath returns the management API path of a customer-scoped
	// resource, e.g. CustomerPath("segmentGroup", id).
	CustomerPath(segments ...string) string
	Cloud() Cloud
	BaseURL() string
	Cache() Cache
	AuthState() AuthState

	// Login performs the client-credentials exchange, replacing the held token.
	Login(ctx context.Context) error

	FormResponseBody(body map[string]interface{}) map[string]interface{}
	FormatRequestBody(body map[string]interface{}) map[string]interface{}

	Close() error
}
