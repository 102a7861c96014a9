package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultRequestTimeout is the per-attempt timeout for API requests.
	DefaultRequestTimeout = 240 * time.Second

	// DefaultLoginTimeout bounds a single sign-in exchange.
	DefaultLoginTimeout = 30 * time.Second
)

// Retry budgets, counted in attempts including the first one.
const (
	// DefaultGETAttempts is the attempt budget for idempotent GET requests.
	DefaultGETAttempts = 5

	// DefaultMutationAttempts is the attempt budget for POST, PUT, PATCH and DELETE.
	DefaultMutationAttempts = 3

	// DefaultRetryWaitMin is the backoff base.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax caps a single backoff wait.
	DefaultRetryWaitMax = 30 * time.Second

	// ExponentialBackoffBase is the base for exponential backoff.
	ExponentialBackoffBase = 2

	// MaxBackoffExponent prevents overflow when computing 2^n.
	MaxBackoffExponent = 30
)

// Pagination limits.
const (
	// DefaultPageSize is the page size used when none is requested.
	DefaultPageSize = 20

	// MaxPageSize is the largest page size sent to the API.
	MaxPageSize = 500

	// FirstPage is the page number pagination starts from.
	FirstPage = 1

	// StreamBufferSize is the channel buffer for streamed pages.
	StreamBufferSize = 1
)

// Cache limits.
const (
	// DefaultCacheSize is the default cache size limit.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is the default cache time-to-live.
	DefaultCacheTTL = 10 * time.Minute

	// DefaultCacheTTI is the default cache time-to-idle.
	DefaultCacheTTI = 5 * time.Minute

	// DefaultNATSBucket is the default JetStream KV bucket name.
	DefaultNATSBucket = "zscaler_responses"

	// DefaultRedisKeyPrefix is the default Redis key namespace.
	DefaultRedisKeyPrefix = "zscaler:cache:"

	// RedisScanCount is the SCAN batch size used when clearing the cache.
	RedisScanCount = 100
)

// Concurrency limits.
const (
	// DefaultConcurrencyLimit limits concurrent batch operations.
	DefaultConcurrencyLimit = 3
)

// Headers and user agent.
const (
	// HeaderAuthorization carries the bearer token.
	HeaderAuthorization = "Authorization"

	// HeaderContentType is the request body media type header.
	HeaderContentType = "Content-Type"

	// HeaderAccept is the response media type header.
	HeaderAccept = "Accept"

	// HeaderUserAgent identifies the SDK.
	HeaderUserAgent = "User-Agent"

	// MediaTypeJSON is the JSON media type.
	MediaTypeJSON = "application/json"

	// DefaultUserAgent is sent when Config.UserAgent is empty.
	DefaultUserAgent = "zscaler-go/1.0"

	// SignInPath is the client-credentials exchange endpoint.
	SignInPath = "/signin"
)

// Environment variables read at the process boundary.
const (
	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "ZSCALER"
)

// Format constants.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"

	// JSONIndent is the indentation used for JSON output.
	JSONIndent = "  "

	// MaxTableColumns limits the columns inferred for table output.
	MaxTableColumns = 6
)
