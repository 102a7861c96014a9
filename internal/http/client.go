package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fivetwenty-io/zscaler/internal/auth"
	"github.com/fivetwenty-io/zscaler/internal/constants"
	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
)

// Client is the request executor. It implements zscaler.Executor.
//
// GET and mutation requests run through separate retryablehttp clients so
// each carries its own attempt budget.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	getClient    *retryablehttp.Client
	mutateClient *retryablehttp.Client
	logger       zscaler.Logger
	debug        bool
	userAgent    string
	cache        zscaler.Cache
	metrics      *zscaler.MetricsCollector
	interceptors *zscaler.InterceptorChain
	authenticate zscaler.RequestInterceptor

	getAttempts      int
	mutationAttempts int
	retryWaitMin     time.Duration
	retryWaitMax     time.Duration
	timeout          time.Duration
	jitter           func(n int64) int64
}

// Option configures the HTTP client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger zscaler.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request and response debug logs.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryConfig sets the attempt budgets and the backoff bounds.
func WithRetryConfig(getAttempts, mutationAttempts int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.getAttempts = getAttempts
		c.mutationAttempts = mutationAttempts
		c.retryWaitMin = waitMin
		c.retryWaitMax = waitMax
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient sets the underlying transport client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithCache sets the response cache.
func WithCache(cache zscaler.Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics *zscaler.MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithRequestInterceptor appends a request interceptor.
func WithRequestInterceptor(interceptor zscaler.RequestInterceptor) Option {
	return func(c *Client) {
		c.interceptors.AddRequestInterceptor(interceptor)
	}
}

// WithResponseInterceptor appends a response interceptor.
func WithResponseInterceptor(interceptor zscaler.ResponseInterceptor) Option {
	return func(c *Client) {
		c.interceptors.AddResponseInterceptor(interceptor)
	}
}

// NewClient creates a new HTTP client. tokenManager may be nil for
// unauthenticated use.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	client := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		logger:           zscaler.NoOpLogger{},
		userAgent:        constants.DefaultUserAgent,
		cache:            zscaler.NewNoOpCache(),
		interceptors:     zscaler.NewInterceptorChain(),
		getAttempts:      constants.DefaultGETAttempts,
		mutationAttempts: constants.DefaultMutationAttempts,
		retryWaitMin:     constants.DefaultRetryWaitMin,
		retryWaitMax:     constants.DefaultRetryWaitMax,
		timeout:          constants.DefaultRequestTimeout,
		jitter:           rand.Int64N,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		client.httpClient = retryablehttp.NewClient().HTTPClient
	}

	// Copy so the timeout stays local to this executor.
	httpClient := *client.httpClient
	httpClient.Timeout = client.timeout
	client.httpClient = &httpClient

	if tokenManager != nil {
		client.authenticate = zscaler.AuthenticationInterceptor(tokenManager.GetToken)
	}
	client.getClient = client.newRetryClient(client.getAttempts)
	client.mutateClient = client.newRetryClient(client.mutationAttempts)

	return client
}

func (c *Client) newRetryClient(attempts int) *retryablehttp.Client {
	if attempts < 1 {
		attempts = 1
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = c.httpClient
	retryClient.RetryMax = attempts - 1
	retryClient.RetryWaitMin = c.retryWaitMin
	retryClient.RetryWaitMax = c.retryWaitMax
	retryClient.CheckRetry = checkRetry
	retryClient.Backoff = c.backoff
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.RequestLogHook = c.requestLogHook
	retryClient.Logger = nil

	if c.debug {
		retryClient.Logger = &leveledLogger{logger: c.logger}
	}

	return retryClient
}

// checkRetry retries connection errors and transient statuses. Everything
// else is definitive.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	return zscaler.IsTransientStatus(resp.StatusCode), nil
}

// backoff waits base*2^n plus a jitter in [0, base), capped at max. A
// Retry-After header on 429 or 503 takes precedence, under the same cap.
func (c *Client) backoff(minWait, maxWait time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) &&
		resp.Header.Get("Retry-After") != "" {
		return min(retryablehttp.DefaultBackoff(minWait, maxWait, attemptNum, resp), maxWait)
	}

	return exponentialBackoff(minWait, maxWait, attemptNum, c.jitter)
}

func exponentialBackoff(base, maxWait time.Duration, attemptNum int, jitter func(int64) int64) time.Duration {
	if attemptNum > constants.MaxBackoffExponent {
		attemptNum = constants.MaxBackoffExponent
	}

	wait := base * time.Duration(1<<uint(attemptNum))
	if base > 0 && jitter != nil {
		wait += time.Duration(jitter(int64(base)))
	}

	if wait > maxWait || wait < 0 {
		wait = maxWait
	}

	return wait
}

type attemptCounterKey struct{}

func (c *Client) requestLogHook(_ retryablehttp.Logger, req *http.Request, attemptNum int) {
	if counter, ok := req.Context().Value(attemptCounterKey{}).(*int32); ok {
		atomic.StoreInt32(counter, int32(attemptNum+1))
	}

	if attemptNum > 0 {
		c.metrics.RecordRetry(req.Method)
		c.logger.Warn("Retrying request", map[string]interface{}{
			"method":  req.Method,
			"url":     req.URL.Redacted(),
			"attempt": attemptNum + 1,
		})
	}
}

// CreateRequest assembles a request without performing I/O.
func (c *Client) CreateRequest(ctx context.Context, method, path string, body interface{}, headers map[string]string, params url.Values, keepEmptyParams bool) (*zscaler.Request, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return nil, zscaler.ErrMethodRequired
	}

	if !validMethod(method) {
		return nil, fmt.Errorf("%w: unsupported method %q", zscaler.ErrMethodRequired, method)
	}

	requestURL, err := c.resolveURL(path)
	if err != nil {
		return nil, err
	}

	req := &zscaler.Request{
		Method:   method,
		URL:      requestURL,
		Path:     path,
		Query:    make(url.Values),
		Headers:  make(http.Header),
		Metadata: make(map[string]interface{}),
	}

	for key, values := range params {
		for _, value := range values {
			if value == "" && !keepEmptyParams {
				continue
			}

			req.Query.Add(key, value)
		}
	}

	for key, value := range headers {
		req.Headers.Set(key, value)
	}

	if body != nil {
		req.Body, err = encodeBody(body)
		if err != nil {
			return nil, err
		}
	}

	return req, nil
}

func validMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// resolveURL joins path onto the base URL. Absolute paths are used as is.
func (c *Client) resolveURL(path string) (string, error) {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		raw = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", zscaler.ErrInvalidRequestPath, err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("%w: %q does not resolve to an absolute URL", zscaler.ErrInvalidRequestPath, raw)
	}

	if parsed.RawQuery != "" {
		return "", fmt.Errorf("%w: query parameters belong in params, got %q", zscaler.ErrInvalidRequestPath, path)
	}

	return parsed.String(), nil
}

func encodeBody(body interface{}) ([]byte, error) {
	switch typed := body.(type) {
	case []byte:
		return typed, nil
	case map[string]interface{}:
		body = zscaler.FormatRequestBody(typed)
	case []map[string]interface{}, []interface{}:
		body = zscaler.ConvertValue(typed, true)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	return data, nil
}

// Execute performs the request. GETs are served from the cache when possible;
// a successful mutation clears it.
func (c *Client) Execute(ctx context.Context, req *zscaler.Request) (*zscaler.Response, error) {
	if req == nil || req.Method == "" {
		return nil, zscaler.ErrMethodRequired
	}

	start := time.Now()

	err := c.interceptors.ExecuteRequestInterceptors(ctx, req)
	if err != nil {
		return nil, err
	}

	fullURL := composeURL(req)
	isGet := req.Method == http.MethodGet

	var cacheKey string

	if isGet {
		cacheKey = c.cache.CreateKey(fullURL)

		entry, ok := c.cache.Get(ctx, cacheKey)
		if ok {
			c.metrics.RecordCacheHit(req.Method)
			c.debugLog("Cache hit", map[string]interface{}{"url": fullURL})

			resp := &zscaler.Response{
				StatusCode: entry.StatusCode,
				Headers:    entry.Headers.Clone(),
				Body:       entry.Body,
				Cached:     true,
			}

			return c.finish(ctx, req, resp, nil)
		}

		c.metrics.RecordCacheMiss(req.Method)
	}

	c.debugLog("HTTP Request", map[string]interface{}{
		"method": req.Method,
		"url":    fullURL,
	})

	resp, err := c.do(ctx, req, fullURL)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	c.metrics.RecordRequest(req.Method, status, time.Since(start))

	if err != nil {
		c.metrics.RecordError(errorType(err), req.Method)

		return c.finish(ctx, req, resp, err)
	}

	c.debugLog("HTTP Response", map[string]interface{}{
		"method":      req.Method,
		"url":         fullURL,
		"status_code": resp.StatusCode,
		"attempts":    resp.Attempts,
		"duration":    time.Since(start).String(),
	})

	if isGet {
		now := time.Now()
		c.cache.Add(ctx, cacheKey, &zscaler.CacheEntry{
			Key:            cacheKey,
			StatusCode:     resp.StatusCode,
			Headers:        resp.Headers.Clone(),
			Body:           resp.Body,
			InsertedAt:     now,
			LastAccessedAt: now,
		})
	} else {
		c.cache.Clear(ctx)
		c.metrics.RecordCacheClear()
	}

	return c.finish(ctx, req, resp, nil)
}

func (c *Client) do(ctx context.Context, req *zscaler.Request, fullURL string) (*zscaler.Response, error) {
	retryClient, budget := c.getClient, c.getAttempts
	if req.Method != http.MethodGet {
		retryClient, budget = c.mutateClient, c.mutationAttempts
	}

	counter := new(int32)
	ctx = context.WithValue(ctx, attemptCounterKey{}, counter)

	var body interface{}
	if len(req.Body) > 0 {
		body = req.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range req.Headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	httpReq.Header.Set(constants.HeaderAccept, constants.MediaTypeJSON)
	httpReq.Header.Set(constants.HeaderUserAgent, c.userAgent)

	if body != nil && httpReq.Header.Get(constants.HeaderContentType) == "" {
		httpReq.Header.Set(constants.HeaderContentType, constants.MediaTypeJSON)
	}

	// The token goes onto the outgoing headers only; req keeps the caller's.
	if c.authenticate != nil && httpReq.Header.Get(constants.HeaderAuthorization) == "" {
		err = c.authenticate(ctx, &zscaler.Request{Method: req.Method, URL: fullURL, Headers: httpReq.Header})
		if err != nil {
			return nil, err
		}
	}

	httpResp, err := retryClient.Do(httpReq)
	attempts := int(atomic.LoadInt32(counter))

	if err != nil {
		if httpResp != nil {
			_ = httpResp.Body.Close()
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, fullURL, ctx.Err())
		}

		if attempts >= budget {
			return nil, fmt.Errorf("%w: %s %s after %d attempts: %w", zscaler.ErrRetriesExhausted, req.Method, fullURL, attempts, err)
		}

		return nil, fmt.Errorf("%s %s failed: %w", req.Method, fullURL, err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	resp := &zscaler.Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       data,
		Attempts:   attempts,
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		exhausted := attempts >= budget && zscaler.IsTransientStatus(httpResp.StatusCode)
		apiErr := zscaler.NewAPIError(req.Method, fullURL, httpResp.StatusCode, data, attempts, exhausted)

		return resp, apiErr
	}

	return resp, nil
}

// finish runs the response interceptors. An interceptor error is returned
// only when the call itself succeeded.
func (c *Client) finish(ctx context.Context, req *zscaler.Request, resp *zscaler.Response, callErr error) (*zscaler.Response, error) {
	view := resp
	if view == nil {
		view = &zscaler.Response{}
	}

	view.Error = callErr

	err := c.interceptors.ExecuteResponseInterceptors(ctx, req, view)
	if callErr != nil {
		c.debugLog("Request failed", map[string]interface{}{
			"method": req.Method,
			"path":   req.Path,
			"error":  callErr.Error(),
		})

		return resp, callErr
	}

	if err != nil {
		return resp, err
	}

	return resp, nil
}

func (c *Client) debugLog(msg string, fields map[string]interface{}) {
	if c.debug {
		c.logger.Debug(msg, fields)
	}
}

func composeURL(req *zscaler.Request) string {
	if len(req.Query) == 0 {
		return req.URL
	}

	return req.URL + "?" + req.Query.Encode()
}

func errorType(err error) string {
	var apiErr *zscaler.APIError

	switch {
	case errors.Is(err, zscaler.ErrRetriesExhausted):
		return "exhausted"
	case errors.As(err, &apiErr):
		return "http"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*zscaler.Response, error) {
	return c.send(ctx, http.MethodGet, path, nil, query)
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*zscaler.Response, error) {
	return c.send(ctx, http.MethodPost, path, body, nil)
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*zscaler.Response, error) {
	return c.send(ctx, http.MethodPut, path, body, nil)
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*zscaler.Response, error) {
	return c.send(ctx, http.MethodPatch, path, body, nil)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*zscaler.Response, error) {
	return c.send(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}, query url.Values) (*zscaler.Response, error) {
	req, err := c.CreateRequest(ctx, method, path, body, nil, query, false)
	if err != nil {
		return nil, err
	}

	return c.Execute(ctx, req)
}

// Cache returns the response cache.
func (c *Client) Cache() zscaler.Cache {
	return c.cache
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}
