package zscaler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Configuration and authentication errors.
var (
	ErrConfigRequired       = errors.New("config is required")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrUnknownCloud         = errors.New("unknown cloud")
	ErrUnsupportedCacheType = errors.New("unsupported cache type")
	ErrNATSConfigRequired   = errors.New("NATS configuration required for NATS cache")
	ErrRedisConfigRequired  = errors.New("redis configuration required for Redis cache")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotAuthenticated     = errors.New("not authenticated")
)

// Request errors.
var (
	ErrRetriesExhausted   = errors.New("retries exhausted")
	ErrMethodRequired     = errors.New("HTTP method is required")
	ErrInvalidRequestPath = errors.New("invalid request path")
	ErrUnexpectedListBody = errors.New("unexpected list response body")
)

// APIError is a non-success HTTP response from a Zscaler API.
type APIError struct {
	StatusCode int    `json:"-"`
	Method     string `json:"-"`
	URL        string `json:"-"`
	Attempts   int    `json:"-"`
	Body       []byte `json:"-"`

	// Code and Message are read from either the ZIA style
	// {"code","message"} or the ZPA style {"id","reason"} body.
	Code    string `json:"code"`
	Message string `json:"message"`

	exhausted bool
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s returned %d", e.Method, e.URL, e.StatusCode)

	if e.Code != "" {
		msg += ": " + e.Code
	}

	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.exhausted {
		msg += fmt.Sprintf(" (after %d attempts)", e.Attempts)
	}

	return msg
}

// Unwrap reports ErrRetriesExhausted when the retry budget ran out.
func (e *APIError) Unwrap() error {
	if e.exhausted {
		return ErrRetriesExhausted
	}

	return nil
}

// Exhausted reports whether the error was returned after the retry budget ran out.
func (e *APIError) Exhausted() bool {
	return e.exhausted
}

// NewAPIError builds an APIError from a response status and body. The body is
// parsed best effort; an unparseable body leaves Code and Message empty.
func NewAPIError(method, url string, statusCode int, body []byte, attempts int, exhausted bool) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Method:     method,
		URL:        url,
		Attempts:   attempts,
		Body:       body,
		exhausted:  exhausted,
	}

	parsed, err := ParseErrorBody(body)
	if err == nil {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
	}

	return apiErr
}

// ParseErrorBody parses an error response body in either ZIA or ZPA format.
func ParseErrorBody(data []byte) (*APIError, error) {
	var raw struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		ID      string `json:"id"`
		Reason  string `json:"reason"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal error body: %w", err)
	}

	parsed := &APIError{Code: raw.Code, Message: raw.Message}
	if parsed.Code == "" {
		parsed.Code = raw.ID
	}

	if parsed.Message == "" {
		parsed.Message = raw.Reason
	}

	return parsed, nil
}

// IsTransientStatus reports whether a status code is worth retrying:
// request timeout, rate limiting, and server errors other than 501.
func IsTransientStatus(statusCode int) bool {
	switch {
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return true
	case statusCode == http.StatusNotImplemented:
		return false
	case statusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized checks if the error is an unauthorized error.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden checks if the error is a forbidden error.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsRateLimited checks if the error is a rate limit error.
func IsRateLimited(err error) bool {
	return hasStatus(err, http.StatusTooManyRequests)
}

func hasStatus(err error, statusCode int) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == statusCode
	}

	return false
}
