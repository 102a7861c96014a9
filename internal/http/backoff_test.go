package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	noJitter := func(int64) int64 { return 0 }
	maxJitter := func(n int64) int64 { return n - 1 }

	tests := []struct {
		name     string
		attempt  int
		jitter   func(int64) int64
		expected time.Duration
	}{
		{"first retry waits base", 0, noJitter, time.Second},
		{"doubles per attempt", 2, noJitter, 4 * time.Second},
		{"jitter stays below base", 1, maxJitter, 2*time.Second + time.Second - 1},
		{"capped at max", 10, noJitter, 30 * time.Second},
		{"large exponent does not overflow", 200, maxJitter, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, exponentialBackoff(time.Second, 30*time.Second, tt.attempt, tt.jitter))
		})
	}
}

func TestClient_BackoffRetryAfter(t *testing.T) {
	t.Parallel()

	client := NewClient("https://example.com", nil)
	client.jitter = func(int64) int64 { return 0 }

	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": {"7"}}}
	assert.Equal(t, 7*time.Second, client.backoff(time.Second, 30*time.Second, 0, resp))

	resp = &http.Response{StatusCode: http.StatusServiceUnavailable, Header: http.Header{}}
	assert.Equal(t, 2*time.Second, client.backoff(time.Second, 30*time.Second, 1, resp))

	resp = &http.Response{StatusCode: http.StatusBadGateway, Header: http.Header{"Retry-After": {"7"}}}
	assert.Equal(t, time.Second, client.backoff(time.Second, 30*time.Second, 0, resp))

	// A server-chosen wait never exceeds the cap.
	resp = &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": {"3600"}}}
	assert.Equal(t, 30*time.Second, client.backoff(time.Second, 30*time.Second, 0, resp))

	resp = &http.Response{StatusCode: http.StatusServiceUnavailable, Header: http.Header{"Retry-After": {"120"}}}
	assert.Equal(t, 30*time.Second, client.backoff(time.Second, 30*time.Second, 2, resp))
}

func TestFieldsFromKeyValues(t *testing.T) {
	t.Parallel()

	fields := fieldsFromKeyValues([]interface{}{"method", "GET", "url", "https://example.com", "dangling"})
	assert.Equal(t, map[string]interface{}{
		"method": "GET",
		"url":    "https://example.com",
		"extra":  "dangling",
	}, fields)
}
