package zscaler_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
)

func TestMetricsCollector(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	metrics, err := zscaler.NewMetricsCollector(registry)
	require.NoError(t, err)

	metrics.RecordRequest("GET", 200, 10*time.Millisecond)
	metrics.RecordRequest("GET", 200, 20*time.Millisecond)
	metrics.RecordRequest("POST", 503, time.Second)
	metrics.RecordRetry("GET")
	metrics.RecordCacheHit("GET")
	metrics.RecordCacheMiss("GET")
	metrics.RecordCacheMiss("GET")
	metrics.RecordCacheClear()
	metrics.RecordLogin(true)
	metrics.RecordLogin(false)
	metrics.RecordError("exhausted", "POST")

	count, err := testutil.GatherAndCount(registry,
		"zscaler_requests_total",
		"zscaler_retries_total",
		"zscaler_cache_hits_total",
		"zscaler_cache_misses_total",
		"zscaler_cache_clears_total",
		"zscaler_logins_total",
		"zscaler_errors_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 9, count)

	histograms, err := testutil.GatherAndCount(registry, "zscaler_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, histograms)
}

func TestMetricsCollector_Nil(t *testing.T) {
	t.Parallel()

	var metrics *zscaler.MetricsCollector

	assert.NotPanics(t, func() {
		metrics.RecordRequest("GET", 200, time.Millisecond)
		metrics.RecordRetry("GET")
		metrics.RecordCacheHit("GET")
		metrics.RecordCacheMiss("GET")
		metrics.RecordCacheClear()
		metrics.RecordLogin(true)
		metrics.RecordError("http", "GET")
	})
}

func TestMetricsCollector_SharedRegisterer(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()

	first, err := zscaler.NewMetricsCollector(registry)
	require.NoError(t, err)

	second, err := zscaler.NewMetricsCollector(registry)
	require.NoError(t, err)

	first.RecordLogin(false)
	second.RecordLogin(false)
	second.RecordLogin(true)

	count, err := testutil.GatherAndCount(registry, "zscaler_logins_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	families, err := registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != "zscaler_logins_total" {
			continue
		}

		for _, metric := range family.GetMetric() {
			if metric.GetLabel()[0].GetValue() == "failure" {
				assert.InDelta(t, 2, metric.GetCounter().GetValue(), 0)
			}
		}
	}
}

func TestMetricsCollector_ConflictingRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zscaler_requests_total", Help: "other"},
		[]string{"path"},
	))

	metrics, err := zscaler.NewMetricsCollector(registry)
	require.ErrorIs(t, err, zscaler.ErrInvalidConfig)
	assert.Nil(t, metrics)
}

func TestMetricsCollector_NilRegisterer(t *testing.T) {
	t.Parallel()

	metrics, err := zscaler.NewMetricsCollector(nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() { metrics.RecordRequest("GET", 200, time.Millisecond) })
}
