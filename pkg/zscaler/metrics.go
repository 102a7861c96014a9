package zscaler

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector records Prometheus metrics for the request lifecycle.
// A nil collector records nothing. It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	cacheClears     prometheus.Counter
	loginsTotal     *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
}

// NewMetricsCollector registers the collectors on registerer. Collectors
// already registered by an earlier client are reused, so several clients
// may share one registerer.
func NewMetricsCollector(registerer prometheus.Registerer) (*MetricsCollector, error) {
	var (
		mc  MetricsCollector
		err error
	)

	mc.requestsTotal, err = register(registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zscaler_requests_total",
			Help: "Total number of logical API calls by final status",
		},
		[]string{"method", "status_code"},
	))
	if err != nil {
		return nil, err
	}

	mc.requestDuration, err = register(registerer, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zscaler_request_duration_seconds",
			Help:    "Duration of logical API calls including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	))
	if err != nil {
		return nil, err
	}

	mc.retriesTotal, err = register(registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zscaler_retries_total",
			Help: "Total number of retry attempts",
		},
		[]string{"method"},
	))
	if err != nil {
		return nil, err
	}

	mc.cacheHits, err = register(registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zscaler_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"method"},
	))
	if err != nil {
		return nil, err
	}

	mc.cacheMisses, err = register(registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zscaler_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"method"},
	))
	if err != nil {
		return nil, err
	}

	mc.cacheClears, err = register(registerer, prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zscaler_cache_clears_total",
			Help: "Total number of cache clears caused by mutations",
		},
	))
	if err != nil {
		return nil, err
	}

	mc.loginsTotal, err = register(registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zscaler_logins_total",
			Help: "Total number of sign-in exchanges by result",
		},
		[]string{"result"},
	))
	if err != nil {
		return nil, err
	}

	mc.errorsTotal, err = register(registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zscaler_errors_total",
			Help: "Total number of failed API calls by error type",
		},
		[]string{"type", "method"},
	))
	if err != nil {
		return nil, err
	}

	return &mc, nil
}

// register adds collector to registerer, or returns the identical collector
// registered before.
func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) (T, error) {
	if registerer == nil {
		return collector, nil
	}

	err := registerer.Register(collector)
	if err == nil {
		return collector, nil
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing, nil
		}
	}

	var zero T

	return zero, fmt.Errorf("%w: failed to register metrics: %w", ErrInvalidConfig, err)
}

// RecordRequest records one logical call and its duration.
func (mc *MetricsCollector) RecordRequest(method string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	mc.requestsTotal.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	mc.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt.
func (mc *MetricsCollector) RecordRetry(method string) {
	if mc == nil {
		return
	}

	mc.retriesTotal.WithLabelValues(method).Inc()
}

// RecordCacheHit records a cache hit.
func (mc *MetricsCollector) RecordCacheHit(method string) {
	if mc == nil {
		return
	}

	mc.cacheHits.WithLabelValues(method).Inc()
}

// RecordCacheMiss records a cache miss.
func (mc *MetricsCollector) RecordCacheMiss(method string) {
	if mc == nil {
		return
	}

	mc.cacheMisses.WithLabelValues(method).Inc()
}

// RecordCacheClear records a cache clear.
func (mc *MetricsCollector) RecordCacheClear() {
	if mc == nil {
		return
	}

	mc.cacheClears.Inc()
}

// RecordLogin records a sign-in exchange.
func (mc *MetricsCollector) RecordLogin(success bool) {
	if mc == nil {
		return
	}

	result := "success"
	if !success {
		result = "failure"
	}

	mc.loginsTotal.WithLabelValues(result).Inc()
}

// RecordError records a failed call; errorType is e.g. "http", "transport"
// or "exhausted".
func (mc *MetricsCollector) RecordError(errorType, method string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method).Inc()
}
