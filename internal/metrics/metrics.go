// Package metrics exposes Prometheus collectors for the catalog service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	upstreamRequestsTotal      *prometheus.CounterVec
	upstreamRequestSeconds     *prometheus.HistogramVec
	commitAttemptsTotal        *prometheus.CounterVec
	commitRetryExhaustedTotal  prometheus.Counter
	searchCacheLookupsTotal    *prometheus.CounterVec
	booksResolvedTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		upstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_upstream_requests_total",
				Help: "Total upstream provider requests, labeled by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		)

		upstreamRequestSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_upstream_request_seconds",
				Help:    "Histogram of upstream request latencies, labeled by endpoint.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"endpoint"},
		)

		commitAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_commit_attempts_total",
				Help: "Total batch commit attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		commitRetryExhaustedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_commit_retry_exhausted_total",
				Help: "Total batch commits that failed after exhausting conflict retries.",
			},
		)

		searchCacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_search_cache_lookups_total",
				Help: "Total search cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		booksResolvedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_books_resolved_total",
				Help: "Total books resolved, labeled by source (store or upstream).",
			},
			[]string{"source"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpstreamRequest records one upstream provider call.
func ObserveUpstreamRequest(endpoint, outcome string, duration time.Duration) {
	upstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	upstreamRequestSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveCommitAttempt records one batch commit attempt outcome.
func ObserveCommitAttempt(outcome string) {
	commitAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCommitExhausted records a commit that gave up after retries.
func ObserveCommitExhausted() {
	commitRetryExhaustedTotal.Inc()
}

// ObserveSearchCache records a cache lookup result ("hit", "miss" or "bypass").
func ObserveSearchCache(result string) {
	searchCacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveBooksResolved records how many books a resolution served per source.
func ObserveBooksResolved(source string, count int) {
	if count > 0 {
		booksResolvedTotal.WithLabelValues(source).Add(float64(count))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
