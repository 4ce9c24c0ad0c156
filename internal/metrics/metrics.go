// Package metrics exposes Prometheus collectors for the wallpaper armada.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	itemsTotal                 *prometheus.CounterVec
	storeResultsTotal          *prometheus.CounterVec
	blobRollbacksTotal         prometheus.Counter
	cycleDurationSeconds       prometheus.Histogram
	fetchBytesTotal            *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "armada_items_total",
				Help: "Feed items processed, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		storeResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "armada_store_results_total",
				Help: "Persistence attempts, labeled by result.",
			},
			[]string{"result"},
		)

		blobRollbacksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "armada_blob_rollbacks_total",
				Help: "Blob rollbacks performed after a failed persistence attempt.",
			},
		)

		cycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "armada_cycle_duration_seconds",
				Help:    "Duration of one full pass over every source, excluding the sleep.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "armada_fetch_bytes_total",
				Help: "Bytes fetched, labeled by kind (feed, page, image).",
			},
			[]string{"kind"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "armada_rate_limit_delays_seconds",
				Help:    "Histogram of per-host pacing wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem counts one processed feed item.
func ObserveItem(source, outcome string) {
	Init()
	itemsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveStoreResult counts one persistence attempt.
func ObserveStoreResult(result string) {
	Init()
	storeResultsTotal.WithLabelValues(result).Inc()
}

// ObserveBlobRollback counts one blob rollback.
func ObserveBlobRollback() {
	Init()
	blobRollbacksTotal.Inc()
}

// ObserveCycle records the duration of a fleet cycle.
func ObserveCycle(duration time.Duration) {
	Init()
	cycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveFetchBytes adds fetched bytes for the given kind.
func ObserveFetchBytes(kind string, n int) {
	Init()
	if n > 0 {
		fetchBytesTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
