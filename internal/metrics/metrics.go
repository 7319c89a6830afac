// Package metrics exposes Prometheus collectors for the harvest pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	datesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_dates_total",
			Help: "Dates processed by backfill runs, labeled by outcome.",
		},
		[]string{"status"},
	)

	extractDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvest_extract_duration_seconds",
			Help:    "Time spent driving the source page for one date.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"status"},
	)

	storeSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_store_saves_total",
			Help: "Transactional record saves, labeled by result.",
		},
		[]string{"result"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvest_rate_limit_delay_seconds",
			Help:    "Time spent waiting before a request to the source host.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"host"},
	)

	cacheRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_cache_refresh_total",
			Help: "Latest-record cache refreshes, labeled by result.",
		},
		[]string{"result"},
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
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDate counts one backfilled date ("success" or "failure").
func ObserveDate(status string) {
	datesTotal.WithLabelValues(status).Inc()
}

// ObserveExtract records how long one page extraction took.
func ObserveExtract(status string, d time.Duration) {
	extractDurationSeconds.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveSave counts a store save ("committed" or "rolled_back").
func ObserveSave(result string) {
	storeSavesTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, d time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}

// ObserveCacheRefresh counts a latest-record refresh attempt.
func ObserveCacheRefresh(result string) {
	cacheRefreshTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}
