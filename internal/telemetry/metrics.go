// Package telemetry exposes Prometheus collectors and the optional ops
// listener for the collector.
package telemetry

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
	chartFetchesTotal          *prometheus.CounterVec
	lookupsTotal               *prometheus.CounterVec
	lookupRetriesTotal         prometheus.Counter
	lookupDurationSeconds      prometheus.Histogram
	categoriesTotal            *prometheus.CounterVec
	rowsWrittenTotal           *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		chartFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topcharts_chart_fetches_total",
				Help: "Total chart fetches, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		lookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topcharts_lookups_total",
				Help: "Total per-app metadata lookups, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		lookupRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "topcharts_lookup_retries_total",
				Help: "Total lookup attempts beyond the first.",
			},
		)

		lookupDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "topcharts_lookup_duration_seconds",
				Help:    "Histogram of per-app lookup latencies including retries.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		categoriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topcharts_categories_total",
				Help: "Total categories processed, labeled by status.",
			},
			[]string{"status"},
		)

		rowsWrittenTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topcharts_rows_written_total",
				Help: "Total chart rows written, labeled by country.",
			},
			[]string{"country"},
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

// ObserveChartFetch increments the chart fetch counter.
func ObserveChartFetch(source, status string) {
	chartFetchesTotal.WithLabelValues(source, status).Inc()
}

// ObserveLookup records one finished lookup and its total latency.
func ObserveLookup(outcome string, duration time.Duration) {
	lookupsTotal.WithLabelValues(outcome).Inc()
	lookupDurationSeconds.Observe(duration.Seconds())
}

// ObserveLookupRetry counts a retry attempt.
func ObserveLookupRetry() {
	lookupRetriesTotal.Inc()
}

// ObserveCategory increments the category counter for the given status.
func ObserveCategory(status string) {
	categoriesTotal.WithLabelValues(status).Inc()
}

// ObserveRowsWritten adds to the written row counter.
func ObserveRowsWritten(country string, rows int) {
	if rows > 0 {
		rowsWrittenTotal.WithLabelValues(country).Add(float64(rows))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
