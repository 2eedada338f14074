// Package metrics exposes Prometheus collectors for the harvester.
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
	harvestPagesTotal             *prometheus.CounterVec
	harvestItemsTotal             *prometheus.CounterVec
	harvestDocumentsTotal         *prometheus.CounterVec
	harvestAssetsTotal            *prometheus.CounterVec
	harvestTagsTotal              *prometheus.CounterVec
	harvestIndexSize              prometheus.Gauge
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	harvestRateLimitDelaysSeconds *prometheus.HistogramVec
	statusRequestsTotal           *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_pages_total",
				Help: "Total number of feed pages fetched, labeled by tag.",
			},
			[]string{"tag"},
		)

		harvestItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_items_total",
				Help: "Total number of feed items seen, labeled by admission decision.",
			},
			[]string{"decision"},
		)

		harvestDocumentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_documents_total",
				Help: "Total number of materialization attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvestAssetsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_assets_total",
				Help: "Total number of embedded assets processed, labeled by status.",
			},
			[]string{"status"},
		)

		harvestTagsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_tags_total",
				Help: "Total number of tag crawls finished, labeled by how they stopped.",
			},
			[]string{"status"},
		)

		harvestIndexSize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvest_index_size",
				Help: "Number of document identities known to the dedup index.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_http_requests_total",
				Help: "Total number of outbound HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_http_request_duration_seconds",
				Help:    "Histogram of outbound HTTP request latencies, labeled by method and site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "site"},
		)

		harvestRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		statusRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_status_requests_total",
				Help: "Total number of requests served by the status server, labeled by route and code.",
			},
			[]string{"method", "route", "code"},
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
	Init()
	return promhttp.Handler()
}

// ObservePage counts one fetched feed page.
func ObservePage(tag string) {
	Init()
	harvestPagesTotal.WithLabelValues(tag).Inc()
}

// ObserveItem counts one feed item by admission decision.
func ObserveItem(decision string) {
	Init()
	harvestItemsTotal.WithLabelValues(decision).Inc()
}

// ObserveDocument counts one materialization outcome.
func ObserveDocument(outcome string) {
	Init()
	harvestDocumentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAsset counts one asset by status ("saved" or "failed").
func ObserveAsset(status string) {
	Init()
	harvestAssetsTotal.WithLabelValues(status).Inc()
}

// ObserveTag counts a finished tag crawl ("exhausted" or "stopped").
func ObserveTag(status string) {
	Init()
	harvestTagsTotal.WithLabelValues(status).Inc()
}

// SetIndexSize records the current dedup index size.
func SetIndexSize(n int) {
	Init()
	harvestIndexSize.Set(float64(n))
}

// ObserveHTTPRequest records an outbound request to rawURL, labeled by its
// host. code 0 means no response.
func ObserveHTTPRequest(method, rawURL string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, SanitizeSite(rawURL)).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	harvestRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveStatusRequest records one request served by the status server.
func ObserveStatusRequest(method, route string, code int) {
	Init()
	statusRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
