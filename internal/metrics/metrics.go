// Package metrics exposes Prometheus collectors for the aggregator.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for step observations.
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeSuccess  = "success"
	OutcomeEmpty    = "empty"
	OutcomeFailed   = "failed"
)

var (
	sourceStepsTotal           *prometheus.CounterVec
	sourceCallDurationSeconds  *prometheus.HistogramVec
	cacheLookupsTotal          *prometheus.CounterVec
	quotaRemaining             *prometheus.GaugeVec
	quotaLowWaterTotal         *prometheus.CounterVec
	jobsStoredTotal            *prometheus.CounterVec
	rateLimitWaitSeconds       *prometheus.HistogramVec
	scrapePagesTotal           *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		sourceStepsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsweep_source_steps_total",
				Help: "Total number of executed strategy steps, labeled by source, platform and outcome.",
			},
			[]string{"source", "platform", "outcome"},
		)

		sourceCallDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobsweep_source_call_duration_seconds",
				Help:    "Histogram of source call latencies, labeled by source.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsweep_cache_lookups_total",
				Help: "Total number of result cache lookups, labeled by source and result.",
			},
			[]string{"source", "result"},
		)

		quotaRemaining = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jobsweep_quota_remaining",
				Help: "Remaining monthly calls per metered API.",
			},
			[]string{"api"},
		)

		quotaLowWaterTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsweep_quota_low_water_total",
				Help: "Number of usage log events that left an API at or below its low-water mark.",
			},
			[]string{"api"},
		)

		jobsStoredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsweep_jobs_stored_total",
				Help: "Total number of normalized jobs handed to the job store, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		rateLimitWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobsweep_rate_limit_wait_seconds",
				Help:    "Histogram of per-source rate limit wait durations.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"source"},
		)

		scrapePagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsweep_scrape_pages_total",
				Help: "Total number of result pages requested by HTML scrapers, labeled by site.",
			},
			[]string{"site"},
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

// SanitizeLabel lower-cases a source or platform name and maps empties to "unknown".
func SanitizeLabel(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return v
}

// ObserveStep records one executed strategy step.
func ObserveStep(source, platform, outcome string) {
	Init()
	sourceStepsTotal.WithLabelValues(SanitizeLabel(source), SanitizeLabel(platform), outcome).Inc()
}

// ObserveSourceCall records a source call latency.
func ObserveSourceCall(source string, duration time.Duration) {
	Init()
	sourceCallDurationSeconds.WithLabelValues(SanitizeLabel(source)).Observe(duration.Seconds())
}

// ObserveCacheLookup records a cache hit or miss.
func ObserveCacheLookup(source string, hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(SanitizeLabel(source), result).Inc()
}

// SetQuotaRemaining publishes the remaining calls for a metered API.
func SetQuotaRemaining(api string, remaining int) {
	Init()
	quotaRemaining.WithLabelValues(SanitizeLabel(api)).Set(float64(remaining))
}

// ObserveQuotaLowWater counts a low-water event.
func ObserveQuotaLowWater(api string) {
	Init()
	quotaLowWaterTotal.WithLabelValues(SanitizeLabel(api)).Inc()
}

// ObserveJobStored counts a job store write.
func ObserveJobStored(source string, err error) {
	Init()
	status := "ok"
	if err != nil {
		status = "error"
	}
	jobsStoredTotal.WithLabelValues(SanitizeLabel(source), status).Inc()
}

// ObserveRateLimitWait records the duration of a rate limit wait.
func ObserveRateLimitWait(source string, duration time.Duration) {
	Init()
	rateLimitWaitSeconds.WithLabelValues(SanitizeLabel(source)).Observe(duration.Seconds())
}

// ObservePagesScraped counts result pages requested for site.
func ObservePagesScraped(site string, pages int) {
	Init()
	if pages <= 0 {
		return
	}
	scrapePagesTotal.WithLabelValues(SanitizeLabel(site)).Add(float64(pages))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
