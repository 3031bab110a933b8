// Package metrics provides Prometheus instrumentation for the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path pattern, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safesentry",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "safesentry",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AnalysesTotal counts risk analyses by outcome
	// (ok, not_found, error).
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safesentry",
			Name:      "analyses_total",
			Help:      "Total risk analyses by outcome.",
		},
		[]string{"outcome"},
	)

	// FindingsTotal counts emitted risk findings by severity.
	FindingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safesentry",
			Name:      "findings_total",
			Help:      "Total risk findings emitted, by severity.",
		},
		[]string{"severity"},
	)

	// ChecksSkippedTotal counts checks degraded to skipped by check name.
	ChecksSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safesentry",
			Name:      "checks_skipped_total",
			Help:      "Risk checks skipped because their data could not be gathered.",
		},
		[]string{"check"},
	)

	// LookupDuration observes external data-gathering latency by source.
	LookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "safesentry",
			Name:      "lookup_duration_seconds",
			Help:      "External lookup duration by source (chain, owners, reputation, verify, txservice).",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// LookupFailures counts failed external lookups by source.
	LookupFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safesentry",
			Name:      "lookup_failures_total",
			Help:      "Failed external lookups by source.",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AnalysesTotal,
		FindingsTotal,
		ChecksSkippedTotal,
		LookupDuration,
		LookupFailures,
	)
}

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware instruments requests with count and duration metrics.
// Uses the route pattern, not the raw path, to bound label cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		HTTPRequestDuration.WithLabelValues(
			c.Request.Method, path,
		).Observe(time.Since(start).Seconds())
	}
}

// ObserveLookup records one external lookup's duration and failure state.
func ObserveLookup(source string, start time.Time, err error) {
	LookupDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		LookupFailures.WithLabelValues(source).Inc()
	}
}
