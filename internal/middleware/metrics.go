package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collab_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collab_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 5), // 100B to 1MB
		},
		[]string{"method", "path"},
	)

	// 409 and 423 answers by route; a rising rate means editors collide often
	collabRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_http_rejections_total",
			Help: "Lock and version conflict responses",
		},
		[]string{"path", "status"},
	)

	activeRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collab_http_active_requests",
			Help: "Number of currently active HTTP requests",
		},
	)
)

// Metrics returns a gin middleware that collects Prometheus metrics
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if unobserved(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		activeRequests.Inc()

		c.Next()

		activeRequests.Dec()
		duration := time.Since(start).Seconds()
		code := c.Writer.Status()
		status := strconv.Itoa(code)

		// unmatched routes share one label
		path := normalizePath(c.FullPath())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
		httpResponseSize.WithLabelValues(c.Request.Method, path).Observe(float64(c.Writer.Size()))
		if code == http.StatusConflict || code == http.StatusLocked {
			collabRejectionsTotal.WithLabelValues(path, status).Inc()
		}
	}
}

// unobserved reports operational endpoints kept out of logs and metrics
func unobserved(path string) bool {
	return path == "/metrics" || path == "/health"
}

// normalizePath returns the route template, e.g. /api/v1/content/:id/lock
func normalizePath(path string) string {
	if path == "" {
		return "unknown"
	}
	return path
}
