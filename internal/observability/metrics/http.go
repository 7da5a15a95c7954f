package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics exposes Prometheus instruments for inbound HTTP traffic.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers HTTP instruments on the default registry.
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dealbill_http_requests_total",
			Help: "Inbound HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dealbill_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.requests.WithLabelValues(route, method, status).Inc()
		m.duration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}
