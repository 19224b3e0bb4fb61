package middleware

import (
	"strconv"
	"time"

	"campusloop/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records per-request Prometheus counters and latency.
// The route template (e.g. /products/:id) is used instead of the raw
// path to keep label cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		if metrics.HTTPRequestsTotal != nil {
			metrics.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
		}
		if metrics.HTTPRequestDuration != nil {
			metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		}
	}
}
