package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orphanbars/orphanbars-api/internal/service"
)

// Metrics records per-request counters and latency. Routes are labelled by
// template path so path parameters never explode cardinality.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
