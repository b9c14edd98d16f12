package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-enrollment-api/internal/service"
)

// Metrics records request count and latency per route template. Requests
// that match no route share the "unmatched" label so stray paths cannot
// grow the series count. Scrapes of /metrics are not measured.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		began := time.Now()
		c.Next()
		metrics.ObserveHTTPRequest(c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(began))
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
