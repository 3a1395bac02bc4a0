package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/component-request-system/crs/internal/telemetry"
)

// noRoute labels requests that matched no route so arbitrary paths do not create series
const noRoute = "<no-route>"

// MetricsMiddleware records http_requests_total and http_request_duration_seconds.
// The path label is the route template (/api/requests/:id), never the raw URL.
// Register it after gin.Recovery so statuses written by recovered panics are counted.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRoute
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
