package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evermore-events/backend/internal/metrics"
)

// Metrics records request counts and latency labelled by route template.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := m.BeginRequest()
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = metrics.SanitizePath(c.Request.URL.Path)
		}
		done(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
