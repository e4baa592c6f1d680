package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/94R1K/student-metrics-backend/internal/service"
)

// Telemetry returns middleware that records request metrics using the
// provided telemetry service.
func Telemetry(telemetry *service.TelemetryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if telemetry == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		telemetry.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
