package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/astromatch/astromatch/internal/telemetry"
)

const correlationHeader = "X-Correlation-ID"

// CorrelationID injects a correlation id into the request context, reusing
// the caller's header when present so ids survive service hops.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(correlationHeader)
		if correlationID == "" {
			correlationID = telemetry.NewCorrelationID()
		}

		ctx := telemetry.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(correlationHeader, correlationID)

		c.Next()
	}
}

// RequestLogging logs one structured entry per request with method, path,
// status, and duration.
func RequestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger := telemetry.LogFromContext(c.Request.Context()).WithFields(map[string]interface{}{
			"operation":   "http_request",
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		})

		if len(c.Errors) > 0 {
			logger.WithField("errors", c.Errors.String()).Warn("Request completed with errors")
			return
		}
		if c.Writer.Status() >= 500 {
			logger.Error("Request failed")
			return
		}
		logger.Info("Request completed")
	}
}
