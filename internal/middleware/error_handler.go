package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/astromatch/astromatch/internal/errors"
	"github.com/astromatch/astromatch/internal/telemetry"
)

// ErrorHandler recovers panics and normalizes any error attached to the gin
// context into the JSON error envelope with the matching HTTP status.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				ctx := c.Request.Context()
				telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
					"operation":   "panic_recovery",
					"panic_value": fmt.Sprintf("%v", r),
					"stack_trace": string(debug.Stack()),
				}).Error("Panic recovered in request handler")

				appErr := errors.NewInternalError("unexpected internal error", nil).
					WithCorrelationID(telemetry.GetCorrelationID(ctx))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(appErr))
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr := toAppError(c, err)
		c.JSON(appErr.HTTPStatus, errorBody(appErr))
	}
}

// AbortWithError is the helper handlers use to fail a request. It records
// the error for the middleware chain and stops further handlers.
func AbortWithError(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
}

func toAppError(c *gin.Context, err error) *errors.AppError {
	if appErr, ok := err.(*errors.AppError); ok {
		if appErr.CorrelationID == "" {
			appErr = appErr.WithCorrelationID(telemetry.GetCorrelationID(c.Request.Context()))
		}
		return appErr
	}

	telemetry.LogFromContext(c.Request.Context()).WithFields(map[string]interface{}{
		"operation": "error_normalization",
		"path":      c.FullPath(),
	}).WithError(err).Error("Unclassified error surfaced to handler")

	return errors.NewInternalError("unexpected internal error", err).
		WithCorrelationID(telemetry.GetCorrelationID(c.Request.Context()))
}

func errorBody(appErr *errors.AppError) gin.H {
	return gin.H{"error": appErr}
}
