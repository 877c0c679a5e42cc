package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLoggingMiddleware logs all incoming requests. It stamps every
// request with an invocation ID (reused from the X-Invocation-ID header when
// the external scheduler supplies one) so trigger calls and the batch runs
// they start share a correlation id in the logs.
func RequestLoggingMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		invocationID := c.Request.Header.Get("X-Invocation-ID")
		if invocationID == "" {
			invocationID = GenerateInvocationID()
		}
		ctx := WithInvocationID(c.Request.Context(), invocationID)
		ctx = WithOperation(ctx, "http_request")
		c.Request = c.Request.WithContext(ctx)

		log := logger.WithContext(ctx).WithComponent("http")

		log.Info("request started",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("remote_addr", c.ClientIP()),
		)

		c.Next()

		log.Info("request completed",
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.Int("response_size", c.Writer.Size()),
		)
	}
}
