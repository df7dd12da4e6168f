package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"listing-composer/internal/logger"
)

const TraceIDHeader = "X-Trace-ID"

// RequestLogger puts a request-scoped logger and trace id into the request
// context and logs the start and end of every request.
func RequestLogger(base logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Берём trace_id из заголовка, иначе генерируем
		traceID := c.GetHeader(TraceIDHeader)
		if _, err := uuid.Parse(traceID); err != nil {
			traceID = uuid.NewString()
		}

		coreLogger := base.WithFields(logger.Fields{"trace_id": traceID})
		httpLogger := coreLogger.WithFields(logger.Fields{
			"http_method": c.Request.Method,
			"http_path":   c.Request.URL.Path,
			"remote_addr": c.ClientIP(),
		})

		ctx := logger.WithContext(c.Request.Context(), coreLogger)
		ctx = logger.ContextWithTraceID(ctx, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceIDHeader, traceID)

		start := time.Now()
		httpLogger.Info("Request started", nil)

		c.Next()

		httpLogger.Info("Request finished", logger.Fields{
			"status_code":   c.Writer.Status(),
			"bytes_written": c.Writer.Size(),
			"duration_ms":   time.Since(start).Milliseconds(),
		})
	}
}
