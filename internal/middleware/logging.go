package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/gemini-chat/internal/errordata"
	"github.com/slotter-org/gemini-chat/internal/logger"
)

// RequestLogger writes one line per request through the app logger instead
// of gin's default writer. Expects AttachRequestContext to run first.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	reqLog := log.With("middleware", "RequestLogger")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"clientIP", c.ClientIP(),
		}
		if ed := errordata.GetErrorData(c.Request.Context()); ed != nil && ed.HasMessage() {
			fields = append(fields, "error", ed.Message)
		}
		switch {
		case c.Writer.Status() >= 500:
			reqLog.Warn("Request failed", fields...)
		default:
			reqLog.Info("Request served", fields...)
		}
	}
}
