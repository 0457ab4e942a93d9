package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/conceptlab-backend/internal/pkg/ctxutil"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
)

// RequestLogger emits one structured line per request after the handler chain
// runs. Server errors log at error level, client errors at warn.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}
		fields := requestFields(c, time.Since(start))
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func requestFields(c *gin.Context, elapsed time.Duration) []any {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	fields := []any{
		"method", c.Request.Method,
		"path", path,
		"status", c.Writer.Status(),
		"duration_ms", elapsed.Milliseconds(),
		"client_ip", c.ClientIP(),
	}
	if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
		if td.TraceID != "" {
			fields = append(fields, "trace_id", td.TraceID)
		}
		if td.RequestID != "" {
			fields = append(fields, "request_id", td.RequestID)
		}
	}
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil && rd.Subject != "" {
		fields = append(fields, "subject", rd.Subject)
	}
	return fields
}
