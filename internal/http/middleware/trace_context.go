package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/conceptlab-backend/internal/pkg/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachTraceContext resolves a trace id and a request id for every request,
// stores them in the request context and echoes them as response headers.
// When tracing is on the active span's trace id wins so log lines match
// exported spans; otherwise an inbound header or a fresh uuid is used.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		td := &ctxutil.TraceData{
			TraceID:   resolveTraceID(c),
			RequestID: resolveRequestID(c),
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Writer.Header().Set(headerTraceID, td.TraceID)
		c.Writer.Header().Set(headerRequestID, td.RequestID)
		c.Next()
	}
}

func resolveTraceID(c *gin.Context) string {
	if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.HasTraceID() {
		return spanCtx.TraceID().String()
	}
	if id := strings.TrimSpace(c.GetHeader(headerTraceID)); id != "" {
		return id
	}
	return uuid.New().String()
}

func resolveRequestID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(headerRequestID)); id != "" {
		return id
	}
	return uuid.New().String()
}
