package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "stockflow/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// Keys stored on the gin context.
const (
	ginKeyRequestID        = "request_id"
	ginKeyTraceID          = "trace_id"
	ginKeyUserID           = "user_id"
	ginKeyIdempotencyKey   = "idempotency_key"
	ginKeyIdempotencyStore = "idempotency_store"
)

// Trace middleware reads or generates request and trace ids and puts them on
// the request context, where the logger picks them up.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		trace := appctx.NewTraceContext(c.GetHeader(HeaderRequestID))
		if traceID := c.GetHeader(HeaderTraceID); traceID != "" {
			trace.TraceID = traceID
		}

		c.Request = c.Request.WithContext(appctx.WithTrace(c.Request.Context(), trace))

		c.Set(ginKeyTraceID, trace.TraceID)
		c.Set(ginKeyRequestID, trace.RequestID)

		c.Header(HeaderRequestID, trace.RequestID)
		c.Header(HeaderTraceID, trace.TraceID)

		c.Next()
	}
}
