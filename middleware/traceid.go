package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceIDKey is the gin context key carrying the request trace id.
const TraceIDKey = "trace_id"

// TraceIDHeader is the header clients and the game launcher may set to
// correlate a request with their own logs. Responses always echo it back.
const TraceIDHeader = "X-Trace-ID"

// TraceID tags every request with a trace id. An id supplied by the caller
// is kept so a client bug report can be followed through the server logs;
// otherwise a fresh UUID is assigned.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(TraceIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(TraceIDKey, id)
		c.Header(TraceIDHeader, id)
		c.Next()
	}
}

// GetTraceID returns the request's trace id, or "" outside the middleware.
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(TraceIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
