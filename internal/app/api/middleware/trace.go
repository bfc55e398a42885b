package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/tool"
)

const TraceHeader = "X-Request-ID"

// TraceMiddleware reads X-Request-ID, or generates one, and stores it under
// logctx.TraceIDKey in both gin.Context and the request context. Webhook log rows and
// request loggers pick it up from there.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = tool.GenerateUUIDV7()
		}

		c.Set(logctx.TraceIDKey, traceID)
		c.Request = c.Request.WithContext(logctx.WithTraceID(c.Request.Context(), traceID))
		c.Next()
	}
}
