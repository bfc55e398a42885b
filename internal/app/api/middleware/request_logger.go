package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/pkg/logctx"
)

// RequestLoggerMiddleware attaches a request-scoped logger carrying trace_id
// and the route to gin.Context and to the request context.
func RequestLoggerMiddleware(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetString(logctx.TraceIDKey)

		reqLogger := base.With("trace_id", traceID, "route", c.FullPath())
		c.Set(logctx.LoggerKey, reqLogger)

		c.Request = c.Request.WithContext(logctx.WithLogger(c.Request.Context(), reqLogger))

		if traceID != "" {
			c.Writer.Header().Set(TraceHeader, traceID)
		}

		c.Next()
	}
}
