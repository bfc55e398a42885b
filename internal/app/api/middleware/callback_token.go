package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/response"
)

// CallbackTokenMiddleware rejects gateway callbacks whose "token" query
// parameter fails verify with a 403.
func CallbackTokenMiddleware(verify func(token string) error, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := verify(c.Query("token")); err != nil {
			logctx.FromGin(c, log).Warnw("callback_token_rejected", "path", c.FullPath(), "error", err.Error())
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorT[any](response.APIResponseCodeForbidden, err.Error()))
			return
		}
		c.Next()
	}
}
