package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/marketplace/pkg/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// @Summary      Health check
// @Description  Returns service status. With a database pinger attached, an unreachable database reports "degraded".
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func Healthz(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := map[string]string{"status": "ok"}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				status["status"] = "degraded"
				status["database"] = err.Error()
			}
		}
		c.JSON(http.StatusOK, response.OKT(status))
	}
}

func RegisterHealthRoutes(r gin.IRouter, db Pinger) {
	r.GET("/healthz", Healthz(db))
}
