package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/marketplace/docs"
	"github.com/fatflowers/marketplace/internal/app/api/handlers"
	mw "github.com/fatflowers/marketplace/internal/app/api/middleware"
	"github.com/fatflowers/marketplace/internal/app/service/ledger"
	"github.com/fatflowers/marketplace/internal/app/service/order"
	"github.com/fatflowers/marketplace/internal/app/service/payment"
	"github.com/fatflowers/marketplace/internal/app/service/payout"
	"github.com/fatflowers/marketplace/internal/app/service/reconcile"
	"github.com/fatflowers/marketplace/internal/app/service/statistics"
	"github.com/fatflowers/marketplace/internal/app/service/webhook"
	"github.com/fatflowers/marketplace/internal/app/service/webhook_log"
	"github.com/fatflowers/marketplace/internal/platform/mpesa"
	"github.com/fatflowers/marketplace/internal/platform/paypal"
	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
	"github.com/fatflowers/marketplace/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeParams struct {
	fx.In

	Log         *zap.SugaredLogger
	Cfg         *cfgpkg.Config
	DB          *gorm.DB
	Orders      *order.Service
	Payments    payment.PaymentManager
	Payouts     payout.PayoutManager
	Ledger      *ledger.Service
	Stats       *statistics.Service
	Sweeper     *reconcile.Sweeper
	Webhooks    *webhook.Handler
	WebhookLogs *webhook_log.Service
	Mpesa       *mpesa.Client
	PayPal      *paypal.Client
}

func registerRoutes(lc fx.Lifecycle, r *gin.Engine, p routeParams) {
	log := p.Log
	if p.Cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{Logger: log})
		prom.Use(r)
		srv := prom.Server(p.Cfg.MetricsAddr)
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Errorw("metrics server error", "error", err.Error())
					}
				}()
				log.Infow("metrics started", "addr", p.Cfg.MetricsAddr)
				return nil
			},
			OnStop: srv.Shutdown,
		})
	}

	var pinger handlers.Pinger
	if sqlDB, err := p.DB.DB(); err == nil {
		pinger = sqlDB
	}
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub, pinger)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterOrderRoutes(apiV1, p.Orders, log)
	handlers.RegisterPaymentRoutes(apiV1, p.Payments, log)
	handlers.RegisterPayoutRoutes(apiV1, p.Payouts, log)
	handlers.RegisterVendorRoutes(apiV1, p.Ledger, p.Payments, p.Payouts, log)

	handlers.RegisterWebhookRoutes(apiV1.Group("/webhooks"), p.Webhooks, p.PayPal,
		mw.CallbackTokenMiddleware(p.Mpesa.VerifyCallbackToken, log), log)

	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), &handlers.Admin{
		Payments: p.Payments,
		Payouts:  p.Payouts,
		Stats:    p.Stats,
		Ledger:   p.Ledger,
		Stuck:    p.Sweeper,
		Logs:     p.WebhookLogs,
		Replayer: p.Webhooks,
		Log:      log,
	})
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
