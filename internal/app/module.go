package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/marketplace/internal/app/api/server"
	"github.com/fatflowers/marketplace/internal/app/service/events"
	"github.com/fatflowers/marketplace/internal/app/service/ledger"
	"github.com/fatflowers/marketplace/internal/app/service/order"
	"github.com/fatflowers/marketplace/internal/app/service/payment"
	"github.com/fatflowers/marketplace/internal/app/service/payout"
	"github.com/fatflowers/marketplace/internal/app/service/reconcile"
	"github.com/fatflowers/marketplace/internal/app/service/statistics"
	"github.com/fatflowers/marketplace/internal/app/service/webhook"
	"github.com/fatflowers/marketplace/internal/app/service/webhook_log"
	"github.com/fatflowers/marketplace/internal/platform/cache"
	"github.com/fatflowers/marketplace/internal/platform/db"
	"github.com/fatflowers/marketplace/internal/platform/mpesa"
	"github.com/fatflowers/marketplace/internal/platform/paypal"
	"github.com/fatflowers/marketplace/pkg/config"
	"github.com/fatflowers/marketplace/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	config.Module,
	logger.Module,
	db.Module,
	cache.Module,
	mpesa.Module,
	paypal.Module,
	events.Module,
	ledger.Module,
	order.Module,
	payment.Module,
	payout.Module,
	statistics.Module,
	webhook_log.Module,
	webhook.Module,
	reconcile.Module,
	server.Module,
)
