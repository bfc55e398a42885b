package payment

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/marketplace/internal/app/service/events"
	"github.com/fatflowers/marketplace/internal/app/service/ledger"
	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Cfg       *cfgpkg.Config
	Log       *zap.SugaredLogger
	Ledger    *ledger.Service
	Publisher events.Publisher
	Payouts   AutoPayouter      `optional:"true"`
	Gateways  []CheckoutGateway `group:"checkout_gateways"`
}

func newFromParams(p Params) *Service {
	return NewService(p.DB, p.Cfg, p.Log, p.Ledger, p.Publisher, p.Payouts, p.Gateways...)
}

// Module exposes the payment service via Fx.
var Module = fx.Options(
	fx.Provide(newFromParams),
	fx.Provide(func(s *Service) PaymentManager { return s }),
	fx.Provide(
		fx.Annotate(NewMpesaCheckout, fx.ResultTags(`group:"checkout_gateways"`)),
		fx.Annotate(NewPayPalCheckout, fx.ResultTags(`group:"checkout_gateways"`)),
	),
)
