package payout

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/marketplace/internal/app/service/events"
	"github.com/fatflowers/marketplace/internal/app/service/ledger"
	"github.com/fatflowers/marketplace/internal/app/service/payment"
	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Cfg       *cfgpkg.Config
	Log       *zap.SugaredLogger
	Ledger    *ledger.Service
	Publisher events.Publisher
	Gateways  []DisbursementGateway `group:"disbursement_gateways"`
}

func newFromParams(p Params) *Service {
	return NewService(p.DB, p.Cfg, p.Log, p.Ledger, p.Publisher, p.Gateways...)
}

// Module exposes the payout service via Fx. The payment service picks it up
// as its auto payouter.
var Module = fx.Options(
	fx.Provide(newFromParams),
	fx.Provide(func(s *Service) PayoutManager { return s }),
	fx.Provide(func(s *Service) payment.AutoPayouter { return s }),
	fx.Provide(
		fx.Annotate(NewMpesaDisbursement, fx.ResultTags(`group:"disbursement_gateways"`)),
		fx.Annotate(NewPayPalDisbursement, fx.ResultTags(`group:"disbursement_gateways"`)),
	),
)
