// Package reconcile flags payments and payouts whose gateway callback never
// arrived, and checks vendor ledgers against their history.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/marketplace/internal/app/service/ledger"
	"github.com/fatflowers/marketplace/internal/models"
	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/metrics"
	"github.com/fatflowers/marketplace/pkg/types"
)

type StuckKind string

const (
	StuckKindPayment StuckKind = "payment"
	StuckKindPayout  StuckKind = "payout"
)

type StuckItem struct {
	Kind              StuckKind       `json:"kind"`
	ID                string          `json:"id"`
	VendorID          string          `json:"vendor_id"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	ExternalReference string          `json:"external_reference"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type SweepReport struct {
	Payments      int `json:"payments"`
	Payouts       int `json:"payouts"`
	DriftedLedger int `json:"drifted_ledgers"`
}

type Sweeper struct {
	db     *gorm.DB
	cfg    *cfgpkg.Config
	log    *zap.SugaredLogger
	ledger *ledger.Service
	now    func() time.Time

	stop chan struct{}
	done chan struct{}
}

func NewSweeper(db *gorm.DB, cfg *cfgpkg.Config, log *zap.SugaredLogger, l *ledger.Service) *Sweeper {
	return &Sweeper{db: db, cfg: cfg, log: log, ledger: l, now: time.Now}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Sweep flags every overdue payment and payout for review once. Nothing is
// resolved automatically. Ledger drift is only reported.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepReport, error) {
	log := logctx.FromCtx(ctx, s.log)
	now := s.now()
	report := &SweepReport{}

	var payments []models.Payment
	cutoff := now.Add(-orDefault(s.cfg.Payments.CallbackTimeout, 10*time.Minute))
	if err := s.db.WithContext(ctx).
		Where("status = ? AND needs_review = ? AND updated_at < ?", types.PaymentStatusProcessing, false, cutoff).
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("find stuck payments: %w", err)
	}
	for _, p := range payments {
		// UpdateColumns keeps updated_at, which is how long the payment has been waiting.
		if err := s.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", p.ID).
			UpdateColumns(map[string]any{"needs_review": true}).Error; err != nil {
			return nil, fmt.Errorf("flag payment %s: %w", p.ID, err)
		}
		log.Warnw("payment_stuck", "payment_id", p.ID, "order_id", p.OrderID, "vendor_id", p.VendorID,
			"external_reference", p.ExternalReference, "updated_at", p.UpdatedAt)
	}
	report.Payments = len(payments)
	metrics.StuckOperations.WithLabelValues(string(StuckKindPayment)).Add(float64(report.Payments))

	var payouts []models.PayoutTransaction
	cutoff = now.Add(-orDefault(s.cfg.Payouts.CallbackTimeout, 30*time.Minute))
	if err := s.db.WithContext(ctx).
		Where("status IN ? AND needs_review = ? AND updated_at < ?",
			[]types.PayoutStatus{types.PayoutStatusInitiated, types.PayoutStatusProcessing}, false, cutoff).
		Find(&payouts).Error; err != nil {
		return nil, fmt.Errorf("find stuck payouts: %w", err)
	}
	for _, pt := range payouts {
		if err := s.db.WithContext(ctx).Model(&models.PayoutTransaction{}).Where("id = ?", pt.ID).
			UpdateColumns(map[string]any{"needs_review": true}).Error; err != nil {
			return nil, fmt.Errorf("flag payout %s: %w", pt.ID, err)
		}
		log.Warnw("payout_stuck", "payout_id", pt.ID, "vendor_id", pt.VendorID,
			"external_reference", pt.ExternalReference, "status", pt.Status, "updated_at", pt.UpdatedAt)
	}
	report.Payouts = len(payouts)
	metrics.StuckOperations.WithLabelValues(string(StuckKindPayout)).Add(float64(report.Payouts))

	if s.ledger != nil {
		drifted, err := s.ledger.ReconcileAll(ctx, false)
		if err != nil {
			return report, err
		}
		report.DriftedLedger = len(drifted)
	}
	if report.Payments+report.Payouts+report.DriftedLedger > 0 {
		log.Infow("reconcile_sweep", "stuck_payments", report.Payments, "stuck_payouts", report.Payouts, "drifted_ledgers", report.DriftedLedger)
	}
	return report, nil
}

// ListStuck returns everything flagged for review that is still unresolved, oldest first.
func (s *Sweeper) ListStuck(ctx context.Context) ([]*StuckItem, error) {
	var payments []models.Payment
	if err := s.db.WithContext(ctx).Where("needs_review = ? AND status = ?", true, types.PaymentStatusProcessing).
		Order("updated_at asc").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("list stuck payments: %w", err)
	}
	var payouts []models.PayoutTransaction
	if err := s.db.WithContext(ctx).Where("needs_review = ? AND status IN ?", true,
		[]types.PayoutStatus{types.PayoutStatusInitiated, types.PayoutStatusProcessing}).
		Order("updated_at asc").Find(&payouts).Error; err != nil {
		return nil, fmt.Errorf("list stuck payouts: %w", err)
	}
	out := make([]*StuckItem, 0, len(payments)+len(payouts))
	for _, p := range payments {
		ref := ""
		if p.ExternalReference != nil {
			ref = *p.ExternalReference
		}
		out = append(out, &StuckItem{Kind: StuckKindPayment, ID: p.ID, VendorID: p.VendorID, Status: string(p.Status),
			Amount: p.Amount, ExternalReference: ref, UpdatedAt: p.UpdatedAt})
	}
	for _, pt := range payouts {
		out = append(out, &StuckItem{Kind: StuckKindPayout, ID: pt.ID, VendorID: pt.VendorID, Status: string(pt.Status),
			Amount: pt.Amount, ExternalReference: pt.ExternalReference, UpdatedAt: pt.UpdatedAt})
	}
	return out, nil
}

func (s *Sweeper) run(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Errorw("reconcile_sweep_failed", "error", err.Error())
			}
			cancel()
		}
	}
}

// Start launches the periodic sweep. A non-positive interval disables it.
func (s *Sweeper) Start(interval time.Duration) {
	if interval <= 0 || s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(interval)
	s.log.Infow("reconcile_sweeper_started", "interval", interval.String())
}

func (s *Sweeper) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
}

var Module = fx.Options(
	fx.Provide(NewSweeper),
	fx.Invoke(func(lc fx.Lifecycle, s *Sweeper, cfg *cfgpkg.Config) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				s.Start(cfg.Reconciliation.SweepInterval)
				return nil
			},
			OnStop: func(context.Context) error {
				s.Stop()
				return nil
			},
		})
	}),
)
