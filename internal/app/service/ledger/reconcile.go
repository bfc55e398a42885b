package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/metrics"
	"github.com/fatflowers/marketplace/pkg/types"
)

type Drift struct {
	Field    string          `json:"field"`
	Cached   decimal.Decimal `json:"cached"`
	Computed decimal.Decimal `json:"computed"`
}

type ReconcileReport struct {
	VendorID string    `json:"vendor_id"`
	Cached   *Snapshot `json:"cached"`
	Computed *Snapshot `json:"computed"`
	Drifts   []Drift   `json:"drifts"`
	Applied  bool      `json:"applied"`
}

func (r *ReconcileReport) HasDrift() bool { return len(r.Drifts) > 0 }

var earningTypesInBalance = []types.EarningType{types.EarningTypeOrder, types.EarningTypeRefund, types.EarningTypeAdjustment}

func sum(q *gorm.DB, expr string) (decimal.Decimal, error) {
	var d decimal.Decimal
	if err := q.Select(fmt.Sprintf("COALESCE(SUM(%s), 0)", expr)).Row().Scan(&d); err != nil {
		return decimal.Zero, err
	}
	return d.Round(2), nil
}

// computeFromHistory rebuilds the counters from earnings and payout transactions.
func computeFromHistory(ctx context.Context, tx *gorm.DB, vendorID string) (*Snapshot, error) {
	earned, err := sum(tx.WithContext(ctx).Model(&models.VendorEarning{}).
		Where("vendor_id = ? AND status <> ? AND earning_type IN ?", vendorID, types.EarningStatusCancelled, earningTypesInBalance), "net_amount")
	if err != nil {
		return nil, fmt.Errorf("sum earnings: %w", err)
	}
	paidOut, err := sum(tx.WithContext(ctx).Model(&models.PayoutTransaction{}).
		Where("vendor_id = ? AND status = ?", vendorID, types.PayoutStatusCompleted), "amount")
	if err != nil {
		return nil, fmt.Errorf("sum completed payouts: %w", err)
	}
	pending, err := sum(tx.WithContext(ctx).Model(&models.PayoutTransaction{}).
		Where("vendor_id = ? AND status IN ?", vendorID, []types.PayoutStatus{types.PayoutStatusInitiated, types.PayoutStatusProcessing}), "amount")
	if err != nil {
		return nil, fmt.Errorf("sum pending payouts: %w", err)
	}
	return &Snapshot{
		VendorID:         vendorID,
		TotalEarnings:    earned,
		TotalPaidOut:     paidOut,
		PendingPayouts:   pending,
		AvailableBalance: earned.Sub(paidOut).Sub(pending),
	}, nil
}

func diff(cached, computed *Snapshot) []Drift {
	var out []Drift
	add := func(field string, c, x decimal.Decimal) {
		if !c.Equal(x) {
			out = append(out, Drift{Field: field, Cached: c, Computed: x})
		}
	}
	add("total_earnings", cached.TotalEarnings, computed.TotalEarnings)
	add("available_balance", cached.AvailableBalance, computed.AvailableBalance)
	add("pending_payouts", cached.PendingPayouts, computed.PendingPayouts)
	add("total_paid_out", cached.TotalPaidOut, computed.TotalPaidOut)
	return out
}

// Reconcile compares the cached counters with the earning and payout history.
// With apply set, drifted counters are overwritten by the computed values.
func (s *Service) Reconcile(ctx context.Context, vendorID string, apply bool) (*ReconcileReport, error) {
	report := &ReconcileReport{VendorID: vendorID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := lockVendor(ctx, tx, vendorID)
		if err != nil {
			return err
		}
		report.Cached = snapshotOf(v)
		report.Computed, err = computeFromHistory(ctx, tx, vendorID)
		if err != nil {
			return err
		}
		report.Computed.Version = v.LedgerVersion
		report.Drifts = diff(report.Cached, report.Computed)
		if !apply || !report.HasDrift() {
			return nil
		}
		computed := report.Computed
		snap, err := s.mutate(ctx, tx, vendorID, OpReconcile, func(b *Snapshot) error {
			b.TotalEarnings = computed.TotalEarnings
			b.AvailableBalance = computed.AvailableBalance
			b.PendingPayouts = computed.PendingPayouts
			b.TotalPaidOut = computed.TotalPaidOut
			return nil
		})
		if err != nil {
			return err
		}
		report.Computed.Version = snap.Version
		report.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if report.HasDrift() {
		metrics.LedgerDrift.Inc()
		logctx.FromCtx(ctx, s.log).Warnw("ledger_drift", "vendor_id", vendorID, "drifts", report.Drifts, "applied", report.Applied)
	}
	return report, nil
}

// ReconcileAll reconciles every active vendor and returns the reports with drift.
func (s *Service) ReconcileAll(ctx context.Context, apply bool) ([]*ReconcileReport, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Vendor{}).Where("is_active = ?", true).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	var drifted []*ReconcileReport
	for _, id := range ids {
		r, err := s.Reconcile(ctx, id, apply)
		if err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("ledger_reconcile_failed", "vendor_id", id, "error", err.Error())
			continue
		}
		if r.HasDrift() {
			drifted = append(drifted, r)
		}
	}
	return drifted, nil
}
