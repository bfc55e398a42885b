// Package ledger owns the cached balance counters on the vendor row.
//
// Every write goes through mutate: the vendor row is locked for the duration of
// the caller's transaction, the new balances are computed in decimal, the
// invariant available+pending <= total_earnings is checked, and the row is
// written only if ledger_version is still the one that was read.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/metrics"
	"github.com/fatflowers/marketplace/pkg/tool"
	"github.com/fatflowers/marketplace/pkg/types"
)

type Op string

const (
	OpCredit    Op = "credit"
	OpReserve   Op = "reserve"
	OpSettle    Op = "settle"
	OpRelease   Op = "release"
	OpAdjust    Op = "adjust"
	OpReconcile Op = "reconcile"
)

// Snapshot is a read-only view of a vendor's ledger.
type Snapshot struct {
	VendorID         string          `json:"vendor_id"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	PendingPayouts   decimal.Decimal `json:"pending_payouts"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	TotalPaidOut     decimal.Decimal `json:"total_paid_out"`
	Version          int64           `json:"version"`
}

func snapshotOf(v *models.Vendor) *Snapshot {
	return &Snapshot{
		VendorID:         v.ID,
		AvailableBalance: v.AvailableBalance.Round(2),
		PendingPayouts:   v.PendingPayouts.Round(2),
		TotalEarnings:    v.TotalEarnings.Round(2),
		TotalPaidOut:     v.TotalPaidOut.Round(2),
		Version:          v.LedgerVersion,
	}
}

func (s *Snapshot) check() error {
	if s.AvailableBalance.IsNegative() || s.PendingPayouts.IsNegative() || s.TotalPaidOut.IsNegative() {
		return fmt.Errorf("ledger invariant violated for vendor %s: negative counter", s.VendorID)
	}
	if s.AvailableBalance.Add(s.PendingPayouts).GreaterThan(s.TotalEarnings) {
		return fmt.Errorf("ledger invariant violated for vendor %s: available %s + pending %s > total %s",
			s.VendorID, s.AvailableBalance, s.PendingPayouts, s.TotalEarnings)
	}
	return nil
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// lockVendor reads the vendor row with SELECT ... FOR UPDATE.
func lockVendor(ctx context.Context, tx *gorm.DB, vendorID string) (*models.Vendor, error) {
	var v models.Vendor
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", vendorID).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("vendor", vendorID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock vendor %s: %w", vendorID, err)
	}
	return &v, nil
}

func (s *Service) mutate(ctx context.Context, tx *gorm.DB, vendorID string, op Op, apply func(b *Snapshot) error) (*Snapshot, error) {
	v, err := lockVendor(ctx, tx, vendorID)
	if err != nil {
		return nil, err
	}
	b := snapshotOf(v)
	if err := apply(b); err != nil {
		return nil, err
	}
	if err := b.check(); err != nil {
		return nil, err
	}
	res := tx.WithContext(ctx).Model(&models.Vendor{}).
		Where("id = ? AND ledger_version = ?", vendorID, v.LedgerVersion).
		Updates(map[string]any{
			"total_earnings":    b.TotalEarnings,
			"available_balance": b.AvailableBalance,
			"pending_payouts":   b.PendingPayouts,
			"total_paid_out":    b.TotalPaidOut,
			"ledger_version":    v.LedgerVersion + 1,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update ledger for vendor %s: %w", vendorID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: vendor %s ledger version %d", apperr.ErrConcurrentUpdate, vendorID, v.LedgerVersion)
	}
	b.Version = v.LedgerVersion + 1
	metrics.LedgerMutations.WithLabelValues(string(op)).Inc()
	logctx.FromCtx(ctx, s.log).Infow("ledger_mutation", "op", op, "vendor_id", vendorID,
		"available_balance", b.AvailableBalance, "pending_payouts", b.PendingPayouts,
		"total_earnings", b.TotalEarnings, "total_paid_out", b.TotalPaidOut)
	return b, nil
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("amount must be positive, got %s", amount.String())
	}
	return nil
}

// CreditEarnings adds a completed payment's net amount to available balance and total earnings.
func (s *Service) CreditEarnings(ctx context.Context, tx *gorm.DB, vendorID string, net decimal.Decimal) (*Snapshot, error) {
	if net.IsNegative() {
		return nil, apperr.Validation("net earnings must not be negative, got %s", net.String())
	}
	return s.mutate(ctx, tx, vendorID, OpCredit, func(b *Snapshot) error {
		b.AvailableBalance = b.AvailableBalance.Add(net)
		b.TotalEarnings = b.TotalEarnings.Add(net)
		return nil
	})
}

// ReservePayout moves amount from available balance to pending payouts.
func (s *Service) ReservePayout(ctx context.Context, tx *gorm.DB, vendorID string, amount decimal.Decimal) (*Snapshot, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	return s.mutate(ctx, tx, vendorID, OpReserve, func(b *Snapshot) error {
		if b.AvailableBalance.LessThan(amount) {
			return &apperr.InsufficientBalanceError{Available: b.AvailableBalance, Requested: amount}
		}
		b.AvailableBalance = b.AvailableBalance.Sub(amount)
		b.PendingPayouts = b.PendingPayouts.Add(amount)
		return nil
	})
}

// SettlePayout moves a confirmed payout from pending payouts to total paid out.
func (s *Service) SettlePayout(ctx context.Context, tx *gorm.DB, vendorID string, amount decimal.Decimal) (*Snapshot, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	return s.mutate(ctx, tx, vendorID, OpSettle, func(b *Snapshot) error {
		if b.PendingPayouts.LessThan(amount) {
			return fmt.Errorf("settle %s for vendor %s: only %s pending", amount, vendorID, b.PendingPayouts)
		}
		b.PendingPayouts = b.PendingPayouts.Sub(amount)
		b.TotalPaidOut = b.TotalPaidOut.Add(amount)
		return nil
	})
}

// ReleasePayout returns a failed payout from pending payouts to available balance.
func (s *Service) ReleasePayout(ctx context.Context, tx *gorm.DB, vendorID string, amount decimal.Decimal) (*Snapshot, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	return s.mutate(ctx, tx, vendorID, OpRelease, func(b *Snapshot) error {
		if b.PendingPayouts.LessThan(amount) {
			return fmt.Errorf("release %s for vendor %s: only %s pending", amount, vendorID, b.PendingPayouts)
		}
		b.PendingPayouts = b.PendingPayouts.Sub(amount)
		b.AvailableBalance = b.AvailableBalance.Add(amount)
		return nil
	})
}

// PostAdjustment records an administrative adjustment earning and applies it
// to the ledger. Negative amounts debit the available balance.
func (s *Service) PostAdjustment(ctx context.Context, vendorID string, amount decimal.Decimal, note string) (*models.VendorEarning, *Snapshot, error) {
	if amount.IsZero() {
		return nil, nil, apperr.Validation("adjustment amount must not be zero")
	}
	if note == "" {
		return nil, nil, apperr.Validation("adjustment note is required")
	}
	earning := &models.VendorEarning{
		ID:               tool.GenerateUUIDV7(),
		VendorID:         vendorID,
		EarningType:      types.EarningTypeAdjustment,
		GrossAmount:      amount,
		CommissionRate:   decimal.Zero,
		CommissionAmount: decimal.Zero,
		NetAmount:        amount,
		Status:           types.EarningStatusPending,
		Note:             note,
	}
	var snap *Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		snap, err = s.mutate(ctx, tx, vendorID, OpAdjust, func(b *Snapshot) error {
			if amount.IsNegative() && b.AvailableBalance.Add(amount).IsNegative() {
				return &apperr.InsufficientBalanceError{Available: b.AvailableBalance, Requested: amount.Neg()}
			}
			b.AvailableBalance = b.AvailableBalance.Add(amount)
			b.TotalEarnings = b.TotalEarnings.Add(amount)
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Create(earning).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return earning, snap, nil
}

// GetVendorLedgerSnapshot reads the cached counters without locking.
func (s *Service) GetVendorLedgerSnapshot(ctx context.Context, vendorID string) (*Snapshot, error) {
	var v models.Vendor
	err := s.db.WithContext(ctx).Where("id = ?", vendorID).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("vendor", vendorID)
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor %s: %w", vendorID, err)
	}
	return snapshotOf(&v), nil
}

var Module = fx.Options(
	fx.Provide(NewService),
)
