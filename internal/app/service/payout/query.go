package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/types"
)

var (
	payoutRequestColumns = types.ScanColumns{
		Filter: []string{"id", "vendor_id", "status", "payout_method", "amount", "approved_by", "created_at", "updated_at", "processed_at"},
		Sort:   []string{"created_at", "updated_at", "amount"},
	}
	payoutColumns = types.ScanColumns{
		Filter: []string{
			"id", "vendor_id", "payout_request_id", "payout_method", "external_reference", "status",
			"amount", "needs_review", "initiated_at", "completed_at", "created_at", "updated_at",
		},
		Sort: []string{"created_at", "updated_at", "completed_at", "amount"},
	}
	earningColumns = types.ScanColumns{
		Filter: []string{"id", "vendor_id", "order_id", "payment_id", "earning_type", "status", "payout_transaction_id", "net_amount", "created_at"},
		Sort:   []string{"created_at", "net_amount"},
	}
)

// ScanPayoutRequests lists payout requests, e.g. the approved ones waiting for bulk processing.
func (s *Service) ScanPayoutRequests(ctx context.Context, req *types.ScanRequest) (*types.ScanResult[models.PayoutRequest], error) {
	res, err := types.Scan[models.PayoutRequest](s.db.WithContext(ctx).Model(&models.PayoutRequest{}), req, payoutRequestColumns)
	if err != nil {
		return nil, fmt.Errorf("scan payout requests: %w", err)
	}
	return res, nil
}

func (s *Service) ScanPayouts(ctx context.Context, req *types.ScanRequest) (*types.ScanResult[models.PayoutTransaction], error) {
	res, err := types.Scan[models.PayoutTransaction](s.db.WithContext(ctx).Model(&models.PayoutTransaction{}), req, payoutColumns)
	if err != nil {
		return nil, fmt.Errorf("scan payouts: %w", err)
	}
	return res, nil
}

func (s *Service) ScanEarnings(ctx context.Context, req *types.ScanRequest) (*types.ScanResult[models.VendorEarning], error) {
	res, err := types.Scan[models.VendorEarning](s.db.WithContext(ctx).Model(&models.VendorEarning{}), req, earningColumns)
	if err != nil {
		return nil, fmt.Errorf("scan earnings: %w", err)
	}
	return res, nil
}

type VendorPayoutSummary struct {
	VendorID         string             `json:"vendor_id"`
	VendorName       string             `json:"vendor_name"`
	TotalEarnings    decimal.Decimal    `json:"total_earnings"`
	AvailableBalance decimal.Decimal    `json:"available_balance"`
	PendingPayouts   decimal.Decimal    `json:"pending_payouts"`
	TotalPaidOut     decimal.Decimal    `json:"total_paid_out"`
	PayoutMethod     types.PayoutMethod `json:"payout_method"`
	AutoPayout       bool               `json:"auto_payout"`
	LastPayoutAt     *time.Time         `json:"last_payout_at"`
}

// VendorPayoutSummaries reports the ledger counters of every active vendor
// with the time of its last completed payout.
func (s *Service) VendorPayoutSummaries(ctx context.Context) ([]*VendorPayoutSummary, error) {
	var vendors []models.Vendor
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("business_name, id").Find(&vendors).Error; err != nil {
		return nil, fmt.Errorf("list active vendors: %w", err)
	}
	ids := lo.Map(vendors, func(v models.Vendor, _ int) string { return v.ID })

	latest := map[string]time.Time{}
	if len(ids) > 0 {
		var rows []models.PayoutTransaction
		if err := s.db.WithContext(ctx).Select("vendor_id", "completed_at").
			Where("vendor_id IN ? AND status = ? AND completed_at IS NOT NULL", ids, types.PayoutStatusCompleted).
			Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("list completed payouts: %w", err)
		}
		for _, r := range rows {
			if r.CompletedAt.After(latest[r.VendorID]) {
				latest[r.VendorID] = *r.CompletedAt
			}
		}
	}

	return lo.Map(vendors, func(v models.Vendor, _ int) *VendorPayoutSummary {
		out := &VendorPayoutSummary{
			VendorID:         v.ID,
			VendorName:       v.BusinessName,
			TotalEarnings:    v.TotalEarnings,
			AvailableBalance: v.AvailableBalance,
			PendingPayouts:   v.PendingPayouts,
			TotalPaidOut:     v.TotalPaidOut,
			PayoutMethod:     lo.Ternary(v.PayoutMethod != "", v.PayoutMethod, types.PayoutMethodMpesa),
			AutoPayout:       v.AutoPayout,
		}
		if t, ok := latest[v.ID]; ok {
			out.LastPayoutAt = lo.ToPtr(t)
		}
		return out
	}), nil
}
