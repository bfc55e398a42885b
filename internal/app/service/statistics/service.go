// Package statistics aggregates payments, commission and payouts for admins.
package statistics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/tool"
	"github.com/fatflowers/marketplace/pkg/types"
)

// Service provides statistics operations
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

type paymentTotals struct {
	Count      int64
	Amount     decimal.Decimal
	Commission decimal.Decimal
	Earnings   decimal.Decimal
	AvgRate    decimal.Decimal
}

func (s *Service) completedPayments(ctx context.Context, from, to time.Time) (*paymentTotals, error) {
	var out paymentTotals
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select(`COUNT(*) AS count,
COALESCE(SUM(amount), 0) AS amount,
COALESCE(SUM(commission_amount), 0) AS commission,
COALESCE(SUM(vendor_earnings), 0) AS earnings,
COALESCE(AVG(commission_rate), 0) AS avg_rate`).
		Where("status = ? AND completed_at >= ? AND completed_at <= ?", types.PaymentStatusCompleted, from, to).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("sum completed payments: %w", err)
	}
	return &out, nil
}

// GenerateCommissionSummary rolls up the period window ending at now and stores it.
func (s *Service) GenerateCommissionSummary(ctx context.Context, period types.PeriodType, now time.Time) (*models.CommissionSummary, error) {
	days := period.Days()
	if days == 0 {
		return nil, apperr.Validation("unknown period type %q", period)
	}
	start := now.AddDate(0, 0, -days)

	totals, err := s.completedPayments(ctx, start, now)
	if err != nil {
		return nil, err
	}
	var activeVendors, vendorsWithPayouts int64
	if err := s.db.WithContext(ctx).Model(&models.Vendor{}).Where("is_active = ?", true).Count(&activeVendors).Error; err != nil {
		return nil, fmt.Errorf("count active vendors: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.VendorEarning{}).
		Where("status = ? AND created_at >= ?", types.EarningStatusPaid, start).
		Distinct("vendor_id").Count(&vendorsWithPayouts).Error; err != nil {
		return nil, fmt.Errorf("count vendors with payouts: %w", err)
	}

	summary := &models.CommissionSummary{
		ID:                 tool.GenerateUUIDV7(),
		PeriodType:         period,
		PeriodStart:        start,
		PeriodEnd:          now,
		TotalPayments:      totals.Count,
		TotalAmount:        totals.Amount.Round(2),
		TotalCommission:    totals.Commission.Round(2),
		TotalVendorPayouts: totals.Earnings.Round(2),
		ActiveVendors:      activeVendors,
		VendorsWithPayouts: vendorsWithPayouts,
		GeneratedAt:        time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(summary).Error; err != nil {
		return nil, fmt.Errorf("save commission summary: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("commission_summary_generated", "period_type", period,
		"total_payments", summary.TotalPayments, "total_commission", summary.TotalCommission)
	return summary, nil
}

// ListCommissionSummaries returns the newest summaries first. An empty period lists all.
func (s *Service) ListCommissionSummaries(ctx context.Context, period types.PeriodType, limit int) ([]*models.CommissionSummary, error) {
	if limit <= 0 {
		limit = 30
	}
	q := s.db.WithContext(ctx).Model(&models.CommissionSummary{})
	if period != "" {
		q = q.Where("period_type = ?", period)
	}
	var rows []*models.CommissionSummary
	if err := q.Order("generated_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list commission summaries: %w", err)
	}
	return rows, nil
}

func (s *Service) GetCommissionSummary(ctx context.Context, id string) (*models.CommissionSummary, error) {
	var row models.CommissionSummary
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("commission_summary", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get commission summary %s: %w", id, err)
	}
	return &row, nil
}

type RevenueReport struct {
	PeriodDays            int             `json:"period_days"`
	PeriodStart           time.Time       `json:"period_start"`
	PeriodEnd             time.Time       `json:"period_end"`
	TotalPayments         int64           `json:"total_payments"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	TotalCommission       decimal.Decimal `json:"total_commission"`
	TotalVendorEarnings   decimal.Decimal `json:"total_vendor_earnings"`
	AverageCommissionRate decimal.Decimal `json:"average_commission_rate"`
	CompletedOrders       int64           `json:"completed_orders"`
}

// RevenueReport summarizes the last days days without storing anything.
func (s *Service) RevenueReport(ctx context.Context, days int, now time.Time) (*RevenueReport, error) {
	if days <= 0 {
		days = 30
	}
	start := now.AddDate(0, 0, -days)
	totals, err := s.completedPayments(ctx, start, now)
	if err != nil {
		return nil, err
	}
	var completedOrders int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("status = ? AND completed_at >= ? AND completed_at <= ?", types.OrderStatusCompleted, start, now).
		Count(&completedOrders).Error; err != nil {
		return nil, fmt.Errorf("count completed orders: %w", err)
	}
	return &RevenueReport{
		PeriodDays:            days,
		PeriodStart:           start,
		PeriodEnd:             now,
		TotalPayments:         totals.Count,
		TotalAmount:           totals.Amount.Round(2),
		TotalCommission:       totals.Commission.Round(2),
		TotalVendorEarnings:   totals.Earnings.Round(2),
		AverageCommissionRate: totals.AvgRate.Round(2),
		CompletedOrders:       completedOrders,
	}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
