package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/marketplace/pkg/types"
)

// CommissionSummary is a point-in-time rollup over a period window.
type CommissionSummary struct {
	ID                 string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	PeriodType         types.PeriodType `gorm:"column:period_type;type:varchar(16);not null;index" json:"period_type"`
	PeriodStart        time.Time        `gorm:"column:period_start;not null" json:"period_start"`
	PeriodEnd          time.Time        `gorm:"column:period_end;not null" json:"period_end"`
	TotalPayments      int64            `gorm:"column:total_payments;not null" json:"total_payments"`
	TotalAmount        decimal.Decimal  `gorm:"column:total_amount;type:numeric(14,2);not null" json:"total_amount"`
	TotalCommission    decimal.Decimal  `gorm:"column:total_commission;type:numeric(14,2);not null" json:"total_commission"`
	TotalVendorPayouts decimal.Decimal  `gorm:"column:total_vendor_payouts;type:numeric(14,2);not null" json:"total_vendor_payouts"`
	ActiveVendors      int64            `gorm:"column:active_vendors;not null" json:"active_vendors"`
	VendorsWithPayouts int64            `gorm:"column:vendors_with_payouts;not null" json:"vendors_with_payouts"`
	GeneratedAt        time.Time        `gorm:"column:generated_at;not null" json:"generated_at"`
	CreatedAt          time.Time        `json:"created_at"`
}

func (CommissionSummary) TableName() string { return "commission_summary" }
