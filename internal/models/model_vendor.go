package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/marketplace/pkg/types"
)

// Vendor carries the cached balance counters. Only the ledger service writes
// TotalEarnings, AvailableBalance, PendingPayouts, TotalPaidOut and LedgerVersion.
type Vendor struct {
	ID             string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	BusinessName   string              `gorm:"column:business_name;type:varchar(255);not null" json:"business_name"`
	Phone          string              `gorm:"column:phone;type:varchar(32)" json:"phone"`
	PayPalEmail    string              `gorm:"column:paypal_email;type:varchar(255)" json:"paypal_email"`
	CommissionRate decimal.NullDecimal `gorm:"column:commission_rate;type:numeric(5,2)" json:"commission_rate"`
	IsActive       bool                `gorm:"column:is_active;not null" json:"is_active"`
	AutoPayout     bool                `gorm:"column:auto_payout;not null" json:"auto_payout"`
	PayoutMethod   types.PayoutMethod  `gorm:"column:payout_method;type:varchar(32)" json:"payout_method"`

	TotalEarnings    decimal.Decimal `gorm:"column:total_earnings;type:numeric(14,2);not null;default:0" json:"total_earnings"`
	AvailableBalance decimal.Decimal `gorm:"column:available_balance;type:numeric(14,2);not null;default:0" json:"available_balance"`
	PendingPayouts   decimal.Decimal `gorm:"column:pending_payouts;type:numeric(14,2);not null;default:0" json:"pending_payouts"`
	TotalPaidOut     decimal.Decimal `gorm:"column:total_paid_out;type:numeric(14,2);not null;default:0" json:"total_paid_out"`
	LedgerVersion    int64           `gorm:"column:ledger_version;not null;default:0" json:"ledger_version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Vendor) TableName() string { return "vendor" }

// PayoutRecipient returns the default destination for the given method.
func (v *Vendor) PayoutRecipient(method types.PayoutMethod) string {
	if method == types.PayoutMethodPayPal {
		return v.PayPalEmail
	}
	return v.Phone
}
