package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/marketplace/pkg/types"
)

// VendorEarning is an entry in a vendor's earning history. Order earnings are
// unique per payment.
type VendorEarning struct {
	ID                  string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	VendorID            string              `gorm:"column:vendor_id;type:uuid;not null;index" json:"vendor_id"`
	OrderID             *string             `gorm:"column:order_id;type:uuid" json:"order_id"`
	PaymentID           *string             `gorm:"column:payment_id;type:uuid;uniqueIndex" json:"payment_id"`
	EarningType         types.EarningType   `gorm:"column:earning_type;type:varchar(32);not null" json:"earning_type"`
	GrossAmount         decimal.Decimal     `gorm:"column:gross_amount;type:numeric(14,2);not null" json:"gross_amount"`
	CommissionRate      decimal.Decimal     `gorm:"column:commission_rate;type:numeric(5,2);not null" json:"commission_rate"`
	CommissionAmount    decimal.Decimal     `gorm:"column:commission_amount;type:numeric(14,2);not null" json:"commission_amount"`
	NetAmount           decimal.Decimal     `gorm:"column:net_amount;type:numeric(14,2);not null" json:"net_amount"`
	Status              types.EarningStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	PayoutTransactionID *string             `gorm:"column:payout_transaction_id;type:uuid;index" json:"payout_transaction_id"`
	Note                string              `gorm:"column:note;type:text" json:"note"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

func (VendorEarning) TableName() string { return "vendor_earning" }
