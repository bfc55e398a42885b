package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/marketplace/pkg/types"
)

// PayoutRequest is a vendor's ask for a payout, approved by an admin before processing.
type PayoutRequest struct {
	ID                  string                    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	VendorID            string                    `gorm:"column:vendor_id;type:uuid;not null;index" json:"vendor_id"`
	Amount              decimal.Decimal           `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	PayoutMethod        types.PayoutMethod        `gorm:"column:payout_method;type:varchar(32);not null" json:"payout_method"`
	Recipient           string                    `gorm:"column:recipient;type:varchar(255);not null" json:"recipient"`
	Status              types.PayoutRequestStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	ApprovedBy          *string                   `gorm:"column:approved_by;type:varchar(64)" json:"approved_by"`
	ApprovedAt          *time.Time                `gorm:"column:approved_at" json:"approved_at"`
	ProcessedAt         *time.Time                `gorm:"column:processed_at" json:"processed_at"`
	FailureReason       *string                   `gorm:"column:failure_reason;type:text" json:"failure_reason"`
	PayoutTransactionID *string                   `gorm:"column:payout_transaction_id;type:uuid" json:"payout_transaction_id"`
	CreatedAt           time.Time                 `json:"created_at"`
	UpdatedAt           time.Time                 `json:"updated_at"`
}

func (PayoutRequest) TableName() string { return "payout_request" }
