package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/fatflowers/marketplace/pkg/types"
)

// PayoutTransaction is one disbursement submitted to a payout gateway.
type PayoutTransaction struct {
	ID                    string             `gorm:"column:id;type:uuid;primary_key" json:"id"`
	VendorID              string             `gorm:"column:vendor_id;type:uuid;not null;index" json:"vendor_id"`
	PayoutRequestID       *string            `gorm:"column:payout_request_id;type:uuid;index" json:"payout_request_id"`
	PayoutMethod          types.PayoutMethod `gorm:"column:payout_method;type:varchar(32);not null" json:"payout_method"`
	ExternalReference     string             `gorm:"column:external_reference;type:varchar(128);not null;uniqueIndex" json:"external_reference"`
	Amount                decimal.Decimal    `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Currency              string             `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status                types.PayoutStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	Recipient             string             `gorm:"column:recipient;type:varchar(255);not null" json:"recipient"`
	GatewayConversationID *string            `gorm:"column:gateway_conversation_id;type:varchar(128)" json:"gateway_conversation_id"`
	GatewayResponse       *datatypes.JSON    `gorm:"column:gateway_response;type:jsonb" json:"gateway_response"`
	FailureReason         *string            `gorm:"column:failure_reason;type:text" json:"failure_reason"`
	NeedsReview           bool               `gorm:"column:needs_review;not null;default:false" json:"needs_review"`
	InitiatedAt           time.Time          `gorm:"column:initiated_at" json:"initiated_at"`
	CompletedAt           *time.Time         `gorm:"column:completed_at" json:"completed_at"`
	FailedAt              *time.Time         `gorm:"column:failed_at" json:"failed_at"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

func (PayoutTransaction) TableName() string { return "payout_transaction" }
