package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/fatflowers/marketplace/pkg/types"
)

// Payment is the single checkout attempt attached to an order.
// CommissionAmount and VendorEarnings are written once, by the commission
// calculator, when the payment completes.
type Payment struct {
	ID                string                    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	OrderID           string                    `gorm:"column:order_id;type:uuid;not null;uniqueIndex" json:"order_id"`
	VendorID          string                    `gorm:"column:vendor_id;type:uuid;not null;index" json:"vendor_id"`
	Amount            decimal.Decimal           `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Currency          string                    `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	PaymentMethod     types.PaymentMethod       `gorm:"column:payment_method;type:varchar(32);not null" json:"payment_method"`
	Status            types.PaymentStatus       `gorm:"column:status;type:varchar(32);not null;index:idx_payment_status_updated_at,priority:1" json:"status"`
	CommissionRate    decimal.Decimal           `gorm:"column:commission_rate;type:numeric(5,2);not null" json:"commission_rate"`
	CommissionAmount  decimal.Decimal           `gorm:"column:commission_amount;type:numeric(14,2);not null;default:0" json:"commission_amount"`
	VendorEarnings    decimal.Decimal           `gorm:"column:vendor_earnings;type:numeric(14,2);not null;default:0" json:"vendor_earnings"`
	PayoutStatus      types.PaymentPayoutStatus `gorm:"column:payout_status;type:varchar(32);not null" json:"payout_status"`
	PhoneOrAccount    string                    `gorm:"column:phone_or_account;type:varchar(255)" json:"phone_or_account"`
	ExternalReference *string                   `gorm:"column:external_reference;type:varchar(128);uniqueIndex" json:"external_reference"`
	ReceiptNumber     *string                   `gorm:"column:receipt_number;type:varchar(128)" json:"receipt_number"`
	GatewayResponse   *datatypes.JSON           `gorm:"column:gateway_response;type:jsonb" json:"gateway_response"`
	CallbackMetadata  *datatypes.JSON           `gorm:"column:callback_metadata;type:jsonb" json:"callback_metadata"`
	FailureReason     *string                   `gorm:"column:failure_reason;type:text" json:"failure_reason"`
	NeedsReview       bool                      `gorm:"column:needs_review;not null;default:false" json:"needs_review"`
	CompletedAt       *time.Time                `gorm:"column:completed_at" json:"completed_at"`
	FailedAt          *time.Time                `gorm:"column:failed_at" json:"failed_at"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `gorm:"index:idx_payment_status_updated_at,priority:2" json:"updated_at"`
}

func (Payment) TableName() string { return "payment" }
