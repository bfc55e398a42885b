package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/marketplace/pkg/types"
)

// Order is a customer purchase from a single vendor.
type Order struct {
	ID              string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CustomerID      string                   `gorm:"column:customer_id;type:varchar(64);not null;index" json:"customer_id"`
	VendorID        string                   `gorm:"column:vendor_id;type:uuid;not null;index" json:"vendor_id"`
	OrderType       types.OrderType          `gorm:"column:order_type;type:varchar(32);not null" json:"order_type"`
	Quantity        int                      `gorm:"column:quantity;not null;default:1" json:"quantity"`
	UnitPrice       decimal.Decimal          `gorm:"column:unit_price;type:numeric(14,2);not null" json:"unit_price"`
	TotalAmount     decimal.Decimal          `gorm:"column:total_amount;type:numeric(14,2);not null" json:"total_amount"`
	Status          types.OrderStatus        `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	PaymentStatus   types.OrderPaymentStatus `gorm:"column:payment_status;type:varchar(32);not null" json:"payment_status"`
	CommissionRate  decimal.Decimal          `gorm:"column:commission_rate;type:numeric(5,2);not null" json:"commission_rate"`
	VendorEarnings  decimal.Decimal          `gorm:"column:vendor_earnings;type:numeric(14,2);not null;default:0" json:"vendor_earnings"`
	Priority        types.OrderPriority      `gorm:"column:priority;type:varchar(16);not null" json:"priority"`
	DeliveryType    types.DeliveryType       `gorm:"column:delivery_type;type:varchar(16);not null" json:"delivery_type"`
	DeliveryAddress *string                  `gorm:"column:delivery_address;type:text" json:"delivery_address"`
	Notes           *string                  `gorm:"column:notes;type:text" json:"notes"`
	ConfirmedAt     *time.Time               `gorm:"column:confirmed_at" json:"confirmed_at"`
	CompletedAt     *time.Time               `gorm:"column:completed_at" json:"completed_at"`
	CancelledAt     *time.Time               `gorm:"column:cancelled_at" json:"cancelled_at"`
	Items           []OrderItem              `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// ExpectedTotal is unit_price * quantity, or the sum of line subtotals for mixed orders.
func (o *Order) ExpectedTotal() decimal.Decimal {
	if o.OrderType != types.OrderTypeMixed {
		return o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
	}
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal)
	}
	return total
}
