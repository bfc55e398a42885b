package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/types"
)

// OrderItem is one line of an order. Kind and RefID together identify what was
// bought; there is no separate column per referenced table.
type OrderItem struct {
	ID        string             `gorm:"column:id;type:uuid;primary_key" json:"id"`
	OrderID   string             `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	Kind      types.LineItemKind `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	RefID     string             `gorm:"column:ref_id;type:varchar(64);not null" json:"ref_id"`
	Quantity  int                `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice decimal.Decimal    `gorm:"column:unit_price;type:numeric(14,2);not null" json:"unit_price"`
	Subtotal  decimal.Decimal    `gorm:"column:subtotal;type:numeric(14,2);not null" json:"subtotal"`
	CreatedAt time.Time          `json:"created_at"`
}

func (OrderItem) TableName() string { return "order_item" }

// ServiceLine builds a line referencing a roadside service.
func ServiceLine(serviceID string, quantity int, unitPrice decimal.Decimal) OrderItem {
	return newLine(types.LineItemKindService, serviceID, quantity, unitPrice)
}

// GasProductLine builds a line referencing a stocked gas product.
func GasProductLine(productID string, quantity int, unitPrice decimal.Decimal) OrderItem {
	return newLine(types.LineItemKindGasProduct, productID, quantity, unitPrice)
}

func newLine(kind types.LineItemKind, ref string, quantity int, unitPrice decimal.Decimal) OrderItem {
	return OrderItem{
		Kind:      kind,
		RefID:     ref,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

func (i *OrderItem) Validate() error {
	switch i.Kind {
	case types.LineItemKindService, types.LineItemKindGasProduct:
	default:
		return apperr.Validation("unknown line item kind %q", i.Kind)
	}
	if i.RefID == "" {
		return apperr.Validation("%s line item without reference", i.Kind)
	}
	if i.Quantity <= 0 {
		return apperr.Validation("line item quantity must be positive, got %d", i.Quantity)
	}
	if i.UnitPrice.IsNegative() {
		return apperr.Validation("line item unit price must not be negative")
	}
	return nil
}
