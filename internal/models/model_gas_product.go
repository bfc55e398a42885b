package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GasProduct struct {
	ID            string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	VendorID      string          `gorm:"column:vendor_id;type:uuid;not null;index" json:"vendor_id"`
	Name          string          `gorm:"column:name;type:varchar(255);not null" json:"name"`
	UnitPrice     decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null" json:"unit_price"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0" json:"stock_quantity"`
	IsActive      bool            `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (GasProduct) TableName() string { return "gas_product" }
