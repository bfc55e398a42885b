package models

import (
	"time"

	"github.com/fatflowers/marketplace/pkg/types"
)

// OrderTracking records every status change of an order.
type OrderTracking struct {
	ID        string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	OrderID   string            `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	Status    types.OrderStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Note      string            `gorm:"column:note;type:text" json:"note"`
	CreatedAt time.Time         `json:"created_at"`
}

func (OrderTracking) TableName() string { return "order_tracking" }
