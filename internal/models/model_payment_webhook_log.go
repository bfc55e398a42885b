package models

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentWebhookLogStatus string

const (
	PaymentWebhookLogStatusReceived     PaymentWebhookLogStatus = "received"
	PaymentWebhookLogStatusHandled      PaymentWebhookLogStatus = "handled"
	PaymentWebhookLogStatusHandleFailed PaymentWebhookLogStatus = "handle_failed"
)

type WebhookType string

const (
	WebhookTypeMpesaSTK WebhookType = "stk"
	WebhookTypeMpesaB2C WebhookType = "b2c"
	WebhookTypePayPal   WebhookType = "paypal"
)

// PaymentWebhookLog keeps every gateway callback as received, and the outcome of handling it.
type PaymentWebhookLog struct {
	ID          string                  `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider    string                  `gorm:"column:provider;type:varchar(64);not null" json:"provider"`
	WebhookType WebhookType             `gorm:"column:webhook_type;type:varchar(32);not null" json:"webhook_type"`
	Reference   string                  `gorm:"column:reference;type:varchar(128);index" json:"reference"`
	TraceID     string                  `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	ReceivedAt  time.Time               `gorm:"column:received_at" json:"received_at"`
	Data        datatypes.JSON          `gorm:"column:data;type:jsonb" json:"data"`
	Result      *datatypes.JSON         `gorm:"column:result;type:jsonb" json:"result"`
	Status      PaymentWebhookLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

func (PaymentWebhookLog) TableName() string { return "payment_webhook_log" }
