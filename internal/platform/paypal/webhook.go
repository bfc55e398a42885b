package paypal

import (
	"encoding/json"

	"github.com/fatflowers/marketplace/pkg/apperr"
)

const (
	EventCheckoutOrderApproved = "CHECKOUT.ORDER.APPROVED"
	EventCaptureCompleted      = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied         = "PAYMENT.CAPTURE.DENIED"
	EventPayoutItemSucceeded   = "PAYMENT.PAYOUTS-ITEM.SUCCEEDED"
	EventPayoutItemFailed      = "PAYMENT.PAYOUTS-ITEM.FAILED"
	EventPayoutItemReturned    = "PAYMENT.PAYOUTS-ITEM.RETURNED"
	EventPayoutItemBlocked     = "PAYMENT.PAYOUTS-ITEM.BLOCKED"
	EventPayoutItemDenied      = "PAYMENT.PAYOUTS-ITEM.DENIED"
	EventPayoutItemCanceled    = "PAYMENT.PAYOUTS-ITEM.CANCELED"
)

type WebhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Summary      string          `json:"summary"`
	Resource     json.RawMessage `json:"resource"`
}

type webhookResource struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
	PayoutItem struct {
		SenderItemID string `json:"sender_item_id"`
	} `json:"payout_item"`
	PayoutItemID      string `json:"payout_item_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	Errors            *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Kind groups event types by what they settle.
type Kind string

const (
	KindOrderApproved Kind = "order_approved"
	KindCapture       Kind = "capture"
	KindPayoutItem    Kind = "payout_item"
	KindIgnored       Kind = "ignored"
)

// Notification is a webhook event reduced to a reference and an outcome.
type Notification struct {
	EventID   string
	EventType string
	Kind      Kind
	// Reference is the PayPal order id for checkout events and our
	// sender_item_id for payout events.
	Reference string
	Success   bool
	Detail    string
	Resource  map[string]any
}

// ParseWebhook decodes a webhook body.
func ParseWebhook(body []byte) (*Notification, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, apperr.Validation("invalid paypal webhook: %v", err)
	}
	if evt.EventType == "" {
		return nil, apperr.Validation("paypal webhook without event_type")
	}
	var res webhookResource
	if len(evt.Resource) > 0 {
		if err := json.Unmarshal(evt.Resource, &res); err != nil {
			return nil, apperr.Validation("invalid paypal webhook resource: %v", err)
		}
	}
	n := &Notification{EventID: evt.ID, EventType: evt.EventType, Kind: KindIgnored}
	_ = json.Unmarshal(evt.Resource, &n.Resource)

	switch evt.EventType {
	case EventCheckoutOrderApproved:
		n.Kind, n.Reference, n.Success = KindOrderApproved, res.ID, true
	case EventCaptureCompleted, EventCaptureDenied:
		n.Kind = KindCapture
		n.Reference = res.SupplementaryData.RelatedIDs.OrderID
		n.Success = evt.EventType == EventCaptureCompleted
		n.Detail = res.Status
	case EventPayoutItemSucceeded, EventPayoutItemFailed, EventPayoutItemReturned,
		EventPayoutItemBlocked, EventPayoutItemDenied, EventPayoutItemCanceled:
		n.Kind = KindPayoutItem
		n.Reference = res.PayoutItem.SenderItemID
		n.Success = evt.EventType == EventPayoutItemSucceeded
		n.Detail = res.TransactionStatus
		if res.Errors != nil && res.Errors.Message != "" {
			n.Detail = res.Errors.Name + ": " + res.Errors.Message
		}
	default:
		return n, nil
	}
	if n.Reference == "" {
		return nil, apperr.Validation("paypal %s webhook without reference", evt.EventType)
	}
	return n, nil
}
