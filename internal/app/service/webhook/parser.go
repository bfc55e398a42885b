package webhook

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cast"

	"github.com/fatflowers/marketplace/internal/app/service/payment"
	"github.com/fatflowers/marketplace/internal/app/service/payout"
	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/internal/platform/mpesa"
	"github.com/fatflowers/marketplace/internal/platform/paypal"
	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/types"
)

// Notification is a gateway webhook reduced to what the intake dispatches on.
// At most one of Payment, Payout and CaptureOrderID is set; none means ignored.
type Notification struct {
	Provider  types.CallbackProvider
	Type      models.WebhookType
	EventType string
	Reference string
	Payment   *payment.CallbackResult
	Payout    *payout.PayoutCallbackResult
	// CaptureOrderID is an approved PayPal order that still has to be captured.
	CaptureOrderID string
}

func (n *Notification) Ignored() bool {
	return n.Payment == nil && n.Payout == nil && n.CaptureOrderID == ""
}

// Parse decodes body according to the webhook route it arrived on.
func Parse(t models.WebhookType, body []byte) (*Notification, error) {
	switch t {
	case models.WebhookTypeMpesaSTK:
		return parseMpesaSTK(body)
	case models.WebhookTypeMpesaB2C:
		return parseMpesaB2C(body)
	case models.WebhookTypePayPal:
		return parsePayPal(body)
	default:
		return nil, apperr.Validation("unsupported webhook type: %s", t)
	}
}

func parseMpesaSTK(body []byte) (*Notification, error) {
	cb, err := mpesa.ParseSTKCallback(body)
	if err != nil {
		return nil, err
	}
	return &Notification{
		Provider:  types.CallbackProviderMpesa,
		Type:      models.WebhookTypeMpesaSTK,
		Reference: cb.CheckoutRequestID,
		Payment: &payment.CallbackResult{
			Provider:          types.CallbackProviderMpesa,
			ExternalReference: cb.CheckoutRequestID,
			Success:           cb.Success(),
			ResultCode:        strconv.Itoa(cb.ResultCode),
			ResultDesc:        cb.ResultDesc,
			ReceiptNumber:     cb.ReceiptNumber(),
			Metadata:          cb.Metadata(),
		},
	}, nil
}

func parseMpesaB2C(body []byte) (*Notification, error) {
	res, err := mpesa.ParseB2CResult(body)
	if err != nil {
		return nil, err
	}
	return &Notification{
		Provider:  types.CallbackProviderMpesa,
		Type:      models.WebhookTypeMpesaB2C,
		Reference: res.OriginatorConversationID,
		Payout: &payout.PayoutCallbackResult{
			Provider:          types.CallbackProviderMpesa,
			ExternalReference: res.OriginatorConversationID,
			Success:           res.Success(),
			ResultCode:        strconv.Itoa(res.ResultCode),
			ResultDesc:        res.ResultDesc,
			ConversationID:    res.ConversationID,
			Metadata:          res.Parameters(),
		},
	}, nil
}

func parsePayPal(body []byte) (*Notification, error) {
	pn, err := paypal.ParseWebhook(body)
	if err != nil {
		return nil, err
	}
	n := &Notification{
		Provider:  types.CallbackProviderPayPal,
		Type:      models.WebhookTypePayPal,
		EventType: pn.EventType,
		Reference: pn.Reference,
	}
	desc := pn.Detail
	if desc == "" {
		desc = pn.EventType
	}
	switch pn.Kind {
	case paypal.KindOrderApproved:
		n.CaptureOrderID = pn.Reference
	case paypal.KindCapture:
		n.Payment = &payment.CallbackResult{
			Provider:          types.CallbackProviderPayPal,
			ExternalReference: pn.Reference,
			Success:           pn.Success,
			ResultCode:        pn.EventType,
			ResultDesc:        desc,
			ReceiptNumber:     cast.ToString(pn.Resource["id"]),
			Metadata:          pn.Resource,
		}
	case paypal.KindPayoutItem:
		n.Payout = &payout.PayoutCallbackResult{
			Provider:          types.CallbackProviderPayPal,
			ExternalReference: pn.Reference,
			Success:           pn.Success,
			ResultCode:        pn.EventType,
			ResultDesc:        desc,
			ConversationID:    cast.ToString(pn.Resource["payout_batch_id"]),
			Metadata:          pn.Resource,
		}
	}
	return n, nil
}

// rawData keeps the body as JSON for the log, wrapping it when it is not JSON.
func rawData(body []byte) []byte {
	if json.Valid(body) {
		return body
	}
	b, _ := json.Marshal(map[string]string{"raw": string(body)})
	return b
}
