package payout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/marketplace/internal/platform/mpesa"
	"github.com/fatflowers/marketplace/internal/platform/paypal"
	"github.com/fatflowers/marketplace/pkg/types"
)

type mpesaDisbursement struct {
	client *mpesa.Client
}

// NewMpesaDisbursement returns nil when M-Pesa is not configured.
func NewMpesaDisbursement(c *mpesa.Client) DisbursementGateway {
	if !c.Enabled() {
		return nil
	}
	return &mpesaDisbursement{client: c}
}

func (g *mpesaDisbursement) Method() types.PayoutMethod { return types.PayoutMethodMpesa }

// PayableAmount drops cents; B2C only moves whole shillings.
func (g *mpesaDisbursement) PayableAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Truncate(0)
}

func (g *mpesaDisbursement) Disburse(ctx context.Context, req *DisbursementRequest) (*DisbursementAck, error) {
	resp, err := g.client.B2C(ctx, &mpesa.B2CRequest{
		OriginatorConversationID: req.Reference,
		Phone:                    req.Recipient,
		Amount:                   req.Amount,
		Remarks:                  req.Remarks,
		Occasion:                 "payout " + req.PayoutID,
	})
	if err != nil {
		return nil, err
	}
	return &DisbursementAck{ConversationID: resp.ConversationID, Raw: resp}, nil
}

type paypalDisbursement struct {
	client *paypal.Client
}

// NewPayPalDisbursement returns nil when PayPal is not configured.
func NewPayPalDisbursement(c *paypal.Client) DisbursementGateway {
	if !c.Enabled() {
		return nil
	}
	return &paypalDisbursement{client: c}
}

func (g *paypalDisbursement) Method() types.PayoutMethod { return types.PayoutMethodPayPal }

func (g *paypalDisbursement) Disburse(ctx context.Context, req *DisbursementRequest) (*DisbursementAck, error) {
	res, err := g.client.SendPayout(ctx, req.Reference, req.Recipient, req.Amount, g.client.Currency(req.Currency), req.Remarks)
	if err != nil {
		return nil, err
	}
	return &DisbursementAck{
		ConversationID: res.BatchID,
		Raw:            map[string]any{"batch_id": res.BatchID, "batch_status": res.BatchStatus},
	}, nil
}
