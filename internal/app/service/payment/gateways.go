package payment

import (
	"context"

	"github.com/fatflowers/marketplace/internal/platform/mpesa"
	"github.com/fatflowers/marketplace/internal/platform/paypal"
	"github.com/fatflowers/marketplace/pkg/types"
)

type mpesaCheckout struct {
	client *mpesa.Client
}

// NewMpesaCheckout returns nil when M-Pesa is not configured.
func NewMpesaCheckout(c *mpesa.Client) CheckoutGateway {
	if !c.Enabled() {
		return nil
	}
	return &mpesaCheckout{client: c}
}

func (g *mpesaCheckout) Method() types.PaymentMethod { return types.PaymentMethodMpesa }

func (g *mpesaCheckout) Initiate(ctx context.Context, req *CheckoutRequest) (*CheckoutAck, error) {
	resp, err := g.client.STKPush(ctx, &mpesa.STKPushRequest{
		Phone:            req.PhoneOrAccount,
		Amount:           req.Amount,
		AccountReference: "ORDER" + req.OrderID,
		Description:      req.Description,
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutAck{ExternalReference: resp.CheckoutRequestID, Raw: resp}, nil
}

type paypalCheckout struct {
	client *paypal.Client
}

// NewPayPalCheckout returns nil when PayPal is not configured.
func NewPayPalCheckout(c *paypal.Client) CheckoutGateway {
	if !c.Enabled() {
		return nil
	}
	return &paypalCheckout{client: c}
}

func (g *paypalCheckout) Method() types.PaymentMethod { return types.PaymentMethodPayPal }

func (g *paypalCheckout) Initiate(ctx context.Context, req *CheckoutRequest) (*CheckoutAck, error) {
	order, err := g.client.CreateCheckoutOrder(ctx, req.PaymentID, req.Amount, g.client.Currency(req.Currency), req.Description)
	if err != nil {
		return nil, err
	}
	return &CheckoutAck{
		ExternalReference: order.OrderID,
		ApprovalURL:       order.ApprovalURL,
		Raw:               map[string]any{"order_id": order.OrderID, "status": order.Status, "approval_url": order.ApprovalURL},
	}, nil
}
