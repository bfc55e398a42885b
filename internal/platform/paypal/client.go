// Package paypal wraps the PayPal REST SDK for checkout orders, payouts and
// webhook verification.
package paypal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/pkg/apperr"
	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
	"github.com/fatflowers/marketplace/pkg/logctx"
)

const provider = "paypal"

var ErrWebhookSignature = errors.New("paypal webhook signature rejected")

type Client struct {
	api *paypal.Client
	cfg cfgpkg.PayPalConfig
	log *zap.SugaredLogger
}

// NewClient builds a client against apiBase. An empty apiBase picks sandbox
// or live from the config.
func NewClient(cfg cfgpkg.PayPalConfig, apiBase string, log *zap.SugaredLogger) (*Client, error) {
	if !cfg.Enabled() {
		return &Client{cfg: cfg, log: log}, nil
	}
	if apiBase == "" {
		apiBase = paypal.APIBaseLive
		if cfg.Sandbox {
			apiBase = paypal.APIBaseSandBox
		}
	}
	api, err := paypal.NewClient(cfg.ClientID, cfg.ClientSecret, apiBase)
	if err != nil {
		return nil, fmt.Errorf("init paypal client: %w", err)
	}
	return &Client{api: api, cfg: cfg, log: log}, nil
}

func New(cfg *cfgpkg.Config, log *zap.SugaredLogger) (*Client, error) {
	return NewClient(cfg.PayPal, "", log)
}

func (c *Client) Enabled() bool { return c != nil && c.api != nil }

// Currency is the currency PayPal amounts are sent in.
func (c *Client) Currency(fallback string) string {
	if c.cfg.Currency != "" {
		return strings.ToUpper(c.cfg.Currency)
	}
	return strings.ToUpper(fallback)
}

func (c *Client) requireEnabled() error {
	if !c.Enabled() {
		return apperr.Upstream(provider, errors.New("paypal is not configured"))
	}
	return nil
}

type CheckoutOrder struct {
	OrderID     string
	Status      string
	ApprovalURL string
	Raw         *paypal.Order
}

// CreateCheckoutOrder creates a CAPTURE order the customer approves on PayPal.
// referenceID comes back in webhooks as the purchase unit reference.
func (c *Client) CreateCheckoutOrder(ctx context.Context, referenceID string, amount decimal.Decimal, currency, description string) (*CheckoutOrder, error) {
	if err := c.requireEnabled(); err != nil {
		return nil, err
	}
	units := []paypal.PurchaseUnitRequest{
		{
			ReferenceID: referenceID,
			Amount: &paypal.PurchaseUnitAmount{
				Currency: strings.ToUpper(currency),
				Value:    amount.StringFixed(2),
			},
			Description: description,
		},
	}
	appCtx := &paypal.ApplicationContext{
		ReturnURL: c.cfg.ReturnURL,
		CancelURL: c.cfg.CancelURL,
	}
	order, err := c.api.CreateOrder(ctx, "CAPTURE", units, nil, appCtx)
	if err != nil {
		return nil, apperr.Upstream(provider, fmt.Errorf("create order: %w", err))
	}
	out := &CheckoutOrder{OrderID: order.ID, Status: order.Status, Raw: order}
	for _, l := range order.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			out.ApprovalURL = l.Href
			break
		}
	}
	if out.ApprovalURL == "" {
		return nil, apperr.Upstream(provider, fmt.Errorf("order %s has no approval link", order.ID))
	}
	logctx.FromCtx(ctx, c.log).Infow("paypal_order_created", "order_id", order.ID, "reference_id", referenceID)
	return out, nil
}

// CaptureOrder captures an approved order and reports whether the money moved.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (bool, *paypal.CaptureOrderResponse, error) {
	if err := c.requireEnabled(); err != nil {
		return false, nil, err
	}
	resp, err := c.api.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return false, nil, apperr.Upstream(provider, fmt.Errorf("capture order %s: %w", orderID, err))
	}
	return resp.Status == "COMPLETED", resp, nil
}

type PayoutResult struct {
	BatchID     string
	BatchStatus string
	Raw         *paypal.PayoutResponse
}

// SendPayout sends one payout item to a PayPal email. senderItemID comes back
// in payout item webhooks.
func (c *Client) SendPayout(ctx context.Context, senderItemID, email string, amount decimal.Decimal, currency, note string) (*PayoutResult, error) {
	if err := c.requireEnabled(); err != nil {
		return nil, err
	}
	if email == "" {
		return nil, apperr.Validation("paypal payout needs a receiver email")
	}
	resp, err := c.api.CreatePayout(ctx, paypal.Payout{
		SenderBatchHeader: &paypal.SenderBatchHeader{
			SenderBatchID: senderItemID,
			EmailSubject:  "You have a payout",
		},
		Items: []paypal.PayoutItem{
			{
				RecipientType: "EMAIL",
				Receiver:      email,
				Amount: &paypal.AmountPayout{
					Currency: strings.ToUpper(currency),
					Value:    amount.StringFixed(2),
				},
				Note:         note,
				SenderItemID: senderItemID,
			},
		},
	})
	if err != nil {
		return nil, apperr.Upstream(provider, fmt.Errorf("create payout: %w", err))
	}
	out := &PayoutResult{Raw: resp}
	if resp.BatchHeader != nil {
		out.BatchID = resp.BatchHeader.PayoutBatchID
		out.BatchStatus = resp.BatchHeader.BatchStatus
	}
	logctx.FromCtx(ctx, c.log).Infow("paypal_payout_sent", "sender_item_id", senderItemID, "batch_id", out.BatchID)
	return out, nil
}

// VerifyWebhook asks PayPal to verify the transmission headers of r. Without a
// configured webhook id verification is skipped.
func (c *Client) VerifyWebhook(ctx context.Context, r *http.Request) error {
	if c.cfg.WebhookID == "" {
		return nil
	}
	if err := c.requireEnabled(); err != nil {
		return err
	}
	resp, err := c.api.VerifyWebhookSignature(ctx, r, c.cfg.WebhookID)
	if err != nil {
		return apperr.Upstream(provider, fmt.Errorf("verify webhook: %w", err))
	}
	if resp.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("%w: %s", ErrWebhookSignature, resp.VerificationStatus)
	}
	return nil
}

var Module = fx.Options(
	fx.Provide(New),
)
