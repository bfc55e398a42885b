package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paypalsdk "github.com/plutov/paypal/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/marketplace/internal/app/service/payment"
	"github.com/fatflowers/marketplace/internal/app/service/payout"
	"github.com/fatflowers/marketplace/internal/app/service/webhook_log"
	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/internal/platform/paypal"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/types"
)

// OrderCapturer captures approved PayPal checkout orders.
type OrderCapturer interface {
	CaptureOrder(ctx context.Context, orderID string) (bool, *paypalsdk.CaptureOrderResponse, error)
}

type Result struct {
	Kind      string `json:"kind"`
	Branch    string `json:"branch"`
	Reference string `json:"reference,omitempty"`
}

type Handler struct {
	logs     *webhook_log.Service
	payments payment.PaymentManager
	payouts  payout.PayoutManager
	capturer OrderCapturer
	Logger   *zap.SugaredLogger
}

func NewHandler(logs *webhook_log.Service, payments payment.PaymentManager, payouts payout.PayoutManager, capturer OrderCapturer, log *zap.SugaredLogger) *Handler {
	return &Handler{logs: logs, payments: payments, payouts: payouts, capturer: capturer, Logger: log}
}

// Handle parses a webhook body and applies it. Every body is logged as
// received, then as handled or handle_failed together with the result.
func (h *Handler) Handle(ctx context.Context, t models.WebhookType, body []byte) (res *Result, resErr error) {
	log := logctx.FromCtx(ctx, h.Logger).With("webhook_type", t)
	data := datatypes.JSON(rawData(body))
	entry := func(n *Notification, status models.PaymentWebhookLogStatus) *models.PaymentWebhookLog {
		e := &models.PaymentWebhookLog{
			WebhookType: t,
			TraceID:     logctx.TraceID(ctx),
			ReceivedAt:  time.Now(),
			Data:        data,
			Status:      status,
		}
		if n != nil {
			e.Provider, e.Reference = string(n.Provider), n.Reference
		}
		return e
	}

	n, err := Parse(t, body)
	if err != nil {
		log.Warnw("webhook_parse_failed", "error", err.Error())
		failed := entry(nil, models.PaymentWebhookLogStatusHandleFailed)
		failed.Provider = string(providerOf(t))
		failed.Result = resultJSON(nil, err)
		h.logs.Save(ctx, failed)
		return nil, err
	}
	h.logs.Save(ctx, entry(n, models.PaymentWebhookLogStatusReceived))

	defer func() {
		status := models.PaymentWebhookLogStatusHandled
		if resErr != nil {
			status = models.PaymentWebhookLogStatusHandleFailed
		}
		done := entry(n, status)
		done.Result = resultJSON(res, resErr)
		h.logs.Save(ctx, done)
	}()

	switch {
	case n.Payment != nil:
		out, err := h.payments.HandlePaymentCallback(ctx, n.Payment)
		res = &Result{Kind: "payment", Reference: n.Reference}
		if out != nil {
			res.Branch = string(out.Branch)
		}
		return res, err
	case n.Payout != nil:
		out, err := h.payouts.HandlePayoutCallback(ctx, n.Payout)
		res = &Result{Kind: "payout", Reference: n.Reference}
		if out != nil {
			res.Branch = string(out.Branch)
		}
		return res, err
	case n.CaptureOrderID != "":
		return h.capture(ctx, n)
	default:
		log.Infow("webhook_ignored", "event_type", n.EventType)
		return &Result{Kind: "ignored", Branch: "ignored", Reference: n.Reference}, nil
	}
}

// Replay applies the body of a logged webhook again. Callback handling is
// idempotent, so replaying a log that was already applied only reports the
// duplicate branch.
func (h *Handler) Replay(ctx context.Context, logID string) (*Result, error) {
	entry, err := h.logs.Get(ctx, logID)
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, h.Logger).Infow("webhook_replay", "webhook_log_id", entry.ID, "webhook_type", entry.WebhookType, "reference", entry.Reference)
	return h.Handle(ctx, entry.WebhookType, entry.Data)
}

// capture captures an approved PayPal order and completes its payment from the capture status.
func (h *Handler) capture(ctx context.Context, n *Notification) (*Result, error) {
	res := &Result{Kind: "payment", Reference: n.CaptureOrderID}
	if h.capturer == nil {
		return res, fmt.Errorf("paypal order %s approved but paypal is not configured", n.CaptureOrderID)
	}
	completed, resp, err := h.capturer.CaptureOrder(ctx, n.CaptureOrderID)
	if err != nil {
		return res, err
	}
	status := ""
	if resp != nil {
		status = resp.Status
	}
	out, err := h.payments.HandlePaymentCallback(ctx, &payment.CallbackResult{
		Provider:          types.CallbackProviderPayPal,
		ExternalReference: n.CaptureOrderID,
		Success:           completed,
		ResultCode:        status,
		ResultDesc:        "paypal capture " + status,
		ReceiptNumber:     n.CaptureOrderID,
		Metadata:          map[string]any{"event_type": n.EventType, "capture_status": status},
	})
	if out != nil {
		res.Branch = string(out.Branch)
	}
	return res, err
}

func providerOf(t models.WebhookType) types.CallbackProvider {
	if t == models.WebhookTypePayPal {
		return types.CallbackProviderPayPal
	}
	return types.CallbackProviderMpesa
}

func resultJSON(res *Result, err error) *datatypes.JSON {
	m := map[string]any{"result": res}
	if err != nil {
		m["error"] = err.Error()
	}
	b, _ := json.Marshal(m)
	j := datatypes.JSON(b)
	return &j
}

// newCapturer hands the PayPal client to the handler only when it is configured.
func newCapturer(c *paypal.Client) OrderCapturer {
	if !c.Enabled() {
		return nil
	}
	return c
}

var Module = fx.Options(
	fx.Provide(newCapturer),
	fx.Provide(NewHandler),
)
