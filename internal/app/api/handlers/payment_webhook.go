package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/internal/app/service/webhook"
	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/response"
)

// WebhookProcessor applies a raw gateway callback body.
type WebhookProcessor interface {
	Handle(ctx context.Context, t models.WebhookType, body []byte) (*webhook.Result, error)
}

// WebhookVerifier checks the transmission signature of a PayPal webhook.
type WebhookVerifier interface {
	VerifyWebhook(ctx context.Context, r *http.Request) error
}

// MpesaAck is the body Daraja expects back from a callback URL.
type MpesaAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var mpesaAccepted = MpesaAck{ResultCode: 0, ResultDesc: "Accepted"}

func mpesaWebhook(h WebhookProcessor, t models.WebhookType, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			logctx.FromGin(c, log).Errorw("webhook_read_failed", "webhook_type", t, "error", err.Error())
			c.JSON(http.StatusOK, mpesaAccepted)
			return
		}
		// Daraja does not act on our answer. Failures stay in the webhook log.
		if _, err := h.Handle(c.Request.Context(), t, body); err != nil {
			logctx.FromGin(c, log).Warnw("webhook_not_applied", "webhook_type", t, "error", err.Error())
		}
		c.JSON(http.StatusOK, mpesaAccepted)
	}
}

// @Summary      M-Pesa STK Callback
// @Description  Receives the Daraja STK push result. Requires the token issued in the callback URL. Always acknowledged.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        token    query  string  true  "Callback token"
// @Param        payload  body   object  true  "Daraja stkCallback envelope"
// @Success      200  {object}  handlers.MpesaAck
// @Router       /api/v1/webhooks/mpesa/stk [post]
func ApiMpesaSTKWebhook(h WebhookProcessor, log *zap.SugaredLogger) gin.HandlerFunc {
	return mpesaWebhook(h, models.WebhookTypeMpesaSTK, log)
}

// @Summary      M-Pesa B2C Result
// @Description  Receives the Daraja B2C result of a vendor payout. Requires the token issued in the callback URL. Always acknowledged.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        token    query  string  true  "Callback token"
// @Param        payload  body   object  true  "Daraja Result envelope"
// @Success      200  {object}  handlers.MpesaAck
// @Router       /api/v1/webhooks/mpesa/b2c [post]
func ApiMpesaB2CWebhook(h WebhookProcessor, log *zap.SugaredLogger) gin.HandlerFunc {
	return mpesaWebhook(h, models.WebhookTypeMpesaB2C, log)
}

// @Summary      PayPal Webhook
// @Description  Receives PayPal checkout, capture and payout item events. The signature is verified with PayPal first. Unexpected failures answer 500 so PayPal redelivers.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        payload  body  object  true  "PayPal webhook event"
// @Success      200  {object}  handlers.RespWebhookResult
// @Router       /api/v1/webhooks/paypal [post]
func ApiPayPalWebhook(h WebhookProcessor, verifier WebhookVerifier, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		if verifier != nil {
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			if err := verifier.VerifyWebhook(c.Request.Context(), c.Request); err != nil {
				logctx.FromGin(c, log).Warnw("paypal_webhook_rejected", "error", err.Error())
				c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
		}
		res, err := h.Handle(c.Request.Context(), models.WebhookTypePayPal, body)
		if err != nil {
			if code := codeOf(err); code == response.APIResponseCodeError || code == response.APIResponseCodeUpstream {
				logctx.FromGin(c, log).Errorw("paypal_webhook_failed", "error", err.Error())
				c.JSON(http.StatusInternalServerError, response.ErrorT[any](code, err.Error()))
				return
			}
			writeError(c, log, err)
			return
		}
		ok(c, res)
	}
}

// RegisterWebhookRoutes mounts the gateway callbacks. M-Pesa routes sit
// behind mpesaAuth, the callback token check.
func RegisterWebhookRoutes(r gin.IRouter, h WebhookProcessor, verifier WebhookVerifier, mpesaAuth gin.HandlerFunc, log *zap.SugaredLogger) {
	mp := r.Group("/mpesa")
	if mpesaAuth != nil {
		mp.Use(mpesaAuth)
	}
	mp.POST("/stk", ApiMpesaSTKWebhook(h, log))
	mp.POST("/b2c", ApiMpesaB2CWebhook(h, log))
	r.POST("/paypal", ApiPayPalWebhook(h, verifier, log))
}
