package handlers

import (
	"github.com/fatflowers/marketplace/internal/app/service/ledger"
	"github.com/fatflowers/marketplace/internal/app/service/payment"
	"github.com/fatflowers/marketplace/internal/app/service/payout"
	"github.com/fatflowers/marketplace/internal/app/service/reconcile"
	"github.com/fatflowers/marketplace/internal/app/service/statistics"
	"github.com/fatflowers/marketplace/internal/app/service/webhook"
	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/response"
	"github.com/fatflowers/marketplace/pkg/types"
)

// The Resp* types only document the envelope of each endpoint for swag.

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespOrder struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Order             `json:"data"`
}

type RespOrderTracking struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.OrderTracking   `json:"data"`
}

type RespInitiatePayment struct {
	Code    response.APIResponseCode      `json:"code"`
	Message string                        `json:"message"`
	Data    payment.InitiatePaymentResult `json:"data"`
}

type RespPayment struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Payment           `json:"data"`
}

type RespListPayments struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    payment.ScanPaymentsResponse `json:"data"`
}

type RespCallbackOutcome struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment.CallbackOutcome  `json:"data"`
}

type RespListPayoutRequests struct {
	Code    response.APIResponseCode               `json:"code"`
	Message string                                 `json:"message"`
	Data    types.ScanResult[models.PayoutRequest] `json:"data"`
}

type RespListPayouts struct {
	Code    response.APIResponseCode                   `json:"code"`
	Message string                                     `json:"message"`
	Data    types.ScanResult[models.PayoutTransaction] `json:"data"`
}

type RespListEarnings struct {
	Code    response.APIResponseCode               `json:"code"`
	Message string                                 `json:"message"`
	Data    types.ScanResult[models.VendorEarning] `json:"data"`
}

type RespListWebhookLogs struct {
	Code    response.APIResponseCode                   `json:"code"`
	Message string                                     `json:"message"`
	Data    types.ScanResult[models.PaymentWebhookLog] `json:"data"`
}

type RespVendorPayoutSummaries struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    []payout.VendorPayoutSummary `json:"data"`
}

type RespPayout struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.PayoutTransaction `json:"data"`
}

type RespPayoutRequest struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.PayoutRequest     `json:"data"`
}

type RespBulkProcess struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payout.BulkProcessResult `json:"data"`
}

type RespLedgerSnapshot struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ledger.Snapshot          `json:"data"`
}

type RespReconcileReport struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ledger.ReconcileReport   `json:"data"`
}

type RespAdjustment struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    AdjustmentResponse       `json:"data"`
}

type RespCommissionSummary struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.CommissionSummary `json:"data"`
}

type RespCommissionSummaries struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    []models.CommissionSummary `json:"data"`
}

type RespRevenueReport struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    statistics.RevenueReport `json:"data"`
}

type RespStatistic struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    statistics.StatisticResponse `json:"data"`
}

type RespStuck struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []reconcile.StuckItem    `json:"data"`
}

type RespWebhookResult struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    webhook.Result           `json:"data"`
}
