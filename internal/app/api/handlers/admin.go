package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/internal/app/service/ledger"
	"github.com/fatflowers/marketplace/internal/app/service/payment"
	"github.com/fatflowers/marketplace/internal/app/service/payout"
	"github.com/fatflowers/marketplace/internal/app/service/reconcile"
	"github.com/fatflowers/marketplace/internal/app/service/statistics"
	"github.com/fatflowers/marketplace/internal/app/service/webhook"
	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/types"
)

// StatisticsService is the part of statistics.Service the admin API uses.
type StatisticsService interface {
	GenerateCommissionSummary(ctx context.Context, period types.PeriodType, now time.Time) (*models.CommissionSummary, error)
	ListCommissionSummaries(ctx context.Context, period types.PeriodType, limit int) ([]*models.CommissionSummary, error)
	ExportCommissionSummaries(ctx context.Context, period types.PeriodType, limit int) ([]byte, error)
	RevenueReport(ctx context.Context, days int, now time.Time) (*statistics.RevenueReport, error)
	GetDailyStatistic(ctx context.Context, request *statistics.StatisticRequest) (*statistics.StatisticResponse, error)
}

type StuckLister interface {
	ListStuck(ctx context.Context) ([]*reconcile.StuckItem, error)
}

type WebhookLogService interface {
	Scan(ctx context.Context, req *types.ScanRequest) (*types.ScanResult[models.PaymentWebhookLog], error)
}

// WebhookReplayer applies a logged webhook body again.
type WebhookReplayer interface {
	Replay(ctx context.Context, logID string) (*webhook.Result, error)
}

// Admin groups the services behind /api/v1/admin.
type Admin struct {
	Payments payment.PaymentManager
	Payouts  payout.PayoutManager
	Stats    StatisticsService
	Ledger   LedgerService
	Stuck    StuckLister
	Logs     WebhookLogService
	Replayer WebhookReplayer
	Log      *zap.SugaredLogger
	Now      func() time.Time
}

func (a *Admin) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

type ConfirmCashRequest struct {
	Receipt string `json:"receipt"`
}

type ApprovePayoutRequestRequest struct {
	ApprovedBy string `json:"approved_by" binding:"required"`
}

type RejectPayoutRequestRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type BulkProcessRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

type GenerateSummaryRequest struct {
	PeriodType types.PeriodType `json:"period_type" binding:"required"`
}

type ReconcileVendorRequest struct {
	// Apply overwrites drifted counters with the values computed from history.
	Apply bool `json:"apply"`
}

type AdjustmentRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string"`
	Note   string          `json:"note" binding:"required"`
}

type AdjustmentResponse struct {
	Earning  *models.VendorEarning `json:"earning"`
	Snapshot *ledger.Snapshot      `json:"snapshot"`
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// @Summary      List Payments (Admin)
// @Description  Retrieves a paginated and filterable list of payments.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body payment.ScanPaymentsRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListPayments
// @Router       /api/v1/admin/list_payments [post]
func (a *Admin) ApiListPayments(c *gin.Context) {
	var req payment.ScanPaymentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := a.Payments.ScanPayments(c.Request.Context(), &req)
	if err != nil {
		writeError(c, a.Log, err)
		return
	}
	ok(c, res)
}

func bindScan[T any](c *gin.Context, log *zap.SugaredLogger, scan func(context.Context, *types.ScanRequest) (*types.ScanResult[T], error)) {
	var req types.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := scan(c.Request.Context(), &req)
	if err != nil {
		writeError(c, log, err)
		return
	}
	ok(c, res)
}

// @Summary      List Payout Requests (Admin)
// @Description  Retrieves a paginated and filterable list of payout requests.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body types.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListPayoutRequests
// @Router       /api/v1/admin/list_payout_requests [post]
func (a *Admin) ApiListPayoutRequests(c *gin.Context) {
	bindScan(c, a.Log, a.Payouts.ScanPayoutRequests)
}

// @Summary      List Payouts (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body types.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListPayouts
// @Router       /api/v1/admin/list_payouts [post]
func (a *Admin) ApiListPayouts(c *gin.Context) {
	bindScan(c, a.Log, a.Payouts.ScanPayouts)
}

// @Summary      List Webhook Logs (Admin)
// @Description  Retrieves logged gateway callbacks, filterable by reference, type and status.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body types.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListWebhookLogs
// @Router       /api/v1/admin/list_webhook_logs [post]
func (a *Admin) ApiListWebhookLogs(c *gin.Context) {
	bindScan(c, a.Log, a.Logs.Scan)
}

// @Summary      Replay Webhook (Admin)
// @Description  Applies the body of a logged callback again, e.g. one that arrived before its payment was known.
// @Tags         Admin
// @Produce      json
// @Param        id   path      string  true  "Webhook log ID"
// @Success      200  {object}  handlers.RespWebhookResult
// @Router       /api/v1/admin/webhook_logs/{id}/replay [post]
func (a *Admin) ApiReplayWebhook(c *gin.Context) {
	res, err := a.Replayer.Replay(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErrorWithData(c, a.Log, err, res)
		return
	}
	ok(c, res)
}

// @Summary      Vendor Payout Summary (Admin)
// @Description  Balance counters and last completed payout of every active vendor.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespVendorPayoutSummaries
// @Router       /api/v1/admin/vendor_payout_summary [get]
func (a *Admin) ApiVendorPayoutSummary(c *gin.Context) {
	rows, err := a.Payouts.VendorPayoutSummaries(c.Request.Context())
	if err != nil {
		writeError(c, a.Log, err)
		return
	}
	ok(c, rows)
}

// @Summary      Confirm Cash Payment (Admin)
// @Description  Completes a cash payment once the money has been received.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id      path  string                       true   "Payment ID"
// @Param        request body  handlers.ConfirmCashRequest  false  "Receipt"
// @Success      200  {object}  handlers.RespCallbackOutcome
// @Router       /api/v1/admin/payments/{id}/confirm_cash [post]
func (a *Admin) ApiConfirmCash(c *gin.Context) {
	var req ConfirmCashRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	out, err := a.Payments.ConfirmCashPayment(c.Request.Context(), c.Param("id"), req.Receipt)
	if err != nil {
		writeError(c, a.Log, err)
		return
	}
	ok(c, out)
}

// @Summary      Approve Payout Request (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id      path  string                                true  "Payout request ID"
// @Param        request body  handlers.ApprovePayoutRequestRequest  true  "Approver"
// @Success      200  {object}  handlers.RespPayoutRequest
// @Router       /api/v1/admin/payout_requests/{id}/approve [post]
func (a *Admin) ApiApprovePayoutRequest(c *gin.Context) {
	var req ApprovePayoutRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	pr, err := a.Payouts.ApprovePayoutRequest(c.Request.Context(), c.Param("id"), req.ApprovedBy)
	if err != nil {
		writeError(c, a.Log, err)
		return
	}
	ok(c, pr)
}

// @Summary      Reject Payout Request (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id      path  string                               true  "Payout request ID"
// @Param        request body  handlers.RejectPayoutRequestRequest  true  "Reason"
// @Success      200  {object}  handlers.RespPayoutRequest
// @Router       /api/v1/admin/payout_requests/{id}/reject [post]
func (a *Admin) ApiRejectPayoutRequest(c *gin.Context) {
	var req RejectPayoutRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	pr, err := a.Payouts.RejectPayoutRequest(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, a.Log, err)
		return
	}
	ok(c, pr)
}

// @Summary      Process Payout Request (Admin)
// @Description  Starts the payout of an approved request.
// @Tags         Admin
// @Produce      json
// @Param        id   path      string  true  "Payout request ID"
// @Success      200  {object}  handlers.RespPayoutRequest
// @Router       /api/v1/admin/payout_requests/{id}/process [post]
func (a *Admin) ApiProcessPayoutRequest(c *gin.Context) {
	pr, err := a.Payouts.ProcessPayoutRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErrorWithData(c, a.Log, err, pr)
		return
	}
	ok(c, pr)
}

// @Summary      Bulk Process Payout Requests (Admin)
// @Description  Processes each approved request independently and reports which ones failed.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.BulkProcessRequest true "Request IDs"
// @Success      200  {object}  handlers.RespBulkProcess
// @Router       /api/v1/admin/payout_requests/bulk_process [post]
func (a *Admin) ApiBulkProcessPayoutRequests(c *gin.Context) {
	var req BulkProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		badRequest(c, "ids is empty")
		return
	}
	ok(c, a.Payouts.BulkProcessPayoutRequests(c.Request.Context(), req.IDs))
}

// @Summary      Generate Commission Summary (Admin)
// @Description  Rolls up completed payments of the period ending now and stores the summary.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.GenerateSummaryRequest true "Period"
// @Success      200  {object}  handlers.RespCommissionSummary
// @Router       /api/v1/admin/commission_summaries [post]
func (a *Admin) ApiGenerateCommissionSummary(c *gin.Context) {
	var req GenerateSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	s, err := a.Stats.GenerateCommissionSummary(c.Request.Context(), req.PeriodType, a.now())
	if err != nil {
		writeError(c, a.Log, err)
		return
	}
	ok(c, s)
}

// @Summary      List Commission Summaries (Admin)
// @Tags         Admin
// @Produce      json
// @Param        period_type  query  string  false  "daily, weekly, monthly or yearly"
// @Param        limit        query  int     false  "Max rows (default 30)"
// @Success      200  {object}  handlers.RespCommissionSummaries
// @Router       /api/v1/admin/commission_summaries [get]
func (a *Admin) ApiListCommissionSummaries(c *gin.Context) {
	limit, err := queryInt(c, "limit", 30)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	rows, err := a.Stats.ListCommissionSummaries(c.Request.Context(), types.PeriodType(c.Query("period_type")), limit)
	if err != nil {
		writeError(c, a.Log, err)
		return
	}
	ok(c, rows)
}

// @Summary      Export Commission Summaries (Admin)
// @Description  Downloads the listed summaries as an XLSX workbook.
// @Tags         Admin
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        period_type  query  string  false  "daily, weekly, monthly or yearly"
// @Param        limit        query  int     false  "Max rows (default 30)"
// @Success      200  {file}  file
// @Router       /api/v1/admin/commission_summaries/export [get]
func (a *Admin) ApiExportCommissionSummaries(c *gin.Context) {
	limit, err := queryInt(c, "limit", 30)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	b, err := a.Stats.ExportCommissionSummaries(c.Request.Context(), types.PeriodType(c.Query("period_type")), limit)
	if err != nil {
		writeError(c, a.Log, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="commission_summary_%s.xlsx"`, a.now().Format("20060102")))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", b)
}

// @Summary      Revenue Report (Admin)
// @Tags         Admin
// @Produce      json
// @Param        days  query  int  false  "Window in days (default 30)"
// @Success      200  {object}  handlers.RespRevenueReport
// @Router       /api/v1/admin/revenue_report [get]
func (a *Admin) ApiRevenueReport(c *gin.Context) {
	days, err := queryInt(c, "days", 30)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	r, err := a.Stats.RevenueReport(c.Request.Context(), days, a.now())
	if err != nil {
		writeError(c, a.Log, err)
		return
	}
	ok(c, r)
}

// @Summary      Get Daily Statistic (Admin)
// @Description  Retrieves daily payment, commission, payout and order series.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.StatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespStatistic
// @Router       /api/v1/admin/get_statistic [post]
func (a *Admin) ApiGetStatistic(c *gin.Context) {
	var req statistics.StatisticRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := a.Stats.GetDailyStatistic(c.Request.Context(), &req)
	if err != nil {
		writeError(c, a.Log, err)
		return
	}
	ok(c, res)
}

// @Summary      Reconcile Vendor Ledger (Admin)
// @Description  Compares the cached balance counters with earning and payout history. With apply set, drifted counters are corrected.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id      path  string                           true   "Vendor ID"
// @Param        request body  handlers.ReconcileVendorRequest  false  "Apply corrections"
// @Success      200  {object}  handlers.RespReconcileReport
// @Router       /api/v1/admin/vendors/{id}/reconcile [post]
func (a *Admin) ApiReconcileVendor(c *gin.Context) {
	var req ReconcileVendorRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	r, err := a.Ledger.Reconcile(c.Request.Context(), c.Param("id"), req.Apply)
	if err != nil {
		writeError(c, a.Log, err)
		return
	}
	ok(c, r)
}

// @Summary      Post Ledger Adjustment (Admin)
// @Description  Records a signed adjustment earning and applies it to the available balance.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id      path  string                      true  "Vendor ID"
// @Param        request body  handlers.AdjustmentRequest  true  "Adjustment"
// @Success      200  {object}  handlers.RespAdjustment
// @Router       /api/v1/admin/vendors/{id}/adjustments [post]
func (a *Admin) ApiPostAdjustment(c *gin.Context) {
	var req AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	e, snap, err := a.Ledger.PostAdjustment(c.Request.Context(), c.Param("id"), req.Amount, req.Note)
	if err != nil {
		writeError(c, a.Log, err)
		return
	}
	ok(c, &AdjustmentResponse{Earning: e, Snapshot: snap})
}

// @Summary      List Stuck Operations (Admin)
// @Description  Lists payments and payouts flagged for review because their callback never arrived.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespStuck
// @Router       /api/v1/admin/stuck [get]
func (a *Admin) ApiListStuck(c *gin.Context) {
	items, err := a.Stuck.ListStuck(c.Request.Context())
	if err != nil {
		writeError(c, a.Log, err)
		return
	}
	ok(c, items)
}

func RegisterAdminRoutes(r gin.IRouter, a *Admin) {
	r.POST("/list_payments", a.ApiListPayments)
	r.POST("/payments/:id/confirm_cash", a.ApiConfirmCash)
	r.POST("/list_payout_requests", a.ApiListPayoutRequests)
	r.POST("/list_payouts", a.ApiListPayouts)
	r.POST("/list_webhook_logs", a.ApiListWebhookLogs)
	r.POST("/webhook_logs/:id/replay", a.ApiReplayWebhook)
	r.GET("/vendor_payout_summary", a.ApiVendorPayoutSummary)
	r.POST("/payout_requests/bulk_process", a.ApiBulkProcessPayoutRequests)
	r.POST("/payout_requests/:id/approve", a.ApiApprovePayoutRequest)
	r.POST("/payout_requests/:id/reject", a.ApiRejectPayoutRequest)
	r.POST("/payout_requests/:id/process", a.ApiProcessPayoutRequest)
	r.POST("/commission_summaries", a.ApiGenerateCommissionSummary)
	r.GET("/commission_summaries", a.ApiListCommissionSummaries)
	r.GET("/commission_summaries/export", a.ApiExportCommissionSummaries)
	r.GET("/revenue_report", a.ApiRevenueReport)
	r.POST("/get_statistic", a.ApiGetStatistic)
	r.POST("/vendors/:id/reconcile", a.ApiReconcileVendor)
	r.POST("/vendors/:id/adjustments", a.ApiPostAdjustment)
	r.GET("/stuck", a.ApiListStuck)
}
