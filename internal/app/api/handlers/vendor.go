package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/internal/app/service/ledger"
	"github.com/fatflowers/marketplace/internal/app/service/payment"
	"github.com/fatflowers/marketplace/internal/app/service/payout"
	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/types"
)

// LedgerService is the part of ledger.Service the HTTP layer uses.
type LedgerService interface {
	GetVendorLedgerSnapshot(ctx context.Context, vendorID string) (*ledger.Snapshot, error)
	Reconcile(ctx context.Context, vendorID string, apply bool) (*ledger.ReconcileReport, error)
	PostAdjustment(ctx context.Context, vendorID string, amount decimal.Decimal, note string) (*models.VendorEarning, *ledger.Snapshot, error)
}

// @Summary      Vendor Ledger
// @Description  Returns the cached balance counters of a vendor.
// @Tags         Vendor
// @Produce      json
// @Param        id   path      string  true  "Vendor ID"
// @Success      200  {object}  handlers.RespLedgerSnapshot
// @Router       /api/v1/vendors/{id}/ledger [get]
func ApiVendorLedger(svc LedgerService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := svc.GetVendorLedgerSnapshot(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		ok(c, snap)
	}
}

// vendorScanRequest builds a page of one vendor's rows from the query string.
// sortable lists the accepted sort_by values, the first one being the default.
func vendorScanRequest(c *gin.Context, sortable ...string) (*types.ScanRequest, error) {
	from := 0
	if v := c.Query("from"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			from = n
		}
	}
	size := types.DefaultScanSize
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > types.MaxScanSize {
			return nil, errors.New("invalid size")
		}
		size = n
	}
	sortBy := c.Query("sort_by")
	if !lo.Contains(sortable, sortBy) {
		sortBy = sortable[0]
	}
	sortOrder := c.Query("sort_order")
	if sortOrder != "asc" {
		sortOrder = "desc"
	}

	filters := []*types.CommonFilter{{Field: "vendor_id", Operator: types.CommonFilterOperatorEq, Values: []any{c.Param("id")}}}
	if st := c.Query("status"); st != "" {
		filters = append(filters, &types.CommonFilter{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{st}})
	}
	return &types.ScanRequest{Filters: filters, From: from, Size: size, SortBy: sortBy, SortOrder: sortOrder}, nil
}

func vendorScan[T any](log *zap.SugaredLogger, scan func(context.Context, *types.ScanRequest) (*types.ScanResult[T], error), sortable ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := vendorScanRequest(c, sortable...)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := scan(c.Request.Context(), req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		ok(c, res)
	}
}

// @Summary      Vendor Payments
// @Description  Lists the payments of a vendor, newest first.
// @Tags         Vendor
// @Produce      json
// @Param        id          path   string  true   "Vendor ID"
// @Param        status      query  string  false  "Payment status"
// @Param        from        query  int     false  "Offset"
// @Param        size        query  int     false  "Page size (default 20)"
// @Param        sort_by     query  string  false  "created_at, amount or updated_at"
// @Param        sort_order  query  string  false  "asc or desc"
// @Success      200  {object}  handlers.RespListPayments
// @Router       /api/v1/vendors/{id}/payments [get]
func ApiVendorPayments(mgr payment.PaymentManager, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := vendorScanRequest(c, "created_at", "amount", "updated_at")
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := mgr.ScanPayments(c.Request.Context(), req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		ok(c, res)
	}
}

// @Summary      Vendor Earnings
// @Description  Lists the earnings credited to a vendor, newest first.
// @Tags         Vendor
// @Produce      json
// @Param        id          path   string  true   "Vendor ID"
// @Param        status      query  string  false  "pending, processed or paid"
// @Param        from        query  int     false  "Offset"
// @Param        size        query  int     false  "Page size (default 20)"
// @Param        sort_by     query  string  false  "created_at or net_amount"
// @Param        sort_order  query  string  false  "asc or desc"
// @Success      200  {object}  handlers.RespListEarnings
// @Router       /api/v1/vendors/{id}/earnings [get]
func ApiVendorEarnings(mgr payout.PayoutManager, log *zap.SugaredLogger) gin.HandlerFunc {
	return vendorScan(log, func(ctx context.Context, req *types.ScanRequest) (*types.ScanResult[models.VendorEarning], error) {
		return mgr.ScanEarnings(ctx, req)
	}, "created_at", "net_amount")
}

// @Summary      Vendor Payouts
// @Description  Lists the payouts sent to a vendor, newest first.
// @Tags         Vendor
// @Produce      json
// @Param        id          path   string  true   "Vendor ID"
// @Param        status      query  string  false  "Payout status"
// @Param        from        query  int     false  "Offset"
// @Param        size        query  int     false  "Page size (default 20)"
// @Param        sort_by     query  string  false  "created_at, completed_at or amount"
// @Param        sort_order  query  string  false  "asc or desc"
// @Success      200  {object}  handlers.RespListPayouts
// @Router       /api/v1/vendors/{id}/payouts [get]
func ApiVendorPayouts(mgr payout.PayoutManager, log *zap.SugaredLogger) gin.HandlerFunc {
	return vendorScan(log, func(ctx context.Context, req *types.ScanRequest) (*types.ScanResult[models.PayoutTransaction], error) {
		return mgr.ScanPayouts(ctx, req)
	}, "created_at", "completed_at", "amount")
}

func RegisterVendorRoutes(r gin.IRouter, svc LedgerService, payments payment.PaymentManager, payouts payout.PayoutManager, log *zap.SugaredLogger) {
	r.GET("/vendors/:id/ledger", ApiVendorLedger(svc, log))
	r.GET("/vendors/:id/payments", ApiVendorPayments(payments, log))
	r.GET("/vendors/:id/earnings", ApiVendorEarnings(payouts, log))
	r.GET("/vendors/:id/payouts", ApiVendorPayouts(payouts, log))
}
