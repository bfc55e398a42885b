package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/internal/app/service/payout"
	"github.com/fatflowers/marketplace/pkg/types"
)

type RequestPayoutRequest struct {
	VendorID     string             `json:"vendor_id" binding:"required"`
	Amount       decimal.Decimal    `json:"amount" swaggertype:"string"`
	PayoutMethod types.PayoutMethod `json:"payout_method"`
	// Recipient defaults to the vendor's phone or PayPal email.
	Recipient string `json:"recipient"`
}

// @Summary      Request Payout
// @Description  Reserves the amount from the vendor's available balance and sends it through the payout gateway. Fails with code 40000 and the available balance when the balance is too low.
// @Tags         Payout
// @Accept       json
// @Produce      json
// @Param        request body handlers.RequestPayoutRequest true "Payout"
// @Success      200  {object}  handlers.RespPayout
// @Router       /api/v1/payouts [post]
func ApiRequestPayout(mgr payout.PayoutManager, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RequestPayoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		method := req.PayoutMethod
		if method == "" {
			method = types.PayoutMethodMpesa
		}
		pt, err := mgr.RequestPayout(c.Request.Context(), req.VendorID, req.Amount, method, req.Recipient)
		if err != nil {
			writeErrorWithData(c, log, err, pt)
			return
		}
		ok(c, pt)
	}
}

// @Summary      Get Payout
// @Tags         Payout
// @Produce      json
// @Param        id   path      string  true  "Payout ID"
// @Success      200  {object}  handlers.RespPayout
// @Router       /api/v1/payouts/{id} [get]
func ApiGetPayout(mgr payout.PayoutManager, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		pt, err := mgr.GetPayout(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		ok(c, pt)
	}
}

// @Summary      Create Payout Request
// @Description  Files a payout request for admin approval.
// @Tags         Payout
// @Accept       json
// @Produce      json
// @Param        request body payout.CreatePayoutRequestInput true "Payout request"
// @Success      200  {object}  handlers.RespPayoutRequest
// @Router       /api/v1/payout_requests [post]
func ApiCreatePayoutRequest(mgr payout.PayoutManager, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payout.CreatePayoutRequestInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		pr, err := mgr.CreatePayoutRequest(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		ok(c, pr)
	}
}

func RegisterPayoutRoutes(r gin.IRouter, mgr payout.PayoutManager, log *zap.SugaredLogger) {
	r.POST("/payouts", ApiRequestPayout(mgr, log))
	r.GET("/payouts/:id", ApiGetPayout(mgr, log))
	r.POST("/payout_requests", ApiCreatePayoutRequest(mgr, log))
}
