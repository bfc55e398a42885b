package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/internal/app/service/payment"
)

// @Summary      Initiate Payment
// @Description  Creates the payment of an order and starts it with the chosen gateway. For M-Pesa the customer receives an STK prompt, for PayPal the response carries the approval URL.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body payment.InitiatePaymentRequest true "Payment request"
// @Success      200  {object}  handlers.RespInitiatePayment
// @Router       /api/v1/payments/initiate [post]
func ApiInitiatePayment(mgr payment.PaymentManager, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.InitiatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := mgr.InitiateOrderPayment(c.Request.Context(), &req)
		if err != nil {
			writeErrorWithData(c, log, err, res)
			return
		}
		ok(c, res)
	}
}

// @Summary      Get Payment
// @Tags         Payment
// @Produce      json
// @Param        id   path      string  true  "Payment ID"
// @Success      200  {object}  handlers.RespPayment
// @Router       /api/v1/payments/{id} [get]
func ApiGetPayment(mgr payment.PaymentManager, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := mgr.GetPayment(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		ok(c, p)
	}
}

// @Summary      Retry Payment
// @Description  Starts a failed payment again with the same method and account.
// @Tags         Payment
// @Produce      json
// @Param        id   path      string  true  "Payment ID"
// @Success      200  {object}  handlers.RespInitiatePayment
// @Router       /api/v1/payments/{id}/retry [post]
func ApiRetryPayment(mgr payment.PaymentManager, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := mgr.RetryPayment(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeErrorWithData(c, log, err, res)
			return
		}
		ok(c, res)
	}
}

func RegisterPaymentRoutes(r gin.IRouter, mgr payment.PaymentManager, log *zap.SugaredLogger) {
	r.POST("/payments/initiate", ApiInitiatePayment(mgr, log))
	r.GET("/payments/:id", ApiGetPayment(mgr, log))
	r.POST("/payments/:id/retry", ApiRetryPayment(mgr, log))
}
