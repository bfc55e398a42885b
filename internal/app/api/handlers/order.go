package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/internal/app/service/order"
	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/types"
)

// OrderService is the part of order.Service the HTTP layer uses.
type OrderService interface {
	PlaceOrder(ctx context.Context, req *order.PlaceOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	TransitionOrderStatus(ctx context.Context, orderID string, newStatus types.OrderStatus, note string) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID string, note string) (*models.Order, error)
	ListOrderTracking(ctx context.Context, orderID string) ([]*models.OrderTracking, error)
}

type TransitionOrderRequest struct {
	Status types.OrderStatus `json:"status" binding:"required"`
	Note   string            `json:"note"`
}

type CancelOrderRequest struct {
	Note string `json:"note"`
}

// @Summary      Place Order
// @Description  Creates a pending order with its line items and reserves gas product stock.
// @Tags         Order
// @Accept       json
// @Produce      json
// @Param        request body order.PlaceOrderRequest true "Order"
// @Success      200  {object}  handlers.RespOrder
// @Router       /api/v1/orders [post]
func ApiPlaceOrder(svc OrderService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		o, err := svc.PlaceOrder(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		ok(c, o)
	}
}

// @Summary      Get Order
// @Tags         Order
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  handlers.RespOrder
// @Router       /api/v1/orders/{id} [get]
func ApiGetOrder(svc OrderService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.GetOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		ok(c, o)
	}
}

// @Summary      Change Order Status
// @Description  Applies one transition of the order state machine. Cancelling restores gas product stock.
// @Tags         Order
// @Accept       json
// @Produce      json
// @Param        id      path  string                          true  "Order ID"
// @Param        request body  handlers.TransitionOrderRequest true  "Target status"
// @Success      200  {object}  handlers.RespOrder
// @Router       /api/v1/orders/{id}/status [post]
func ApiTransitionOrder(svc OrderService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TransitionOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		o, err := svc.TransitionOrderStatus(c.Request.Context(), c.Param("id"), req.Status, req.Note)
		if err != nil {
			writeError(c, log, err)
			return
		}
		ok(c, o)
	}
}

// @Summary      Cancel Order
// @Tags         Order
// @Accept       json
// @Produce      json
// @Param        id      path  string                      true   "Order ID"
// @Param        request body  handlers.CancelOrderRequest false  "Cancellation note"
// @Success      200  {object}  handlers.RespOrder
// @Router       /api/v1/orders/{id}/cancel [post]
func ApiCancelOrder(svc OrderService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CancelOrderRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		o, err := svc.CancelOrder(c.Request.Context(), c.Param("id"), req.Note)
		if err != nil {
			writeError(c, log, err)
			return
		}
		ok(c, o)
	}
}

// @Summary      Order Tracking
// @Description  Lists the status history of an order, oldest first.
// @Tags         Order
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  handlers.RespOrderTracking
// @Router       /api/v1/orders/{id}/tracking [get]
func ApiOrderTracking(svc OrderService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := svc.GetOrder(c.Request.Context(), id); err != nil {
			writeError(c, log, err)
			return
		}
		rows, err := svc.ListOrderTracking(c.Request.Context(), id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		ok(c, rows)
	}
}

func RegisterOrderRoutes(r gin.IRouter, svc OrderService, log *zap.SugaredLogger) {
	r.POST("/orders", ApiPlaceOrder(svc, log))
	r.GET("/orders/:id", ApiGetOrder(svc, log))
	r.POST("/orders/:id/status", ApiTransitionOrder(svc, log))
	r.POST("/orders/:id/cancel", ApiCancelOrder(svc, log))
	r.GET("/orders/:id/tracking", ApiOrderTracking(svc, log))
}
