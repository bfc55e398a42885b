package order

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/marketplace/internal/app/service/events"
	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/internal/platform/db/dbtest"
	"github.com/fatflowers/marketplace/pkg/apperr"
	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
	"github.com/fatflowers/marketplace/pkg/tool"
	"github.com/fatflowers/marketplace/pkg/types"
)

type fixture struct {
	svc     *Service
	db      *gorm.DB
	pub     *events.MemoryPublisher
	vendor  *models.Vendor
	product *models.GasProduct
}

func newFixture(t *testing.T) *fixture {
	db := dbtest.New(t)
	pub := &events.MemoryPublisher{}
	cfg := &cfgpkg.Config{Payments: cfgpkg.PaymentsConfig{DefaultCommissionRate: "10"}}
	v := &models.Vendor{ID: tool.GenerateUUIDV7(), BusinessName: "Gas Hub", IsActive: true}
	require.NoError(t, db.Create(v).Error)
	p := &models.GasProduct{ID: tool.GenerateUUIDV7(), VendorID: v.ID, Name: "13kg cylinder", UnitPrice: decimal.NewFromInt(1500), StockQuantity: 10, IsActive: true}
	require.NoError(t, db.Create(p).Error)
	return &fixture{svc: NewService(db, cfg, pub, zap.NewNop().Sugar()), db: db, pub: pub, vendor: v, product: p}
}

func (f *fixture) stock(t *testing.T) int {
	var p models.GasProduct
	require.NoError(t, f.db.Where("id = ?", f.product.ID).Take(&p).Error)
	return p.StockQuantity
}

func (f *fixture) placeGas(t *testing.T, qty int) *models.Order {
	o, err := f.svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "cust-1",
		VendorID:   f.vendor.ID,
		Items:      []LineItemRequest{{Kind: types.LineItemKindGasProduct, RefID: f.product.ID, Quantity: qty}},
	})
	require.NoError(t, err)
	return o
}

func TestPlaceOrder_GasProductReservesStock(t *testing.T) {
	f := newFixture(t)
	o := f.placeGas(t, 3)

	require.Equal(t, types.OrderTypeGasProduct, o.OrderType)
	require.Equal(t, types.OrderStatusPending, o.Status)
	require.Equal(t, types.OrderPaymentStatusPending, o.PaymentStatus)
	require.True(t, o.TotalAmount.Equal(decimal.NewFromInt(4500)))
	require.True(t, o.TotalAmount.Equal(o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))))
	require.True(t, o.CommissionRate.Equal(decimal.NewFromInt(10)))
	require.Equal(t, 7, f.stock(t))

	got, err := f.svc.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Equal(t, f.product.ID, got.Items[0].RefID)
}

func TestPlaceOrder_MixedTotalsLines(t *testing.T) {
	f := newFixture(t)
	price := decimal.RequireFromString("750.50")
	o, err := f.svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "cust-1",
		VendorID:   f.vendor.ID,
		Items: []LineItemRequest{
			{Kind: types.LineItemKindGasProduct, RefID: f.product.ID, Quantity: 2},
			{Kind: types.LineItemKindService, RefID: "tyre-change", Quantity: 1, UnitPrice: &price},
		},
	})
	require.NoError(t, err)
	require.Equal(t, types.OrderTypeMixed, o.OrderType)
	require.True(t, o.TotalAmount.Equal(decimal.RequireFromString("3750.50")))
	require.Equal(t, 8, f.stock(t))
}

func TestPlaceOrder_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PlaceOrder(ctx, &PlaceOrderRequest{CustomerID: "c", VendorID: f.vendor.ID,
		Items: []LineItemRequest{{Kind: types.LineItemKindGasProduct, RefID: f.product.ID, Quantity: 11}}})
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Equal(t, 10, f.stock(t))

	_, err = f.svc.PlaceOrder(ctx, &PlaceOrderRequest{CustomerID: "c", VendorID: f.vendor.ID,
		Items: []LineItemRequest{{Kind: types.LineItemKindService, RefID: "jump-start", Quantity: 1}}})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.PlaceOrder(ctx, &PlaceOrderRequest{CustomerID: "c", VendorID: "missing",
		Items: []LineItemRequest{{Kind: types.LineItemKindGasProduct, RefID: f.product.ID, Quantity: 1}}})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.PlaceOrder(ctx, &PlaceOrderRequest{CustomerID: "c", VendorID: f.vendor.ID})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPlaceOrder_VendorRateOverride(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&models.Vendor{}).Where("id = ?", f.vendor.ID).
		Update("commission_rate", decimal.NewNullDecimal(decimal.RequireFromString("7.5"))).Error)
	o := f.placeGas(t, 1)
	require.True(t, o.CommissionRate.Equal(decimal.RequireFromString("7.5")))
}

func TestTransitionOrderStatus_PendingCannotJumpToInProgress(t *testing.T) {
	f := newFixture(t)
	o := f.placeGas(t, 1)

	_, err := f.svc.TransitionOrderStatus(context.Background(), o.ID, types.OrderStatusInProgress, "")
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	got, err := f.svc.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusPending, got.Status)
	require.Nil(t, got.ConfirmedAt)
}

func TestTransitionOrderStatus_ReplayFails(t *testing.T) {
	f := newFixture(t)
	o := f.placeGas(t, 1)
	ctx := context.Background()

	_, err := f.svc.TransitionOrderStatus(ctx, o.ID, types.OrderStatusConfirmed, "")
	require.NoError(t, err)
	_, err = f.svc.TransitionOrderStatus(ctx, o.ID, types.OrderStatusConfirmed, "")
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestTransitionOrderStatus_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	o := f.placeGas(t, 1)
	ctx := context.Background()

	confirmed, err := f.svc.TransitionOrderStatus(ctx, o.ID, types.OrderStatusConfirmed, "vendor accepted")
	require.NoError(t, err)
	require.NotNil(t, confirmed.ConfirmedAt)
	_, err = f.svc.TransitionOrderStatus(ctx, o.ID, types.OrderStatusInProgress, "")
	require.NoError(t, err)
	done, err := f.svc.TransitionOrderStatus(ctx, o.ID, types.OrderStatusCompleted, "")
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	require.Equal(t, confirmed.ConfirmedAt.Unix(), done.ConfirmedAt.Unix())

	completed := f.pub.OfType(events.OrderCompleted)
	require.Len(t, completed, 1)
	require.Equal(t, f.vendor.ID, completed[0].VendorID)

	tracking, err := f.svc.ListOrderTracking(ctx, o.ID)
	require.NoError(t, err)
	statuses := lo.Map(tracking, func(tr *models.OrderTracking, _ int) types.OrderStatus { return tr.Status })
	require.Equal(t, []types.OrderStatus{
		types.OrderStatusPending, types.OrderStatusConfirmed, types.OrderStatusInProgress, types.OrderStatusCompleted,
	}, statuses)
	require.Equal(t, "vendor accepted", tracking[1].Note)

	_, err = f.svc.CancelOrder(ctx, o.ID, "")
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
	require.Equal(t, 9, f.stock(t))
}

func TestCancelOrder_RestoresGasStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeGas(t, 3)
	require.Equal(t, 7, f.stock(t))
	_, err := f.svc.TransitionOrderStatus(ctx, o.ID, types.OrderStatusConfirmed, "")
	require.NoError(t, err)

	cancelled, err := f.svc.CancelOrder(ctx, o.ID, "customer changed mind")
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	require.Equal(t, 10, f.stock(t))
	require.Len(t, f.pub.OfType(events.OrderCancelled), 1)

	_, err = f.svc.CancelOrder(ctx, o.ID, "")
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
	require.Equal(t, 10, f.stock(t))
}

func TestTransitionOrderStatus_CancelRoutesThroughCancelOrder(t *testing.T) {
	f := newFixture(t)
	o := f.placeGas(t, 2)
	require.Equal(t, 8, f.stock(t))

	_, err := f.svc.TransitionOrderStatus(context.Background(), o.ID, types.OrderStatusCancelled, "")
	require.NoError(t, err)
	require.Equal(t, 10, f.stock(t))
}

func TestOrderNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.TransitionOrderStatus(context.Background(), "missing", types.OrderStatusConfirmed, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.GetOrder(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
