// Package order places orders and drives them through the order state machine.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/marketplace/internal/app/service/commission"
	"github.com/fatflowers/marketplace/internal/app/service/events"
	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/apperr"
	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/tool"
	"github.com/fatflowers/marketplace/pkg/types"
)

type LineItemRequest struct {
	Kind     types.LineItemKind `json:"kind"`
	RefID    string             `json:"ref_id"`
	Quantity int                `json:"quantity"`
	// UnitPrice is the quoted price for service lines. Gas product lines use the catalogue price.
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type PlaceOrderRequest struct {
	CustomerID      string              `json:"customer_id"`
	VendorID        string              `json:"vendor_id"`
	Items           []LineItemRequest   `json:"items"`
	Priority        types.OrderPriority `json:"priority"`
	DeliveryType    types.DeliveryType  `json:"delivery_type"`
	DeliveryAddress *string             `json:"delivery_address"`
	Notes           *string             `json:"notes"`
}

type Service struct {
	db        *gorm.DB
	cfg       *cfgpkg.Config
	publisher events.Publisher
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewService(db *gorm.DB, cfg *cfgpkg.Config, publisher events.Publisher, log *zap.SugaredLogger) *Service {
	return &Service{db: db, cfg: cfg, publisher: publisher, log: log, now: time.Now}
}

func (req *PlaceOrderRequest) validate() error {
	if req.CustomerID == "" || req.VendorID == "" {
		return apperr.Validation("customer_id and vendor_id are required")
	}
	if len(req.Items) == 0 {
		return apperr.Validation("order needs at least one item")
	}
	for i, it := range req.Items {
		if it.Kind == types.LineItemKindService && it.UnitPrice == nil {
			return apperr.Validation("item %d: service lines need a unit_price", i)
		}
	}
	return nil
}

func lockOrder(ctx context.Context, tx *gorm.DB, orderID string) (*models.Order, error) {
	var o models.Order
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", orderID).Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	return &o, nil
}

func addTracking(tx *gorm.DB, orderID string, status types.OrderStatus, note string, at time.Time) error {
	return tx.Create(&models.OrderTracking{
		ID:        tool.GenerateUUIDV7(),
		OrderID:   orderID,
		Status:    status,
		Note:      note,
		CreatedAt: at,
	}).Error
}

// reserveStock decrements stock only when enough is left.
func reserveStock(ctx context.Context, tx *gorm.DB, vendorID string, line *models.OrderItem) error {
	var p models.GasProduct
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", line.RefID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("gas product", line.RefID)
	}
	if err != nil {
		return fmt.Errorf("lock gas product %s: %w", line.RefID, err)
	}
	if p.VendorID != vendorID || !p.IsActive {
		return apperr.Validation("gas product %s is not sold by vendor %s", p.ID, vendorID)
	}
	if p.StockQuantity < line.Quantity {
		return apperr.Validation("only %d units of %s in stock", p.StockQuantity, p.Name)
	}
	res := tx.Model(&models.GasProduct{}).
		Where("id = ? AND stock_quantity >= ?", p.ID, line.Quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", line.Quantity))
	if res.Error != nil {
		return fmt.Errorf("reserve stock for %s: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Validation("only %d units of %s in stock", p.StockQuantity, p.Name)
	}
	line.UnitPrice = p.UnitPrice
	line.Subtotal = p.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
	return nil
}

// PlaceOrder creates a pending order and reserves stock for gas product lines.
func (s *Service) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*models.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	now := s.now()
	o := &models.Order{
		ID:              tool.GenerateUUIDV7(),
		CustomerID:      req.CustomerID,
		VendorID:        req.VendorID,
		Status:          types.OrderStatusPending,
		PaymentStatus:   types.OrderPaymentStatusPending,
		Priority:        lo.Ternary(req.Priority == "", types.OrderPriorityNormal, req.Priority),
		DeliveryType:    lo.Ternary(req.DeliveryType == "", types.DeliveryTypeDelivery, req.DeliveryType),
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		VendorEarnings:  decimal.Zero,
	}
	for _, it := range req.Items {
		var line models.OrderItem
		if it.Kind == types.LineItemKindService {
			line = models.ServiceLine(it.RefID, it.Quantity, *it.UnitPrice)
		} else {
			line = models.GasProductLine(it.RefID, it.Quantity, decimal.Zero)
		}
		line.Kind = it.Kind
		if err := line.Validate(); err != nil {
			return nil, err
		}
		line.ID = tool.GenerateUUIDV7()
		line.OrderID = o.ID
		o.Items = append(o.Items, line)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v models.Vendor
		if err := tx.Where("id = ?", req.VendorID).Take(&v).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("vendor", req.VendorID)
			}
			return err
		}
		if !v.IsActive {
			return apperr.Validation("vendor %s is not active", v.ID)
		}
		for i := range o.Items {
			if o.Items[i].Kind.HasStock() {
				if err := reserveStock(ctx, tx, v.ID, &o.Items[i]); err != nil {
					return err
				}
			}
		}
		if len(o.Items) == 1 {
			o.OrderType = types.OrderType(o.Items[0].Kind)
			o.Quantity = o.Items[0].Quantity
			o.UnitPrice = o.Items[0].UnitPrice
		} else {
			o.OrderType = types.OrderTypeMixed
		}
		o.TotalAmount = o.ExpectedTotal()
		if o.OrderType == types.OrderTypeMixed {
			o.Quantity = 1
			o.UnitPrice = o.TotalAmount
		}
		o.CommissionRate = commission.ResolveRate(v.CommissionRate, s.cfg.Payments.CommissionRate())
		if err := tx.Create(o).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return addTracking(tx, o.ID, o.Status, "Order placed", now)
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("order_placed", "order_id", o.ID, "vendor_id", o.VendorID,
		"order_type", o.OrderType, "total_amount", o.TotalAmount)
	return o, nil
}

// TransitionOrderStatus moves an order to newStatus. Cancellation is routed
// through CancelOrder so reserved stock is always restored.
func (s *Service) TransitionOrderStatus(ctx context.Context, orderID string, newStatus types.OrderStatus, note string) (*models.Order, error) {
	if newStatus == types.OrderStatusCancelled {
		return s.CancelOrder(ctx, orderID, note)
	}
	var o *models.Order
	var from types.OrderStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		o, err = lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		from = o.Status
		now := s.now()
		updates, err := applyTransition(o, newStatus, now)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", o.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update order %s: %w", o.ID, err)
		}
		return addTracking(tx, o.ID, newStatus, lo.Ternary(note != "", note, fmt.Sprintf("Status changed from %s to %s", from, newStatus)), now)
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("order_status_changed", "order_id", o.ID, "from", from, "to", newStatus)
	if newStatus == types.OrderStatusCompleted {
		events.Emit(ctx, s.publisher, s.log, events.New(events.OrderCompleted, o.VendorID, map[string]any{
			"order_id":     o.ID,
			"vendor_id":    o.VendorID,
			"completed_at": o.CompletedAt,
		}))
	}
	return o, nil
}

// CancelOrder cancels an order and, in the same transaction, returns every
// gas product line's quantity to stock. Service lines hold no stock.
func (s *Service) CancelOrder(ctx context.Context, orderID string, note string) (*models.Order, error) {
	var o *models.Order
	var restored map[string]int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		o, err = lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		now := s.now()
		updates, err := applyTransition(o, types.OrderStatusCancelled, now)
		if err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", o.ID).Find(&o.Items).Error; err != nil {
			return fmt.Errorf("load items of order %s: %w", o.ID, err)
		}
		restored = map[string]int{}
		for _, it := range o.Items {
			if !it.Kind.HasStock() {
				continue
			}
			if err := tx.Model(&models.GasProduct{}).Where("id = ?", it.RefID).
				Update("stock_quantity", gorm.Expr("stock_quantity + ?", it.Quantity)).Error; err != nil {
				return fmt.Errorf("restore stock for %s: %w", it.RefID, err)
			}
			restored[it.RefID] += it.Quantity
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", o.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("cancel order %s: %w", o.ID, err)
		}
		return addTracking(tx, o.ID, types.OrderStatusCancelled, lo.Ternary(note != "", note, "Order cancelled"), now)
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("order_cancelled", "order_id", o.ID, "restored_stock", restored)
	events.Emit(ctx, s.publisher, s.log, events.New(events.OrderCancelled, o.VendorID, map[string]any{
		"order_id":       o.ID,
		"restored_stock": restored,
	}))
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).Preload("Items").Where("id = ?", orderID).Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return &o, nil
}

func (s *Service) ListOrderTracking(ctx context.Context, orderID string) ([]*models.OrderTracking, error) {
	var rows []*models.OrderTracking
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tracking of order %s: %w", orderID, err)
	}
	return rows, nil
}

var Module = fx.Options(
	fx.Provide(NewService),
)
