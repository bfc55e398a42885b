// Package payment starts customer payments and completes them from gateway callbacks.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/marketplace/internal/app/service/events"
	"github.com/fatflowers/marketplace/internal/app/service/ledger"
	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/apperr"
	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/tool"
	"github.com/fatflowers/marketplace/pkg/types"
)

type Service struct {
	db        *gorm.DB
	cfg       *cfgpkg.Config
	log       *zap.SugaredLogger
	ledger    *ledger.Service
	publisher events.Publisher
	payouts   AutoPayouter
	gateways  map[types.PaymentMethod]CheckoutGateway
	now       func() time.Time
}

// NewService wires the checkout gateways by method. Cash is always available.
// payouts may be nil, which disables auto payouts.
func NewService(db *gorm.DB, cfg *cfgpkg.Config, log *zap.SugaredLogger, l *ledger.Service, publisher events.Publisher, payouts AutoPayouter, gateways ...CheckoutGateway) *Service {
	s := &Service{
		db:        db,
		cfg:       cfg,
		log:       log,
		ledger:    l,
		publisher: publisher,
		payouts:   payouts,
		gateways:  map[types.PaymentMethod]CheckoutGateway{},
		now:       time.Now,
	}
	s.gateways[types.PaymentMethodCash] = cashGateway{}
	for _, g := range gateways {
		if g != nil {
			s.gateways[g.Method()] = g
		}
	}
	return s
}

// cashGateway has nothing to call. The payment waits for an admin to confirm the cash.
type cashGateway struct{}

func (cashGateway) Method() types.PaymentMethod { return types.PaymentMethodCash }

func (cashGateway) Initiate(_ context.Context, req *CheckoutRequest) (*CheckoutAck, error) {
	return &CheckoutAck{ExternalReference: "cash-" + req.PaymentID}, nil
}

func toJSON(v any) *datatypes.JSON {
	if m, ok := v.(map[string]any); v == nil || (ok && len(m) == 0) {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return lo.ToPtr(datatypes.JSON(b))
}

func lockPayment(ctx context.Context, tx *gorm.DB, column, value string) (*models.Payment, error) {
	var p models.Payment
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where(column+" = ?", value).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("payment", value)
	}
	if err != nil {
		return nil, fmt.Errorf("lock payment %s: %w", value, err)
	}
	return &p, nil
}

func (s *Service) gateway(method types.PaymentMethod) (CheckoutGateway, error) {
	g, ok := s.gateways[method]
	if !ok {
		return nil, apperr.Validation("unsupported payment method %q", method)
	}
	return g, nil
}

// InitiateOrderPayment creates the payment for an order and hands it to the gateway.
func (s *Service) InitiateOrderPayment(ctx context.Context, req *InitiatePaymentRequest) (*InitiatePaymentResult, error) {
	if req == nil || req.OrderID == "" {
		return nil, apperr.Validation("order_id is required")
	}
	g, err := s.gateway(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if req.PaymentMethod != types.PaymentMethodCash && req.PhoneOrAccount == "" {
		return nil, apperr.Validation("phone_or_account is required for %s", req.PaymentMethod)
	}

	var p *models.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", req.OrderID).Take(&o).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("order", req.OrderID)
		}
		if err != nil {
			return fmt.Errorf("lock order %s: %w", req.OrderID, err)
		}
		if o.Status == types.OrderStatusCancelled || o.Status == types.OrderStatusFailed {
			return apperr.Validation("order %s is %s", o.ID, o.Status)
		}
		if o.PaymentStatus == types.OrderPaymentStatusPaid {
			return apperr.Validation("order %s is already paid", o.ID)
		}
		var existing int64
		if err := tx.Model(&models.Payment{}).Where("order_id = ?", o.ID).Count(&existing).Error; err != nil {
			return fmt.Errorf("count payments of order %s: %w", o.ID, err)
		}
		if existing > 0 {
			return apperr.Validation("payment already exists for order %s", o.ID)
		}
		p = &models.Payment{
			ID:             tool.GenerateUUIDV7(),
			OrderID:        o.ID,
			VendorID:       o.VendorID,
			Amount:         o.TotalAmount,
			Currency:       s.cfg.Payments.Currency,
			PaymentMethod:  req.PaymentMethod,
			Status:         types.PaymentStatusPending,
			CommissionRate: o.CommissionRate,
			PayoutStatus:   types.PaymentPayoutStatusPending,
			PhoneOrAccount: req.PhoneOrAccount,
		}
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.start(ctx, p, g)
}

// start calls the gateway for a pending payment. A rejected call fails the payment.
func (s *Service) start(ctx context.Context, p *models.Payment, g CheckoutGateway) (*InitiatePaymentResult, error) {
	log := logctx.FromCtx(ctx, s.log)
	ack, gwErr := g.Initiate(ctx, &CheckoutRequest{
		PaymentID:      p.ID,
		OrderID:        p.OrderID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		PhoneOrAccount: p.PhoneOrAccount,
		Description:    "Order " + p.OrderID,
	})
	now := s.now()
	if gwErr != nil {
		reason := gwErr.Error()
		if err := s.db.WithContext(ctx).Model(&models.Payment{}).
			Where("id = ? AND status = ?", p.ID, types.PaymentStatusPending).
			Updates(map[string]any{"status": types.PaymentStatusFailed, "failure_reason": reason, "failed_at": now, "updated_at": now}).Error; err != nil {
			log.Errorw("payment_mark_failed_error", "payment_id", p.ID, "error", err.Error())
		}
		p.Status = types.PaymentStatusFailed
		p.FailureReason = &reason
		p.FailedAt = &now
		log.Warnw("payment_initiate_failed", "payment_id", p.ID, "method", p.PaymentMethod, "error", reason)
		if errors.Is(gwErr, apperr.ErrValidation) || errors.Is(gwErr, apperr.ErrUpstreamGateway) {
			return &InitiatePaymentResult{Payment: p}, gwErr
		}
		return &InitiatePaymentResult{Payment: p}, apperr.Upstream(string(p.PaymentMethod), gwErr)
	}

	updates := map[string]any{
		"status":             types.PaymentStatusProcessing,
		"external_reference": ack.ExternalReference,
		"updated_at":         now,
	}
	if raw := toJSON(ack.Raw); raw != nil {
		updates["gateway_response"] = *raw
		p.GatewayResponse = raw
	}
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", p.ID, types.PaymentStatusPending).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("mark payment %s processing: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("payment %s left pending before the gateway answered: %w", p.ID, apperr.ErrConcurrentUpdate)
	}
	p.Status = types.PaymentStatusProcessing
	p.ExternalReference = lo.ToPtr(ack.ExternalReference)
	p.UpdatedAt = now
	log.Infow("payment_initiated", "payment_id", p.ID, "order_id", p.OrderID, "method", p.PaymentMethod,
		"external_reference", ack.ExternalReference, "amount", p.Amount)
	return &InitiatePaymentResult{Payment: p, ApprovalURL: ack.ApprovalURL}, nil
}

// RetryPayment starts a failed payment again with the same method and account.
func (s *Service) RetryPayment(ctx context.Context, paymentID string) (*InitiatePaymentResult, error) {
	var p *models.Payment
	var g CheckoutGateway
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = lockPayment(ctx, tx, "id", paymentID)
		if err != nil {
			return err
		}
		if p.Status != types.PaymentStatusFailed {
			return &apperr.InvalidTransitionError{Entity: "payment", From: string(p.Status), To: string(types.PaymentStatusPending)}
		}
		if g, err = s.gateway(p.PaymentMethod); err != nil {
			return err
		}
		var o models.Order
		if err := tx.Where("id = ?", p.OrderID).Take(&o).Error; err != nil {
			return fmt.Errorf("load order %s: %w", p.OrderID, err)
		}
		if o.Status == types.OrderStatusCancelled || o.Status == types.OrderStatusFailed {
			return apperr.Validation("order %s is %s", o.ID, o.Status)
		}
		now := s.now()
		if err := tx.Model(&models.Payment{}).Where("id = ?", p.ID).Updates(map[string]any{
			"status":             types.PaymentStatusPending,
			"external_reference": nil,
			"receipt_number":     nil,
			"gateway_response":   nil,
			"callback_metadata":  nil,
			"failure_reason":     nil,
			"failed_at":          nil,
			"needs_review":       false,
			"updated_at":         now,
		}).Error; err != nil {
			return fmt.Errorf("reset payment %s: %w", p.ID, err)
		}
		if o.PaymentStatus == types.OrderPaymentStatusFailed {
			if err := tx.Model(&models.Order{}).Where("id = ?", o.ID).
				Updates(map[string]any{"payment_status": types.OrderPaymentStatusPending, "updated_at": now}).Error; err != nil {
				return fmt.Errorf("reset order %s payment status: %w", o.ID, err)
			}
		}
		p.Status = types.PaymentStatusPending
		p.ExternalReference, p.ReceiptNumber, p.GatewayResponse, p.CallbackMetadata = nil, nil, nil, nil
		p.FailureReason, p.FailedAt, p.NeedsReview = nil, nil, false
		return nil
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("payment_retry", "payment_id", p.ID, "order_id", p.OrderID)
	return s.start(ctx, p, g)
}

// ConfirmCashPayment completes a cash payment through the regular callback path.
func (s *Service) ConfirmCashPayment(ctx context.Context, paymentID, receipt string) (*CallbackOutcome, error) {
	p, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PaymentMethod != types.PaymentMethodCash {
		return nil, apperr.Validation("payment %s is not a cash payment", p.ID)
	}
	if p.ExternalReference == nil {
		return nil, apperr.Validation("payment %s was never started", p.ID)
	}
	return s.HandlePaymentCallback(ctx, &CallbackResult{
		Provider:          types.CallbackProviderManual,
		ExternalReference: *p.ExternalReference,
		Success:           true,
		ResultCode:        "0",
		ResultDesc:        "cash received",
		ReceiptNumber:     lo.Ternary(receipt != "", receipt, *p.ExternalReference),
		Metadata:          map[string]any{"confirmed_by": "admin", "receipt": receipt},
	})
}

func (s *Service) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).Where("id = ?", paymentID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("payment", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", paymentID, err)
	}
	return &p, nil
}

var paymentColumns = types.ScanColumns{
	Filter: []string{
		"id", "order_id", "vendor_id", "status", "payment_method", "external_reference",
		"receipt_number", "amount", "needs_review", "created_at", "updated_at", "completed_at",
	},
	Sort: []string{"created_at", "updated_at", "completed_at", "amount"},
}

// ScanPayments implements paginated admin listing with filters.
func (s *Service) ScanPayments(ctx context.Context, req *ScanPaymentsRequest) (*ScanPaymentsResponse, error) {
	res, err := types.Scan[models.Payment](s.db.WithContext(ctx).Model(&models.Payment{}), req, paymentColumns)
	if err != nil {
		return nil, fmt.Errorf("scan payments: %w", err)
	}
	return &ScanPaymentsResponse{Items: res.Items, Total: res.Total}, nil
}
