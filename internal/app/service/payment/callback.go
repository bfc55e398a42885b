package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/fatflowers/marketplace/internal/app/service/commission"
	"github.com/fatflowers/marketplace/internal/app/service/events"
	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/metrics"
	"github.com/fatflowers/marketplace/pkg/tool"
	"github.com/fatflowers/marketplace/pkg/types"
)

// HandlePaymentCallback applies a gateway callback to its payment.
//
// A successful callback marks the payment completed, the order paid, computes
// the commission split, records the vendor earning and credits the vendor
// ledger, all in one transaction with the payment row locked. A callback for
// a payment already in a terminal status is a duplicate and changes nothing.
// An unknown reference returns ErrNotFound together with a not_found outcome.
func (s *Service) HandlePaymentCallback(ctx context.Context, res *CallbackResult) (*CallbackOutcome, error) {
	if res == nil || res.ExternalReference == "" {
		return nil, apperr.Validation("callback without external reference")
	}
	log := logctx.FromCtx(ctx, s.log).With("provider", res.Provider, "external_reference", res.ExternalReference)

	out := &CallbackOutcome{}
	var p *models.Payment
	var order *models.Order
	var earning *models.VendorEarning
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = lockPayment(ctx, tx, "external_reference", res.ExternalReference)
		if err != nil {
			return err
		}
		out.PaymentID, out.OrderID = p.ID, p.OrderID
		if p.Status.IsTerminal() {
			return apperr.ErrDuplicateCallback
		}
		if res.Success {
			order, earning, err = s.complete(ctx, tx, p, res)
			out.Branch = BranchCompleted
			return err
		}
		out.Branch = BranchFailed
		return s.fail(ctx, tx, p, res)
	})

	switch {
	case errors.Is(err, apperr.ErrDuplicateCallback):
		out.Branch = BranchDuplicate
		metrics.PaymentCallbacks.WithLabelValues(string(res.Provider), string(out.Branch)).Inc()
		log.Infow("payment_callback_duplicate", "payment_id", out.PaymentID, "status", p.Status)
		return out, nil
	case errors.Is(err, apperr.ErrNotFound):
		out.Branch = BranchNotFound
		metrics.PaymentCallbacks.WithLabelValues(string(res.Provider), string(out.Branch)).Inc()
		log.Warnw("payment_callback_unknown_reference")
		return out, err
	case err != nil:
		log.Errorw("payment_callback_failed", "payment_id", out.PaymentID, "error", err.Error())
		return nil, err
	}

	metrics.PaymentCallbacks.WithLabelValues(string(res.Provider), string(out.Branch)).Inc()
	log.Infow("payment_callback_handled", "payment_id", p.ID, "order_id", p.OrderID, "branch", out.Branch)

	if out.Branch == BranchFailed {
		events.Emit(ctx, s.publisher, s.log, events.New(events.PaymentFailed, p.VendorID, map[string]any{
			"payment_id":     p.ID,
			"order_id":       p.OrderID,
			"failure_reason": res.ResultDesc,
		}))
		return out, nil
	}

	events.Emit(ctx, s.publisher, s.log, events.New(events.PaymentCompleted, p.VendorID, map[string]any{
		"payment_id":        p.ID,
		"order_id":          order.ID,
		"amount":            p.Amount,
		"commission_amount": p.CommissionAmount,
		"vendor_earnings":   p.VendorEarnings,
		"earning_id":        earning.ID,
	}))
	s.maybeAutoPayout(ctx, p.VendorID)
	return out, nil
}

func (s *Service) complete(ctx context.Context, tx *gorm.DB, p *models.Payment, res *CallbackResult) (*models.Order, *models.VendorEarning, error) {
	now := s.now()
	var o models.Order
	if err := tx.Where("id = ?", p.OrderID).Take(&o).Error; err != nil {
		return nil, nil, fmt.Errorf("load order %s: %w", p.OrderID, err)
	}
	split, err := commission.Calculate(p.Amount, p.CommissionRate)
	if err != nil {
		return nil, nil, err
	}

	updates := map[string]any{
		"status":            types.PaymentStatusCompleted,
		"commission_amount": split.Commission,
		"vendor_earnings":   split.Net,
		"completed_at":      now,
		"updated_at":        now,
	}
	if res.ReceiptNumber != "" {
		updates["receipt_number"] = res.ReceiptNumber
		p.ReceiptNumber = lo.ToPtr(res.ReceiptNumber)
	}
	if meta := toJSON(res.Metadata); meta != nil {
		updates["callback_metadata"] = *meta
		p.CallbackMetadata = meta
	}
	if err := tx.Model(&models.Payment{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		return nil, nil, fmt.Errorf("complete payment %s: %w", p.ID, err)
	}
	p.Status = types.PaymentStatusCompleted
	p.CommissionAmount, p.VendorEarnings = split.Commission, split.Net
	p.CompletedAt = &now

	if err := tx.Model(&models.Order{}).Where("id = ?", o.ID).Updates(map[string]any{
		"payment_status":  types.OrderPaymentStatusPaid,
		"vendor_earnings": split.Net,
		"updated_at":      now,
	}).Error; err != nil {
		return nil, nil, fmt.Errorf("mark order %s paid: %w", o.ID, err)
	}
	o.PaymentStatus = types.OrderPaymentStatusPaid
	o.VendorEarnings = split.Net

	earning := &models.VendorEarning{
		ID:               tool.GenerateUUIDV7(),
		VendorID:         p.VendorID,
		OrderID:          lo.ToPtr(o.ID),
		PaymentID:        lo.ToPtr(p.ID),
		EarningType:      types.EarningTypeOrder,
		GrossAmount:      split.Gross,
		CommissionRate:   split.Rate,
		CommissionAmount: split.Commission,
		NetAmount:        split.Net,
		Status:           types.EarningStatusPending,
	}
	if err := tx.Create(earning).Error; err != nil {
		return nil, nil, fmt.Errorf("create earning for payment %s: %w", p.ID, err)
	}
	if _, err := s.ledger.CreditEarnings(ctx, tx, p.VendorID, split.Net); err != nil {
		return nil, nil, err
	}
	return &o, earning, nil
}

func (s *Service) fail(ctx context.Context, tx *gorm.DB, p *models.Payment, res *CallbackResult) error {
	now := s.now()
	reason := lo.Ternary(res.ResultDesc != "", res.ResultDesc, "gateway reported failure code "+res.ResultCode)
	updates := map[string]any{
		"status":         types.PaymentStatusFailed,
		"failure_reason": reason,
		"failed_at":      now,
		"updated_at":     now,
	}
	if meta := toJSON(res.Metadata); meta != nil {
		updates["callback_metadata"] = *meta
	}
	if err := tx.Model(&models.Payment{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("fail payment %s: %w", p.ID, err)
	}
	p.Status = types.PaymentStatusFailed
	p.FailureReason = &reason
	p.FailedAt = &now

	if s.cfg.Payments.MarkOrderFailedOnFail {
		if err := tx.Model(&models.Order{}).Where("id = ?", p.OrderID).
			Updates(map[string]any{"payment_status": types.OrderPaymentStatusFailed, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("mark order %s payment failed: %w", p.OrderID, err)
		}
	}
	return nil
}

func (s *Service) maybeAutoPayout(ctx context.Context, vendorID string) {
	if s.payouts == nil {
		return
	}
	pt, err := s.payouts.AutoPayout(ctx, vendorID)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("auto_payout_failed", "vendor_id", vendorID, "error", err.Error())
		return
	}
	if pt != nil {
		logctx.FromCtx(ctx, s.log).Infow("auto_payout_started", "vendor_id", vendorID, "payout_id", pt.ID, "amount", pt.Amount)
	}
}
