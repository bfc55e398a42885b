package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/fatflowers/marketplace/internal/app/service/events"
	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/metrics"
	"github.com/fatflowers/marketplace/pkg/types"
)

// HandlePayoutCallback settles or releases a payout from its result callback.
// Callbacks for a payout already in a terminal status are duplicates.
func (s *Service) HandlePayoutCallback(ctx context.Context, res *PayoutCallbackResult) (*PayoutCallbackOutcome, error) {
	if res == nil || res.ExternalReference == "" {
		return nil, apperr.Validation("payout callback without external reference")
	}
	log := logctx.FromCtx(ctx, s.log).With("provider", res.Provider, "external_reference", res.ExternalReference)

	out := &PayoutCallbackOutcome{}
	var pt *models.PayoutTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		pt, err = lockPayout(ctx, tx, "external_reference", res.ExternalReference)
		if err != nil {
			return err
		}
		out.PayoutID, out.VendorID = pt.ID, pt.VendorID
		if pt.Status.IsTerminal() {
			return apperr.ErrDuplicateCallback
		}
		if res.Success {
			out.Branch = BranchCompleted
			return s.settle(ctx, tx, pt, res)
		}
		out.Branch = BranchFailed
		reason := lo.Ternary(res.ResultDesc != "", res.ResultDesc, "gateway reported failure code "+res.ResultCode)
		return s.markFailed(ctx, tx, pt, reason, res.Metadata)
	})

	switch {
	case errors.Is(err, apperr.ErrDuplicateCallback):
		out.Branch = BranchDuplicate
		metrics.PayoutCallbacks.WithLabelValues(string(out.Branch)).Inc()
		log.Infow("payout_callback_duplicate", "payout_id", out.PayoutID)
		return out, nil
	case errors.Is(err, apperr.ErrNotFound):
		out.Branch = BranchNotFound
		metrics.PayoutCallbacks.WithLabelValues(string(out.Branch)).Inc()
		log.Warnw("payout_callback_unknown_reference")
		return out, err
	case err != nil:
		log.Errorw("payout_callback_failed", "payout_id", out.PayoutID, "error", err.Error())
		return nil, err
	}

	metrics.PayoutCallbacks.WithLabelValues(string(out.Branch)).Inc()
	log.Infow("payout_callback_handled", "payout_id", pt.ID, "vendor_id", pt.VendorID, "branch", out.Branch)
	if out.Branch == BranchFailed {
		s.emitFailed(ctx, pt)
		return out, nil
	}
	events.Emit(ctx, s.publisher, s.log, events.New(events.PayoutCompleted, pt.VendorID, map[string]any{
		"payout_id":     pt.ID,
		"amount":        pt.Amount,
		"payout_method": pt.PayoutMethod,
		"recipient":     pt.Recipient,
	}))
	return out, nil
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, pt *models.PayoutTransaction, res *PayoutCallbackResult) error {
	now := s.now()
	updates := map[string]any{
		"status":       types.PayoutStatusCompleted,
		"completed_at": now,
		"updated_at":   now,
	}
	if res.ConversationID != "" {
		updates["gateway_conversation_id"] = res.ConversationID
	}
	if raw := toJSON(res.Metadata); raw != nil {
		updates["gateway_response"] = *raw
	}
	if err := tx.Model(&models.PayoutTransaction{}).Where("id = ?", pt.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("complete payout %s: %w", pt.ID, err)
	}
	if _, err := s.ledger.SettlePayout(ctx, tx, pt.VendorID, pt.Amount); err != nil {
		return err
	}
	if err := s.setEarnings(tx, pt.ID, types.EarningStatusPaid, types.PaymentPayoutStatusPaid); err != nil {
		return err
	}
	if pt.PayoutRequestID != nil {
		if err := tx.Model(&models.PayoutRequest{}).Where("id = ?", *pt.PayoutRequestID).Updates(map[string]any{
			"status":       types.PayoutRequestStatusCompleted,
			"processed_at": now,
			"updated_at":   now,
		}).Error; err != nil {
			return fmt.Errorf("complete payout request %s: %w", *pt.PayoutRequestID, err)
		}
	}
	pt.Status = types.PayoutStatusCompleted
	pt.CompletedAt = &now
	return nil
}
