package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/tool"
	"github.com/fatflowers/marketplace/pkg/types"
)

// CreatePayoutRequest records a vendor's payout request for admin approval.
// Nothing is reserved until the request is processed.
func (s *Service) CreatePayoutRequest(ctx context.Context, in *CreatePayoutRequestInput) (*models.PayoutRequest, error) {
	if in == nil || in.VendorID == "" {
		return nil, apperr.Validation("vendor_id is required")
	}
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation("payout amount must be positive, got %s", in.Amount.String())
	}
	if minimum := s.cfg.Payouts.Minimum(); in.Amount.LessThan(minimum) {
		return nil, apperr.Validation("payout amount %s is below the minimum of %s", in.Amount.String(), minimum.String())
	}
	var v models.Vendor
	err := s.db.WithContext(ctx).Where("id = ?", in.VendorID).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("vendor", in.VendorID)
	}
	if err != nil {
		return nil, fmt.Errorf("load vendor %s: %w", in.VendorID, err)
	}
	if v.AvailableBalance.LessThan(in.Amount) {
		return nil, &apperr.InsufficientBalanceError{Available: v.AvailableBalance, Requested: in.Amount}
	}
	method := in.PayoutMethod
	if method == "" {
		method = lo.Ternary(v.PayoutMethod != "", v.PayoutMethod, types.PayoutMethodMpesa)
	}
	if method != types.PayoutMethodMpesa && method != types.PayoutMethodPayPal {
		return nil, apperr.Validation("unsupported payout method %q", method)
	}
	if g, ok := s.gateways[method]; ok {
		if payable := payableAmount(g, in.Amount); !payable.Equal(in.Amount) {
			return nil, apperr.Validation("%s cannot pay out %s, largest payable amount is %s", method, in.Amount.String(), payable.String())
		}
	}
	recipient := lo.Ternary(in.Recipient != "", in.Recipient, v.PayoutRecipient(method))
	if recipient == "" {
		return nil, apperr.Validation("vendor %s has no %s payout recipient", v.ID, method)
	}

	req := &models.PayoutRequest{
		ID:           tool.GenerateUUIDV7(),
		VendorID:     v.ID,
		Amount:       in.Amount,
		PayoutMethod: method,
		Recipient:    recipient,
		Status:       types.PayoutRequestStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, fmt.Errorf("create payout request: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("payout_request_created", "payout_request_id", req.ID, "vendor_id", v.ID, "amount", req.Amount)
	return req, nil
}

// transitionRequest moves a locked payout request from one of from to to.
func (s *Service) transitionRequest(ctx context.Context, id string, to types.PayoutRequestStatus, updates map[string]any, from ...types.PayoutRequestStatus) (*models.PayoutRequest, error) {
	var req models.PayoutRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&req).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("payout_request", id)
		}
		if err != nil {
			return fmt.Errorf("lock payout request %s: %w", id, err)
		}
		if !lo.Contains(from, req.Status) {
			return &apperr.InvalidTransitionError{Entity: "payout_request", From: string(req.Status), To: string(to)}
		}
		updates["status"] = to
		updates["updated_at"] = s.now()
		if err := tx.Model(&models.PayoutRequest{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("update payout request %s: %w", id, err)
		}
		return tx.Where("id = ?", id).Take(&req).Error
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("payout_request_transition", "payout_request_id", id, "status", to)
	return &req, nil
}

func (s *Service) ApprovePayoutRequest(ctx context.Context, id, approvedBy string) (*models.PayoutRequest, error) {
	if approvedBy == "" {
		return nil, apperr.Validation("approved_by is required")
	}
	return s.transitionRequest(ctx, id, types.PayoutRequestStatusApproved,
		map[string]any{"approved_by": approvedBy, "approved_at": s.now()},
		types.PayoutRequestStatusPending)
}

func (s *Service) RejectPayoutRequest(ctx context.Context, id, reason string) (*models.PayoutRequest, error) {
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}
	return s.transitionRequest(ctx, id, types.PayoutRequestStatusRejected,
		map[string]any{"failure_reason": reason, "processed_at": s.now()},
		types.PayoutRequestStatusPending, types.PayoutRequestStatusApproved)
}

// ProcessPayoutRequest starts the payout for an approved request. A request
// whose payout cannot be started ends up failed.
func (s *Service) ProcessPayoutRequest(ctx context.Context, id string) (*models.PayoutRequest, error) {
	req, err := s.transitionRequest(ctx, id, types.PayoutRequestStatusProcessing, map[string]any{}, types.PayoutRequestStatusApproved)
	if err != nil {
		return nil, err
	}
	pt, payErr := s.requestPayout(ctx, req.VendorID, req.Amount, req.PayoutMethod, req.Recipient, lo.ToPtr(req.ID))
	if payErr != nil && pt == nil {
		// nothing was reserved, so the request fails here
		now := s.now()
		if err := s.db.WithContext(ctx).Model(&models.PayoutRequest{}).
			Where("id = ? AND status = ?", req.ID, types.PayoutRequestStatusProcessing).
			Updates(map[string]any{
				"status":         types.PayoutRequestStatusFailed,
				"failure_reason": payErr.Error(),
				"processed_at":   now,
				"updated_at":     now,
			}).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("payout_request_fail_error", "payout_request_id", req.ID, "error", err.Error())
		}
	}
	var fresh models.PayoutRequest
	if err := s.db.WithContext(ctx).Where("id = ?", req.ID).Take(&fresh).Error; err != nil {
		return nil, fmt.Errorf("reload payout request %s: %w", req.ID, err)
	}
	return &fresh, payErr
}

// BulkProcessPayoutRequests processes each request independently.
func (s *Service) BulkProcessPayoutRequests(ctx context.Context, ids []string) *BulkProcessResult {
	out := &BulkProcessResult{Successful: []string{}, Failed: []BulkFailure{}}
	for _, id := range lo.Uniq(ids) {
		if _, err := s.ProcessPayoutRequest(ctx, id); err != nil {
			out.Failed = append(out.Failed, BulkFailure{ID: id, Error: err.Error()})
			continue
		}
		out.Successful = append(out.Successful, id)
	}
	logctx.FromCtx(ctx, s.log).Infow("payout_requests_bulk_processed", "successful", len(out.Successful), "failed", len(out.Failed))
	return out
}
