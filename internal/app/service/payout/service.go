// Package payout moves vendor balances out through the disbursement gateways.
package payout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
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
	gateways  map[types.PayoutMethod]DisbursementGateway
	now       func() time.Time
}

func NewService(db *gorm.DB, cfg *cfgpkg.Config, log *zap.SugaredLogger, l *ledger.Service, publisher events.Publisher, gateways ...DisbursementGateway) *Service {
	s := &Service{
		db:        db,
		cfg:       cfg,
		log:       log,
		ledger:    l,
		publisher: publisher,
		gateways:  map[types.PayoutMethod]DisbursementGateway{},
		now:       time.Now,
	}
	for _, g := range gateways {
		if g != nil {
			s.gateways[g.Method()] = g
		}
	}
	return s
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

func lockPayout(ctx context.Context, tx *gorm.DB, column, value string) (*models.PayoutTransaction, error) {
	var pt models.PayoutTransaction
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where(column+" = ?", value).Take(&pt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("payout", value)
	}
	if err != nil {
		return nil, fmt.Errorf("lock payout %s: %w", value, err)
	}
	return &pt, nil
}

func (s *Service) gateway(method types.PayoutMethod) (DisbursementGateway, error) {
	g, ok := s.gateways[method]
	if !ok {
		return nil, apperr.Validation("unsupported payout method %q", method)
	}
	return g, nil
}

// RequestPayout reserves amount from the vendor's available balance and sends
// it through the gateway for method. An empty recipient falls back to the
// vendor's phone or PayPal email.
func (s *Service) RequestPayout(ctx context.Context, vendorID string, amount decimal.Decimal, method types.PayoutMethod, recipient string) (*models.PayoutTransaction, error) {
	return s.requestPayout(ctx, vendorID, amount, method, recipient, nil)
}

func (s *Service) requestPayout(ctx context.Context, vendorID string, amount decimal.Decimal, method types.PayoutMethod, recipient string, requestID *string) (*models.PayoutTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("payout amount must be positive, got %s", amount.String())
	}
	g, err := s.gateway(method)
	if err != nil {
		return nil, err
	}
	if payable := payableAmount(g, amount); !payable.Equal(amount) {
		return nil, apperr.Validation("%s cannot pay out %s, largest payable amount is %s", method, amount.String(), payable.String())
	}
	log := logctx.FromCtx(ctx, s.log).With("vendor_id", vendorID)

	var pt *models.PayoutTransaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v models.Vendor
		err := tx.Where("id = ?", vendorID).Take(&v).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("vendor", vendorID)
		}
		if err != nil {
			return fmt.Errorf("load vendor %s: %w", vendorID, err)
		}
		if recipient == "" {
			recipient = v.PayoutRecipient(method)
		}
		if recipient == "" {
			return apperr.Validation("vendor %s has no %s payout recipient", vendorID, method)
		}
		if _, err := s.ledger.ReservePayout(ctx, tx, vendorID, amount); err != nil {
			return err
		}

		id := tool.GenerateUUIDV7()
		pt = &models.PayoutTransaction{
			ID:                id,
			VendorID:          vendorID,
			PayoutRequestID:   requestID,
			PayoutMethod:      method,
			ExternalReference: id,
			Amount:            amount,
			Currency:          s.cfg.Payments.Currency,
			Status:            types.PayoutStatusInitiated,
			Recipient:         recipient,
			InitiatedAt:       s.now(),
		}
		if err := tx.Create(pt).Error; err != nil {
			return fmt.Errorf("create payout: %w", err)
		}
		if requestID != nil {
			if err := tx.Model(&models.PayoutRequest{}).Where("id = ?", *requestID).
				Updates(map[string]any{"payout_transaction_id": pt.ID, "updated_at": s.now()}).Error; err != nil {
				return fmt.Errorf("link payout request %s: %w", *requestID, err)
			}
		}
		return s.attachEarnings(tx, pt)
	})
	if err != nil {
		log.Warnw("payout_reserve_failed", "amount", amount, "method", method, "error", err.Error())
		return nil, err
	}
	log.Infow("payout_initiated", "payout_id", pt.ID, "amount", pt.Amount, "method", method)

	ack, gwErr := g.Disburse(ctx, &DisbursementRequest{
		PayoutID:  pt.ID,
		Reference: pt.ExternalReference,
		VendorID:  vendorID,
		Amount:    pt.Amount,
		Currency:  pt.Currency,
		Recipient: pt.Recipient,
		Remarks:   "Vendor payout",
	})
	if gwErr != nil {
		log.Warnw("payout_disburse_failed", "payout_id", pt.ID, "error", gwErr.Error())
		failed, err := s.failAfterGatewayError(ctx, pt.ID, gwErr.Error())
		if err != nil {
			log.Errorw("payout_release_failed", "payout_id", pt.ID, "error", err.Error())
			return pt, err
		}
		if failed != nil {
			pt = failed
		}
		if errors.Is(gwErr, apperr.ErrValidation) || errors.Is(gwErr, apperr.ErrUpstreamGateway) {
			return pt, gwErr
		}
		return pt, apperr.Upstream(string(method), gwErr)
	}

	now := s.now()
	updates := map[string]any{"status": types.PayoutStatusProcessing, "updated_at": now}
	if ack.ConversationID != "" {
		updates["gateway_conversation_id"] = ack.ConversationID
	}
	if raw := toJSON(ack.Raw); raw != nil {
		updates["gateway_response"] = *raw
	}
	res := s.db.WithContext(ctx).Model(&models.PayoutTransaction{}).
		Where("id = ? AND status = ?", pt.ID, types.PayoutStatusInitiated).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("mark payout %s processing: %w", pt.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		// the result callback beat the gateway's synchronous answer
		log.Infow("payout_resolved_before_ack", "payout_id", pt.ID)
		return s.GetPayout(ctx, pt.ID)
	}
	pt.Status = types.PayoutStatusProcessing
	pt.UpdatedAt = now
	if ack.ConversationID != "" {
		pt.GatewayConversationID = lo.ToPtr(ack.ConversationID)
	}
	return pt, nil
}

// attachEarnings marks the oldest pending earnings that the payout fully covers as processed.
func (s *Service) attachEarnings(tx *gorm.DB, pt *models.PayoutTransaction) error {
	var pending []models.VendorEarning
	if err := tx.Where("vendor_id = ? AND status = ? AND payout_transaction_id IS NULL", pt.VendorID, types.EarningStatusPending).
		Order("created_at asc, id asc").Find(&pending).Error; err != nil {
		return fmt.Errorf("list pending earnings of vendor %s: %w", pt.VendorID, err)
	}
	covered := decimal.Zero
	var earningIDs, paymentIDs []string
	for _, e := range pending {
		next := covered.Add(e.NetAmount)
		if next.GreaterThan(pt.Amount) {
			break
		}
		covered = next
		earningIDs = append(earningIDs, e.ID)
		if e.PaymentID != nil {
			paymentIDs = append(paymentIDs, *e.PaymentID)
		}
	}
	if len(earningIDs) == 0 {
		return nil
	}
	now := s.now()
	if err := tx.Model(&models.VendorEarning{}).Where("id IN ?", earningIDs).Updates(map[string]any{
		"status":                types.EarningStatusProcessed,
		"payout_transaction_id": pt.ID,
		"updated_at":            now,
	}).Error; err != nil {
		return fmt.Errorf("attach earnings to payout %s: %w", pt.ID, err)
	}
	if len(paymentIDs) > 0 {
		if err := tx.Model(&models.Payment{}).Where("id IN ?", paymentIDs).
			Updates(map[string]any{"payout_status": types.PaymentPayoutStatusProcessed, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("mark payments of payout %s processed: %w", pt.ID, err)
		}
	}
	return nil
}

// setEarnings moves every earning attached to the payout, and the payments
// behind them, to the given status. Pending detaches them again.
func (s *Service) setEarnings(tx *gorm.DB, payoutID string, status types.EarningStatus, paymentStatus types.PaymentPayoutStatus) error {
	var paymentIDs []string
	if err := tx.Model(&models.VendorEarning{}).Where("payout_transaction_id = ? AND payment_id IS NOT NULL", payoutID).
		Pluck("payment_id", &paymentIDs).Error; err != nil {
		return fmt.Errorf("list earnings of payout %s: %w", payoutID, err)
	}
	now := s.now()
	updates := map[string]any{"status": status, "updated_at": now}
	if status == types.EarningStatusPending {
		updates["payout_transaction_id"] = nil
	}
	if err := tx.Model(&models.VendorEarning{}).Where("payout_transaction_id = ?", payoutID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update earnings of payout %s: %w", payoutID, err)
	}
	if len(paymentIDs) > 0 {
		if err := tx.Model(&models.Payment{}).Where("id IN ?", paymentIDs).
			Updates(map[string]any{"payout_status": paymentStatus, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("update payments of payout %s: %w", payoutID, err)
		}
	}
	return nil
}

// markFailed fails a locked, non-terminal payout and gives the money back to the vendor.
func (s *Service) markFailed(ctx context.Context, tx *gorm.DB, pt *models.PayoutTransaction, reason string, meta map[string]any) error {
	now := s.now()
	updates := map[string]any{
		"status":         types.PayoutStatusFailed,
		"failure_reason": reason,
		"failed_at":      now,
		"updated_at":     now,
	}
	if raw := toJSON(meta); raw != nil {
		updates["gateway_response"] = *raw
	}
	if err := tx.Model(&models.PayoutTransaction{}).Where("id = ?", pt.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("fail payout %s: %w", pt.ID, err)
	}
	if _, err := s.ledger.ReleasePayout(ctx, tx, pt.VendorID, pt.Amount); err != nil {
		return err
	}
	if err := s.setEarnings(tx, pt.ID, types.EarningStatusPending, types.PaymentPayoutStatusPending); err != nil {
		return err
	}
	if pt.PayoutRequestID != nil {
		if err := tx.Model(&models.PayoutRequest{}).Where("id = ?", *pt.PayoutRequestID).Updates(map[string]any{
			"status":         types.PayoutRequestStatusFailed,
			"failure_reason": reason,
			"processed_at":   now,
			"updated_at":     now,
		}).Error; err != nil {
			return fmt.Errorf("fail payout request %s: %w", *pt.PayoutRequestID, err)
		}
	}
	pt.Status = types.PayoutStatusFailed
	pt.FailureReason = &reason
	pt.FailedAt = &now
	return nil
}

// failAfterGatewayError compensates a payout the gateway refused. It returns
// nil when a callback already resolved the payout.
func (s *Service) failAfterGatewayError(ctx context.Context, payoutID, reason string) (*models.PayoutTransaction, error) {
	var pt *models.PayoutTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		pt, err = lockPayout(ctx, tx, "id", payoutID)
		if err != nil {
			return err
		}
		if pt.Status != types.PayoutStatusInitiated {
			pt = nil
			return nil
		}
		return s.markFailed(ctx, tx, pt, reason, nil)
	})
	if err != nil || pt == nil {
		return nil, err
	}
	s.emitFailed(ctx, pt)
	return pt, nil
}

func (s *Service) emitFailed(ctx context.Context, pt *models.PayoutTransaction) {
	events.Emit(ctx, s.publisher, s.log, events.New(events.PayoutFailed, pt.VendorID, map[string]any{
		"payout_id":      pt.ID,
		"amount":         pt.Amount,
		"payout_method":  pt.PayoutMethod,
		"failure_reason": lo.FromPtr(pt.FailureReason),
	}))
}

// AutoPayout pays out the available balance of a vendor that opted in, once
// it reaches payouts.auto_payout_threshold. The amount is cut down to what the
// gateway can send; the remainder stays available. It returns nil when nothing
// was started.
func (s *Service) AutoPayout(ctx context.Context, vendorID string) (*models.PayoutTransaction, error) {
	threshold := s.cfg.Payouts.AutoThreshold()
	if !threshold.IsPositive() {
		return nil, nil
	}
	var v models.Vendor
	err := s.db.WithContext(ctx).Where("id = ?", vendorID).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("vendor", vendorID)
	}
	if err != nil {
		return nil, fmt.Errorf("load vendor %s: %w", vendorID, err)
	}
	if !v.AutoPayout || !v.IsActive || v.AvailableBalance.LessThan(threshold) {
		return nil, nil
	}
	method := lo.Ternary(v.PayoutMethod != "", v.PayoutMethod, types.PayoutMethodMpesa)
	g, ok := s.gateways[method]
	if !ok {
		logctx.FromCtx(ctx, s.log).Warnw("auto_payout_skipped", "vendor_id", vendorID, "reason", "gateway not configured", "method", method)
		return nil, nil
	}
	amount := payableAmount(g, v.AvailableBalance)
	if !amount.IsPositive() || amount.LessThan(threshold) {
		return nil, nil
	}
	if v.PayoutRecipient(method) == "" {
		logctx.FromCtx(ctx, s.log).Warnw("auto_payout_skipped", "vendor_id", vendorID, "reason", "no recipient", "method", method)
		return nil, nil
	}
	return s.RequestPayout(ctx, vendorID, amount, method, "")
}

func (s *Service) GetPayout(ctx context.Context, payoutID string) (*models.PayoutTransaction, error) {
	var pt models.PayoutTransaction
	err := s.db.WithContext(ctx).Where("id = ?", payoutID).Take(&pt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("payout", payoutID)
	}
	if err != nil {
		return nil, fmt.Errorf("get payout %s: %w", payoutID, err)
	}
	return &pt, nil
}
