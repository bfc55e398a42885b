package webhook_log

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/tool"
	"github.com/fatflowers/marketplace/pkg/types"
)

var logColumns = types.ScanColumns{
	Filter: []string{"id", "provider", "webhook_type", "reference", "trace_id", "status", "received_at", "created_at"},
	Sort:   []string{"created_at", "received_at"},
}

type Service struct {
	db      *gorm.DB
	log     *zap.SugaredLogger
	pending sync.WaitGroup
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a webhook log. Nil input is ignored.
func (s *Service) Save(ctx context.Context, entry *models.PaymentWebhookLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save webhook log: %v", err)
		}
	}()
}

// Wait blocks until every log handed to Save is written.
func (s *Service) Wait() { s.pending.Wait() }

// ListByReference returns the logs of one gateway reference, oldest first.
func (s *Service) ListByReference(ctx context.Context, reference string) ([]*models.PaymentWebhookLog, error) {
	if reference == "" {
		return nil, errors.New("empty reference")
	}
	var rows []*models.PaymentWebhookLog
	if err := s.db.WithContext(ctx).Where("reference = ?", reference).Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list webhook logs of %s: %w", reference, err)
	}
	return rows, nil
}

// Get loads one log row.
func (s *Service) Get(ctx context.Context, id string) (*models.PaymentWebhookLog, error) {
	var row models.PaymentWebhookLog
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("webhook log", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook log %s: %w", id, err)
	}
	return &row, nil
}

// Scan pages the logs for the admin list, newest first by default.
func (s *Service) Scan(ctx context.Context, req *types.ScanRequest) (*types.ScanResult[models.PaymentWebhookLog], error) {
	res, err := types.Scan[models.PaymentWebhookLog](s.db.WithContext(ctx).Model(&models.PaymentWebhookLog{}), req, logColumns)
	if err != nil {
		return nil, fmt.Errorf("scan webhook logs: %w", err)
	}
	return res, nil
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Service) {
		lc.Append(fx.StopHook(s.Wait))
	}),
)
