package webhook_log

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/internal/platform/db/dbtest"
	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/types"
)

func seed(t *testing.T, s *Service) {
	t.Helper()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := []*models.PaymentWebhookLog{
		{ID: "l-1", Provider: "mpesa", WebhookType: models.WebhookTypeMpesaSTK, Reference: "ws_CO_1", Status: models.PaymentWebhookLogStatusReceived, CreatedAt: base},
		{ID: "l-2", Provider: "mpesa", WebhookType: models.WebhookTypeMpesaSTK, Reference: "ws_CO_1", Status: models.PaymentWebhookLogStatusHandleFailed, CreatedAt: base.Add(time.Second)},
		{ID: "l-3", Provider: "mpesa", WebhookType: models.WebhookTypeMpesaB2C, Reference: "payout-1", Status: models.PaymentWebhookLogStatusHandled, CreatedAt: base.Add(2 * time.Second)},
		{ID: "l-4", Provider: "paypal", WebhookType: models.WebhookTypePayPal, Reference: "5O19", Status: models.PaymentWebhookLogStatusHandled, CreatedAt: base.Add(3 * time.Second)},
	}
	for _, r := range rows {
		r.ReceivedAt = r.CreatedAt
		r.Data = datatypes.JSON(`{}`)
		s.Save(context.Background(), r)
	}
	s.Wait()
}

func TestScan(t *testing.T) {
	s := New(dbtest.New(t), zap.NewNop().Sugar())
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     *types.ScanRequest
		wantIDs []string
		total   int64
	}{
		{name: "newest first", req: &types.ScanRequest{}, wantIDs: []string{"l-4", "l-3", "l-2", "l-1"}, total: 4},
		{
			name: "by reference",
			req: &types.ScanRequest{Filters: []*types.CommonFilter{
				{Field: "reference", Operator: types.CommonFilterOperatorEq, Values: []any{"ws_CO_1"}},
			}, SortOrder: "asc"},
			wantIDs: []string{"l-1", "l-2"},
			total:   2,
		},
		{
			name: "failed only",
			req: &types.ScanRequest{Filters: []*types.CommonFilter{
				{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{"handle_failed"}},
			}},
			wantIDs: []string{"l-2"},
			total:   1,
		},
		{name: "paged", req: &types.ScanRequest{From: 1, Size: 2}, wantIDs: []string{"l-3", "l-2"}, total: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Scan(ctx, tt.req)
			require.NoError(t, err)
			require.Equal(t, tt.total, res.Total)
			ids := make([]string, 0, len(res.Items))
			for _, r := range res.Items {
				ids = append(ids, r.ID)
			}
			require.Equal(t, tt.wantIDs, ids)
		})
	}

	_, err := s.Scan(ctx, &types.ScanRequest{Filters: []*types.CommonFilter{
		{Field: "data", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}},
	}})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGet(t *testing.T) {
	s := New(dbtest.New(t), zap.NewNop().Sugar())
	seed(t, s)

	row, err := s.Get(context.Background(), "l-3")
	require.NoError(t, err)
	require.Equal(t, models.WebhookTypeMpesaB2C, row.WebhookType)

	_, err = s.Get(context.Background(), "l-9")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
