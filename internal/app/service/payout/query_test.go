package payout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/tool"
	"github.com/fatflowers/marketplace/pkg/types"
)

func vendorFilter(vendorID string, extra ...*types.CommonFilter) []*types.CommonFilter {
	return append([]*types.CommonFilter{{Field: "vendor_id", Operator: types.CommonFilterOperatorEq, Values: []any{vendorID}}}, extra...)
}

func TestScanPayoutRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreatePayoutRequest(ctx, &CreatePayoutRequestInput{VendorID: f.vendor.ID, Amount: dec("150")})
	require.NoError(t, err)
	second, err := f.svc.CreatePayoutRequest(ctx, &CreatePayoutRequestInput{VendorID: f.vendor.ID, Amount: dec("250")})
	require.NoError(t, err)
	_, err = f.svc.ApprovePayoutRequest(ctx, second.ID, "admin-1")
	require.NoError(t, err)

	all, err := f.svc.ScanPayoutRequests(ctx, &types.ScanRequest{SortBy: "amount", SortOrder: "asc"})
	require.NoError(t, err)
	require.EqualValues(t, 2, all.Total)
	require.Equal(t, first.ID, all.Items[0].ID)

	approved, err := f.svc.ScanPayoutRequests(ctx, &types.ScanRequest{Filters: []*types.CommonFilter{
		{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{string(types.PayoutRequestStatusApproved)}},
	}})
	require.NoError(t, err)
	require.EqualValues(t, 1, approved.Total)
	require.Equal(t, second.ID, approved.Items[0].ID)

	_, err = f.svc.ScanPayoutRequests(ctx, &types.ScanRequest{Filters: []*types.CommonFilter{
		{Field: "recipient", Operator: types.CommonFilterOperatorEq, Values: []any{"254712345678"}},
	}})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestScanPayoutsAndEarnings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pt, err := f.svc.RequestPayout(ctx, f.vendor.ID, dec("200"), types.PayoutMethodMpesa, "")
	require.NoError(t, err)

	payouts, err := f.svc.ScanPayouts(ctx, &types.ScanRequest{Filters: vendorFilter(f.vendor.ID)})
	require.NoError(t, err)
	require.EqualValues(t, 1, payouts.Total)
	require.Equal(t, pt.ID, payouts.Items[0].ID)

	none, err := f.svc.ScanPayouts(ctx, &types.ScanRequest{Filters: vendorFilter(tool.GenerateUUIDV7())})
	require.NoError(t, err)
	require.Zero(t, none.Total)
	require.Empty(t, none.Items)

	earnings, err := f.svc.ScanEarnings(ctx, &types.ScanRequest{Filters: vendorFilter(f.vendor.ID,
		&types.CommonFilter{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{string(types.EarningStatusPending)}},
	)})
	require.NoError(t, err)
	require.EqualValues(t, 1, earnings.Total)
	require.Equal(t, f.earnings[1].ID, earnings.Items[0].ID)

	_, err = f.svc.ScanEarnings(ctx, &types.ScanRequest{SortBy: "note"})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestVendorPayoutSummaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	idle := &models.Vendor{ID: tool.GenerateUUIDV7(), BusinessName: "Alpha Gas", IsActive: true, PayoutMethod: types.PayoutMethodPayPal}
	closed := &models.Vendor{ID: tool.GenerateUUIDV7(), BusinessName: "Closed Gas", IsActive: false}
	require.NoError(t, f.db.Create(idle).Error)
	require.NoError(t, f.db.Create(closed).Error)
	require.NoError(t, f.db.Model(closed).Update("is_active", false).Error)

	pt, err := f.svc.RequestPayout(ctx, f.vendor.ID, dec("200"), types.PayoutMethodMpesa, "")
	require.NoError(t, err)
	_, err = f.svc.HandlePayoutCallback(ctx, &PayoutCallbackResult{ExternalReference: pt.ExternalReference, Success: true})
	require.NoError(t, err)
	done, err := f.svc.GetPayout(ctx, pt.ID)
	require.NoError(t, err)

	rows, err := f.svc.VendorPayoutSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, "Alpha Gas", rows[0].VendorName)
	require.Equal(t, types.PayoutMethodPayPal, rows[0].PayoutMethod)
	require.Nil(t, rows[0].LastPayoutAt)

	hub := rows[1]
	require.Equal(t, f.vendor.ID, hub.VendorID)
	require.Equal(t, types.PayoutMethodMpesa, hub.PayoutMethod)
	require.True(t, hub.AvailableBalance.Equal(dec("300")))
	require.True(t, hub.TotalPaidOut.Equal(dec("200")))
	require.True(t, hub.PendingPayouts.IsZero())
	require.NotNil(t, hub.LastPayoutAt)
	require.True(t, hub.LastPayoutAt.Equal(*done.CompletedAt))
}
