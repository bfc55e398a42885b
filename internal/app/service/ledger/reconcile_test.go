package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/tool"
	"github.com/fatflowers/marketplace/pkg/types"
)

func TestReconcile_DetectsAndFixesDrift(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	v := seedVendor(t, db, "0")

	earnings := []*models.VendorEarning{
		{NetAmount: dec("900"), EarningType: types.EarningTypeOrder, Status: types.EarningStatusPaid},
		{NetAmount: dec("450"), EarningType: types.EarningTypeOrder, Status: types.EarningStatusPending},
		{NetAmount: dec("-50"), EarningType: types.EarningTypeAdjustment, Status: types.EarningStatusPending},
		{NetAmount: dec("999"), EarningType: types.EarningTypeOrder, Status: types.EarningStatusCancelled},
	}
	for _, e := range earnings {
		e.ID = tool.GenerateUUIDV7()
		e.VendorID = v.ID
		e.GrossAmount = e.NetAmount
		e.CommissionRate = decimal.Zero
		e.CommissionAmount = decimal.Zero
		require.NoError(t, db.Create(e).Error)
	}
	payouts := []*models.PayoutTransaction{
		{Amount: dec("600"), Status: types.PayoutStatusCompleted},
		{Amount: dec("200"), Status: types.PayoutStatusProcessing},
		{Amount: dec("300"), Status: types.PayoutStatusFailed},
	}
	for _, p := range payouts {
		p.ID = tool.GenerateUUIDV7()
		p.VendorID = v.ID
		p.ExternalReference = p.ID
		p.PayoutMethod = types.PayoutMethodMpesa
		p.Currency = "KES"
		p.Recipient = "254712345678"
		p.InitiatedAt = time.Now()
		require.NoError(t, db.Create(p).Error)
	}

	report, err := s.Reconcile(ctx, v.ID, false)
	require.NoError(t, err)
	require.True(t, report.HasDrift())
	require.False(t, report.Applied)
	require.True(t, report.Computed.TotalEarnings.Equal(dec("1300")))
	require.True(t, report.Computed.TotalPaidOut.Equal(dec("600")))
	require.True(t, report.Computed.PendingPayouts.Equal(dec("200")))
	require.True(t, report.Computed.AvailableBalance.Equal(dec("500")))
	fields := lo.Map(report.Drifts, func(d Drift, _ int) string { return d.Field })
	require.ElementsMatch(t, []string{"total_earnings", "available_balance", "pending_payouts", "total_paid_out"}, fields)

	snap, err := s.GetVendorLedgerSnapshot(ctx, v.ID)
	require.NoError(t, err)
	require.True(t, snap.TotalEarnings.IsZero(), "dry run must not write")

	report, err = s.Reconcile(ctx, v.ID, true)
	require.NoError(t, err)
	require.True(t, report.Applied)

	snap, err = s.GetVendorLedgerSnapshot(ctx, v.ID)
	require.NoError(t, err)
	require.True(t, snap.AvailableBalance.Equal(dec("500")))
	require.True(t, snap.PendingPayouts.Equal(dec("200")))
	require.True(t, snap.TotalPaidOut.Equal(dec("600")))

	report, err = s.Reconcile(ctx, v.ID, false)
	require.NoError(t, err)
	require.False(t, report.HasDrift())
}

func TestReconcileAll_ReturnsOnlyDrifted(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	clean := seedVendor(t, db, "0")
	drifted := seedVendor(t, db, "75")

	reports, err := s.ReconcileAll(ctx, false)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, drifted.ID, reports[0].VendorID)
	require.NotEqual(t, clean.ID, reports[0].VendorID)
}
