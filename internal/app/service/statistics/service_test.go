package statistics

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/internal/platform/db/dbtest"
	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/tool"
	"github.com/fatflowers/marketplace/pkg/types"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedVendor(t *testing.T, db *gorm.DB, active bool) *models.Vendor {
	t.Helper()
	v := &models.Vendor{ID: tool.GenerateUUIDV7(), BusinessName: "vendor", IsActive: active}
	require.NoError(t, db.Create(v).Error)
	return v
}

func seedPayment(t *testing.T, db *gorm.DB, vendorID, amount string, status types.PaymentStatus, completedAt time.Time) {
	t.Helper()
	gross := dec(amount)
	commission := gross.Mul(dec("0.1"))
	p := &models.Payment{
		ID:               tool.GenerateUUIDV7(),
		OrderID:          tool.GenerateUUIDV7(),
		VendorID:         vendorID,
		Amount:           gross,
		Currency:         "KES",
		PaymentMethod:    types.PaymentMethodMpesa,
		Status:           status,
		CommissionRate:   dec("10"),
		CommissionAmount: commission,
		VendorEarnings:   gross.Sub(commission),
		PayoutStatus:     types.PaymentPayoutStatusPending,
	}
	if status == types.PaymentStatusCompleted {
		p.CompletedAt = lo.ToPtr(completedAt)
	}
	require.NoError(t, db.Create(p).Error)
}

func seedPaidEarning(t *testing.T, db *gorm.DB, vendorID string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.VendorEarning{
		ID:               tool.GenerateUUIDV7(),
		VendorID:         vendorID,
		EarningType:      types.EarningTypeOrder,
		GrossAmount:      dec("100"),
		CommissionRate:   dec("10"),
		CommissionAmount: dec("10"),
		NetAmount:        dec("90"),
		Status:           types.EarningStatusPaid,
		CreatedAt:        createdAt,
	}).Error)
}

func newSeeded(t *testing.T) (*Service, *gorm.DB) {
	db := dbtest.New(t)
	a := seedVendor(t, db, true)
	b := seedVendor(t, db, true)
	seedVendor(t, db, false)

	seedPayment(t, db, a.ID, "1000", types.PaymentStatusCompleted, now.Add(-2*time.Hour))
	seedPayment(t, db, b.ID, "500", types.PaymentStatusCompleted, now.AddDate(0, 0, -3))
	seedPayment(t, db, a.ID, "2000", types.PaymentStatusCompleted, now.AddDate(0, 0, -10))
	seedPayment(t, db, b.ID, "700", types.PaymentStatusProcessing, time.Time{})

	seedPaidEarning(t, db, a.ID, now.AddDate(0, 0, -2))
	seedPaidEarning(t, db, b.ID, now.AddDate(0, 0, -20))

	require.NoError(t, db.Create(&models.Order{
		ID: tool.GenerateUUIDV7(), CustomerID: "c", VendorID: a.ID, OrderType: types.OrderTypeService, Quantity: 1,
		UnitPrice: dec("1000"), TotalAmount: dec("1000"), Status: types.OrderStatusCompleted,
		PaymentStatus: types.OrderPaymentStatusPaid, CommissionRate: dec("10"), Priority: types.OrderPriorityNormal,
		DeliveryType: types.DeliveryTypePickup, CompletedAt: lo.ToPtr(now.AddDate(0, 0, -1)),
	}).Error)

	return New(db, zap.NewNop().Sugar()), db
}

func TestGenerateCommissionSummary(t *testing.T) {
	svc, _ := newSeeded(t)
	ctx := context.Background()

	cases := []struct {
		period      types.PeriodType
		payments    int64
		amount      string
		commission  string
		payouts     string
		withPayouts int64
	}{
		{types.PeriodTypeDaily, 1, "1000", "100", "900", 0},
		{types.PeriodTypeWeekly, 2, "1500", "150", "1350", 1},
		{types.PeriodTypeMonthly, 3, "3500", "350", "3150", 2},
	}
	for _, tc := range cases {
		t.Run(string(tc.period), func(t *testing.T) {
			sum, err := svc.GenerateCommissionSummary(ctx, tc.period, now)
			require.NoError(t, err)
			require.Equal(t, tc.payments, sum.TotalPayments)
			require.True(t, sum.TotalAmount.Equal(dec(tc.amount)), "amount %s", sum.TotalAmount)
			require.True(t, sum.TotalCommission.Equal(dec(tc.commission)), "commission %s", sum.TotalCommission)
			require.True(t, sum.TotalVendorPayouts.Equal(dec(tc.payouts)), "payouts %s", sum.TotalVendorPayouts)
			require.Equal(t, int64(2), sum.ActiveVendors)
			require.Equal(t, tc.withPayouts, sum.VendorsWithPayouts)
			require.True(t, sum.PeriodEnd.Equal(now))
		})
	}

	_, err := svc.GenerateCommissionSummary(ctx, "hourly", now)
	require.ErrorIs(t, err, apperr.ErrValidation)

	all, err := svc.ListCommissionSummaries(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	weekly, err := svc.ListCommissionSummaries(ctx, types.PeriodTypeWeekly, 10)
	require.NoError(t, err)
	require.Len(t, weekly, 1)

	got, err := svc.GetCommissionSummary(ctx, weekly[0].ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.TotalPayments)
	_, err = svc.GetCommissionSummary(ctx, "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRevenueReport(t *testing.T) {
	svc, _ := newSeeded(t)
	rep, err := svc.RevenueReport(context.Background(), 7, now)
	require.NoError(t, err)
	require.Equal(t, 7, rep.PeriodDays)
	require.Equal(t, int64(2), rep.TotalPayments)
	require.True(t, rep.TotalAmount.Equal(dec("1500")))
	require.True(t, rep.TotalCommission.Equal(dec("150")))
	require.True(t, rep.TotalVendorEarnings.Equal(dec("1350")))
	require.True(t, rep.AverageCommissionRate.Equal(dec("10")))
	require.Equal(t, int64(1), rep.CompletedOrders)
}

func TestExportCommissionSummaries(t *testing.T) {
	svc, _ := newSeeded(t)
	ctx := context.Background()
	sum, err := svc.GenerateCommissionSummary(ctx, types.PeriodTypeWeekly, now)
	require.NoError(t, err)

	data, err := svc.ExportCommissionSummaries(ctx, types.PeriodTypeWeekly, 0)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "period_type", rows[0][1])
	require.Equal(t, sum.ID, rows[1][0])
	require.Equal(t, "weekly", rows[1][1])
	require.Equal(t, "1500.00", rows[1][5])
	require.Equal(t, "150.00", rows[1][6])
}

func TestGetDailyStatistic(t *testing.T) {
	svc, _ := newSeeded(t)
	ctx := context.Background()

	res, err := svc.GetDailyStatistic(ctx, &StatisticRequest{
		Filters: []*types.CommonFilter{
			{Field: string(StatisticFilterTypePaymentMethod), Operator: types.CommonFilterOperatorEq, Values: []any{"mpesa"}},
		},
		DataItems: []*StatisticDataItem{{ID: StatisticTypeDailyGmv}, {ID: StatisticTypeDailyPaymentCount}, {ID: StatisticTypeDailyPayouts}},
	})
	require.NoError(t, err)

	gmv := res.DataItems[StatisticTypeDailyGmv]
	require.Len(t, gmv, 3)
	require.Equal(t, "2026-05-10", gmv[0].Date)
	require.Equal(t, "KES", gmv[0].Label)
	require.Equal(t, "1000", gmv[0].Value)
	require.Equal(t, "2026-04-30", gmv[2].Date)
	require.Equal(t, "2000", gmv[2].Value)

	counts := res.DataItems[StatisticTypeDailyPaymentCount]
	require.Len(t, counts, 3)
	require.Equal(t, "1", counts[0].Value)

	payouts, ok := res.DataItems[StatisticTypeDailyPayouts]
	require.True(t, ok)
	require.Nil(t, payouts, "payment_method does not apply to payouts")

	_, err = svc.GetDailyStatistic(ctx, &StatisticRequest{DataItems: []*StatisticDataItem{{ID: "bogus"}}})
	require.ErrorIs(t, err, apperr.ErrValidation)
}
