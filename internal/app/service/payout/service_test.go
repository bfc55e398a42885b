package payout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/marketplace/internal/app/service/events"
	"github.com/fatflowers/marketplace/internal/app/service/ledger"
	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/internal/platform/cache"
	"github.com/fatflowers/marketplace/internal/platform/db/dbtest"
	"github.com/fatflowers/marketplace/internal/platform/mpesa"
	"github.com/fatflowers/marketplace/pkg/apperr"
	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
	"github.com/fatflowers/marketplace/pkg/tool"
	"github.com/fatflowers/marketplace/pkg/types"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubGateway struct {
	mu    sync.Mutex
	calls []*DisbursementRequest
	err   error
}

func (g *stubGateway) Method() types.PayoutMethod { return types.PayoutMethodMpesa }

func (g *stubGateway) Disburse(_ context.Context, req *DisbursementRequest) (*DisbursementAck, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return &DisbursementAck{ConversationID: fmt.Sprintf("AG_%d", len(g.calls)), Raw: map[string]any{"ResponseCode": "0"}}, nil
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	ledger   *ledger.Service
	gw       *stubGateway
	pub      *events.MemoryPublisher
	cfg      *cfgpkg.Config
	vendor   *models.Vendor
	earnings []*models.VendorEarning
}

// newFixture seeds a vendor with available balance 500 made of a 200 and a 300 earning.
func newFixture(t *testing.T) *fixture {
	db := dbtest.New(t)
	log := zap.NewNop().Sugar()
	cfg := &cfgpkg.Config{
		Payments: cfgpkg.PaymentsConfig{Currency: "KES"},
		Payouts:  cfgpkg.PayoutsConfig{MinimumAmount: "100"},
	}
	l := ledger.NewService(db, log)
	f := &fixture{db: db, ledger: l, gw: &stubGateway{}, pub: &events.MemoryPublisher{}, cfg: cfg}
	f.svc = NewService(db, cfg, log, l, f.pub, f.gw)

	f.vendor = &models.Vendor{ID: tool.GenerateUUIDV7(), BusinessName: "Gas Hub", Phone: "254712345678", IsActive: true}
	require.NoError(t, db.Create(f.vendor).Error)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, net := range []string{"200", "300"} {
		e := &models.VendorEarning{
			ID:               tool.GenerateUUIDV7(),
			VendorID:         f.vendor.ID,
			EarningType:      types.EarningTypeOrder,
			GrossAmount:      dec(net),
			CommissionRate:   decimal.Zero,
			CommissionAmount: decimal.Zero,
			NetAmount:        dec(net),
			Status:           types.EarningStatusPending,
			CreatedAt:        base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, db.Create(e).Error)
		f.earnings = append(f.earnings, e)
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := l.CreditEarnings(context.Background(), tx, f.vendor.ID, dec("500"))
		return err
	}))
	return f
}

func (f *fixture) snapshot(t *testing.T) *ledger.Snapshot {
	t.Helper()
	snap, err := f.ledger.GetVendorLedgerSnapshot(context.Background(), f.vendor.ID)
	require.NoError(t, err)
	return snap
}

func (f *fixture) earning(t *testing.T, id string) *models.VendorEarning {
	t.Helper()
	var e models.VendorEarning
	require.NoError(t, f.db.Where("id = ?", id).Take(&e).Error)
	return &e
}

func requireBalances(t *testing.T, snap *ledger.Snapshot, available, pending, paid string) {
	t.Helper()
	require.True(t, snap.AvailableBalance.Equal(dec(available)), "available %s", snap.AvailableBalance)
	require.True(t, snap.PendingPayouts.Equal(dec(pending)), "pending %s", snap.PendingPayouts)
	require.True(t, snap.TotalPaidOut.Equal(dec(paid)), "paid out %s", snap.TotalPaidOut)
}

func TestRequestPayout_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	before := f.snapshot(t)

	_, err := f.svc.RequestPayout(context.Background(), f.vendor.ID, dec("600"), types.PayoutMethodMpesa, "")
	require.ErrorIs(t, err, apperr.ErrInsufficientBalance)
	var ib *apperr.InsufficientBalanceError
	require.True(t, errors.As(err, &ib))
	require.True(t, ib.Available.Equal(dec("500")))
	require.True(t, ib.Requested.Equal(dec("600")))

	after := f.snapshot(t)
	requireBalances(t, after, "500", "0", "0")
	require.Equal(t, before.Version, after.Version)
	require.Empty(t, f.gw.calls)

	var n int64
	require.NoError(t, f.db.Model(&models.PayoutTransaction{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestRequestPayout_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestPayout(ctx, f.vendor.ID, dec("0"), types.PayoutMethodMpesa, "")
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.RequestPayout(ctx, f.vendor.ID, dec("100"), types.PayoutMethodPayPal, "v@example.com")
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.RequestPayout(ctx, "missing", dec("100"), types.PayoutMethodMpesa, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	requireBalances(t, f.snapshot(t), "500", "0", "0")
}

func TestRequestPayout_SettledByCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pt, err := f.svc.RequestPayout(ctx, f.vendor.ID, dec("200"), types.PayoutMethodMpesa, "")
	require.NoError(t, err)
	require.Equal(t, types.PayoutStatusProcessing, pt.Status)
	require.Equal(t, "254712345678", pt.Recipient)
	require.Equal(t, "AG_1", *pt.GatewayConversationID)
	require.Len(t, f.gw.calls, 1)
	require.Equal(t, pt.ExternalReference, f.gw.calls[0].Reference)
	requireBalances(t, f.snapshot(t), "300", "200", "0")

	first, second := f.earning(t, f.earnings[0].ID), f.earning(t, f.earnings[1].ID)
	require.Equal(t, types.EarningStatusProcessed, first.Status)
	require.Equal(t, pt.ID, *first.PayoutTransactionID)
	require.Equal(t, types.EarningStatusPending, second.Status)
	require.Nil(t, second.PayoutTransactionID)

	out, err := f.svc.HandlePayoutCallback(ctx, &PayoutCallbackResult{
		Provider:          types.CallbackProviderMpesa,
		ExternalReference: pt.ExternalReference,
		Success:           true,
		ResultCode:        "0",
		ConversationID:    "AG_1",
		Metadata:          map[string]any{"TransactionID": "NLJ41HAY6Q"},
	})
	require.NoError(t, err)
	require.Equal(t, BranchCompleted, out.Branch)
	requireBalances(t, f.snapshot(t), "300", "0", "200")

	got, err := f.svc.GetPayout(ctx, pt.ID)
	require.NoError(t, err)
	require.Equal(t, types.PayoutStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.Equal(t, types.EarningStatusPaid, f.earning(t, first.ID).Status)
	require.Len(t, f.pub.OfType(events.PayoutCompleted), 1)

	// redelivery changes nothing
	out, err = f.svc.HandlePayoutCallback(ctx, &PayoutCallbackResult{ExternalReference: pt.ExternalReference, Success: true})
	require.NoError(t, err)
	require.Equal(t, BranchDuplicate, out.Branch)
	requireBalances(t, f.snapshot(t), "300", "0", "200")
	require.Len(t, f.pub.OfType(events.PayoutCompleted), 1)
}

func TestRequestPayout_FailedCallbackReleasesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pt, err := f.svc.RequestPayout(ctx, f.vendor.ID, dec("500"), types.PayoutMethodMpesa, "")
	require.NoError(t, err)
	requireBalances(t, f.snapshot(t), "0", "500", "0")
	for _, e := range f.earnings {
		require.Equal(t, types.EarningStatusProcessed, f.earning(t, e.ID).Status)
	}

	out, err := f.svc.HandlePayoutCallback(ctx, &PayoutCallbackResult{
		Provider:          types.CallbackProviderMpesa,
		ExternalReference: pt.ExternalReference,
		ResultCode:        "2001",
		ResultDesc:        "The initiator information is invalid.",
	})
	require.NoError(t, err)
	require.Equal(t, BranchFailed, out.Branch)
	requireBalances(t, f.snapshot(t), "500", "0", "0")

	got, err := f.svc.GetPayout(ctx, pt.ID)
	require.NoError(t, err)
	require.Equal(t, types.PayoutStatusFailed, got.Status)
	require.Equal(t, "The initiator information is invalid.", *got.FailureReason)
	for _, e := range f.earnings {
		fresh := f.earning(t, e.ID)
		require.Equal(t, types.EarningStatusPending, fresh.Status)
		require.Nil(t, fresh.PayoutTransactionID)
	}
	require.Len(t, f.pub.OfType(events.PayoutFailed), 1)

	// a late success for a failed payout is ignored
	out, err = f.svc.HandlePayoutCallback(ctx, &PayoutCallbackResult{ExternalReference: pt.ExternalReference, Success: true})
	require.NoError(t, err)
	require.Equal(t, BranchDuplicate, out.Branch)
	requireBalances(t, f.snapshot(t), "500", "0", "0")
}

func TestRequestPayout_GatewayErrorReleasesBalance(t *testing.T) {
	f := newFixture(t)
	f.gw.err = errors.New("dial tcp: i/o timeout")

	pt, err := f.svc.RequestPayout(context.Background(), f.vendor.ID, dec("200"), types.PayoutMethodMpesa, "")
	require.ErrorIs(t, err, apperr.ErrUpstreamGateway)
	require.NotNil(t, pt)
	require.Equal(t, types.PayoutStatusFailed, pt.Status)
	requireBalances(t, f.snapshot(t), "500", "0", "0")
	require.Equal(t, types.EarningStatusPending, f.earning(t, f.earnings[0].ID).Status)
	require.Len(t, f.pub.OfType(events.PayoutFailed), 1)
}

func TestHandlePayoutCallback_UnknownReference(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.HandlePayoutCallback(context.Background(), &PayoutCallbackResult{ExternalReference: "nope", Success: true})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.Equal(t, BranchNotFound, out.Branch)

	_, err = f.svc.HandlePayoutCallback(context.Background(), &PayoutCallbackResult{})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPayoutRequestWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePayoutRequest(ctx, &CreatePayoutRequestInput{VendorID: f.vendor.ID, Amount: dec("50")})
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.CreatePayoutRequest(ctx, &CreatePayoutRequestInput{VendorID: f.vendor.ID, Amount: dec("800")})
	require.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	req, err := f.svc.CreatePayoutRequest(ctx, &CreatePayoutRequestInput{VendorID: f.vendor.ID, Amount: dec("200")})
	require.NoError(t, err)
	require.Equal(t, types.PayoutRequestStatusPending, req.Status)
	require.Equal(t, types.PayoutMethodMpesa, req.PayoutMethod)
	require.Equal(t, "254712345678", req.Recipient)
	requireBalances(t, f.snapshot(t), "500", "0", "0")

	_, err = f.svc.ProcessPayoutRequest(ctx, req.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	req, err = f.svc.ApprovePayoutRequest(ctx, req.ID, "admin-1")
	require.NoError(t, err)
	require.Equal(t, types.PayoutRequestStatusApproved, req.Status)
	require.Equal(t, "admin-1", *req.ApprovedBy)

	req, err = f.svc.ProcessPayoutRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, types.PayoutRequestStatusProcessing, req.Status)
	require.NotNil(t, req.PayoutTransactionID)
	requireBalances(t, f.snapshot(t), "300", "200", "0")

	pt, err := f.svc.GetPayout(ctx, *req.PayoutTransactionID)
	require.NoError(t, err)
	require.Equal(t, req.ID, *pt.PayoutRequestID)

	_, err = f.svc.HandlePayoutCallback(ctx, &PayoutCallbackResult{ExternalReference: pt.ExternalReference, Success: true})
	require.NoError(t, err)
	var done models.PayoutRequest
	require.NoError(t, f.db.Where("id = ?", req.ID).Take(&done).Error)
	require.Equal(t, types.PayoutRequestStatusCompleted, done.Status)
	require.NotNil(t, done.ProcessedAt)

	_, err = f.svc.RejectPayoutRequest(ctx, req.ID, "too late")
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestRejectPayoutRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.CreatePayoutRequest(ctx, &CreatePayoutRequestInput{VendorID: f.vendor.ID, Amount: dec("100"), Recipient: "0722000000"})
	require.NoError(t, err)
	require.Equal(t, "0722000000", req.Recipient)

	_, err = f.svc.RejectPayoutRequest(ctx, req.ID, "")
	require.ErrorIs(t, err, apperr.ErrValidation)
	req, err = f.svc.RejectPayoutRequest(ctx, req.ID, "duplicate request")
	require.NoError(t, err)
	require.Equal(t, types.PayoutRequestStatusRejected, req.Status)
	require.Equal(t, "duplicate request", *req.FailureReason)

	_, err = f.svc.ApprovePayoutRequest(ctx, req.ID, "admin-1")
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = f.svc.ApprovePayoutRequest(ctx, "missing", "admin-1")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestProcessPayoutRequest_BalanceSpentMeanwhile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.CreatePayoutRequest(ctx, &CreatePayoutRequestInput{VendorID: f.vendor.ID, Amount: dec("400")})
	require.NoError(t, err)
	_, err = f.svc.ApprovePayoutRequest(ctx, req.ID, "admin-1")
	require.NoError(t, err)

	_, err = f.svc.RequestPayout(ctx, f.vendor.ID, dec("200"), types.PayoutMethodMpesa, "")
	require.NoError(t, err)

	req, err = f.svc.ProcessPayoutRequest(ctx, req.ID)
	require.ErrorIs(t, err, apperr.ErrInsufficientBalance)
	require.Equal(t, types.PayoutRequestStatusFailed, req.Status)
	require.Nil(t, req.PayoutTransactionID)
	requireBalances(t, f.snapshot(t), "300", "200", "0")
}

func TestBulkProcessPayoutRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approved, err := f.svc.CreatePayoutRequest(ctx, &CreatePayoutRequestInput{VendorID: f.vendor.ID, Amount: dec("200")})
	require.NoError(t, err)
	_, err = f.svc.ApprovePayoutRequest(ctx, approved.ID, "admin-1")
	require.NoError(t, err)
	pending, err := f.svc.CreatePayoutRequest(ctx, &CreatePayoutRequestInput{VendorID: f.vendor.ID, Amount: dec("100")})
	require.NoError(t, err)

	res := f.svc.BulkProcessPayoutRequests(ctx, []string{approved.ID, pending.ID, approved.ID})
	require.Equal(t, []string{approved.ID}, res.Successful)
	require.Len(t, res.Failed, 1)
	require.Equal(t, pending.ID, res.Failed[0].ID)
	require.Contains(t, res.Failed[0].Error, "Cannot change status from pending to processing")
}

func TestAutoPayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pt, err := f.svc.AutoPayout(ctx, f.vendor.ID)
	require.NoError(t, err)
	require.Nil(t, pt, "auto payouts are off without a threshold")

	f.cfg.Payouts.AutoPayoutThreshold = "400"
	pt, err = f.svc.AutoPayout(ctx, f.vendor.ID)
	require.NoError(t, err)
	require.Nil(t, pt, "vendor has not opted in")

	require.NoError(t, f.db.Model(&models.Vendor{}).Where("id = ?", f.vendor.ID).Update("auto_payout", true).Error)
	pt, err = f.svc.AutoPayout(ctx, f.vendor.ID)
	require.NoError(t, err)
	require.NotNil(t, pt)
	require.True(t, pt.Amount.Equal(dec("500")))
	requireBalances(t, f.snapshot(t), "0", "500", "0")

	pt, err = f.svc.AutoPayout(ctx, f.vendor.ID)
	require.NoError(t, err)
	require.Nil(t, pt, "balance is below the threshold now")
	require.Len(t, f.gw.calls, 1)
	require.True(t, f.gw.calls[0].Amount.Equal(dec("500")))
}

// darajaB2C serves OAuth and B2C on a loopback port and records B2C amounts.
type darajaB2C struct {
	mu      sync.Mutex
	amounts []float64
}

func (d *darajaB2C) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/oauth/v1/generate":
		ctx.SetBodyString(`{"access_token":"tok-1","expires_in":"3599"}`)
	case "/mpesa/b2c/v3/paymentrequest":
		var body struct{ Amount float64 }
		_ = json.Unmarshal(ctx.PostBody(), &body)
		d.mu.Lock()
		d.amounts = append(d.amounts, body.Amount)
		d.mu.Unlock()
		ctx.SetBodyString(`{"ConversationID":"AG_1","OriginatorConversationID":"po-1","ResponseCode":"0","ResponseDescription":"Accept the service request successfully."}`)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func newMpesaGateway(t *testing.T) (DisbursementGateway, *darajaB2C) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	stub := &darajaB2C{}
	go func() { _ = fasthttp.Serve(ln, stub.handle) }()
	t.Cleanup(func() { _ = ln.Close() })

	client := mpesa.NewClient(cfgpkg.MpesaConfig{
		BaseURL:         "http://" + ln.Addr().String(),
		ConsumerKey:     "key",
		ConsumerSecret:  "secret",
		ShortCode:       "174379",
		CallbackBaseURL: "https://api.example.com",
		InitiatorName:   "apiop",
		TimeoutSeconds:  5,
	}, cache.NewMemoryCache("test"), zap.NewNop().Sugar())
	g := NewMpesaDisbursement(client)
	require.NotNil(t, g)
	return g, stub
}

func TestAutoPayout_MpesaPaysWholeShillings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gw, daraja := newMpesaGateway(t)
	f.svc = NewService(f.db, f.cfg, zap.NewNop().Sugar(), f.ledger, f.pub, gw)

	// 10% commission on 1005 leaves 904.50 on top of the fixture's 500
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.CreditEarnings(ctx, tx, f.vendor.ID, dec("904.50"))
		return err
	}))
	f.cfg.Payouts.AutoPayoutThreshold = "400"
	require.NoError(t, f.db.Model(&models.Vendor{}).Where("id = ?", f.vendor.ID).Update("auto_payout", true).Error)

	pt, err := f.svc.AutoPayout(ctx, f.vendor.ID)
	require.NoError(t, err)
	require.NotNil(t, pt)
	require.Equal(t, types.PayoutStatusProcessing, pt.Status)
	require.True(t, pt.Amount.Equal(dec("1404")), "amount %s", pt.Amount)
	requireBalances(t, f.snapshot(t), "0.50", "1404", "0")
	require.Equal(t, []float64{1404}, daraja.amounts)

	pt, err = f.svc.AutoPayout(ctx, f.vendor.ID)
	require.NoError(t, err)
	require.Nil(t, pt, "the cents left over stay available")

	var failed int64
	require.NoError(t, f.db.Model(&models.PayoutTransaction{}).Where("status = ?", types.PayoutStatusFailed).Count(&failed).Error)
	require.Zero(t, failed)
}

func TestRequestPayout_MpesaRejectsCentsBeforeReserving(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gw, daraja := newMpesaGateway(t)
	f.svc = NewService(f.db, f.cfg, zap.NewNop().Sugar(), f.ledger, f.pub, gw)
	before := f.snapshot(t)

	_, err := f.svc.RequestPayout(ctx, f.vendor.ID, dec("200.50"), types.PayoutMethodMpesa, "")
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Contains(t, err.Error(), "largest payable amount is 200")

	after := f.snapshot(t)
	requireBalances(t, after, "500", "0", "0")
	require.Equal(t, before.Version, after.Version)
	require.Empty(t, daraja.amounts)
	require.Empty(t, f.pub.Events())

	var n int64
	require.NoError(t, f.db.Model(&models.PayoutTransaction{}).Count(&n).Error)
	require.Zero(t, n)

	_, err = f.svc.CreatePayoutRequest(ctx, &CreatePayoutRequestInput{VendorID: f.vendor.ID, Amount: dec("150.25"), PayoutMethod: types.PayoutMethodMpesa})
	require.ErrorIs(t, err, apperr.ErrValidation)
}
