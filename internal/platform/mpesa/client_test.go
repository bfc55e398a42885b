package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/internal/platform/cache"
	"github.com/fatflowers/marketplace/pkg/apperr"
	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
)

type darajaStub struct {
	tokenCalls atomic.Int32
	lastSTK    map[string]any
	lastB2C    map[string]any
	stkStatus  int
}

func (d *darajaStub) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/oauth/v1/generate":
		d.tokenCalls.Add(1)
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
		if string(ctx.Request.Header.Peek("Authorization")) != want {
			ctx.SetStatusCode(fasthttp.StatusUnauthorized)
			return
		}
		ctx.SetBodyString(`{"access_token":"tok-1","expires_in":"3599"}`)
	case "/mpesa/stkpush/v1/processrequest":
		if string(ctx.Request.Header.Peek("Authorization")) != "Bearer tok-1" {
			ctx.SetStatusCode(fasthttp.StatusUnauthorized)
			return
		}
		if d.stkStatus != 0 {
			ctx.SetStatusCode(d.stkStatus)
			ctx.SetBodyString(`{"requestId":"r-1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid Amount"}`)
			return
		}
		_ = json.Unmarshal(ctx.PostBody(), &d.lastSTK)
		ctx.SetBodyString(`{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"ok"}`)
	case "/mpesa/b2c/v3/paymentrequest":
		_ = json.Unmarshal(ctx.PostBody(), &d.lastB2C)
		ctx.SetBodyString(`{"ConversationID":"AG_1","OriginatorConversationID":"po-1","ResponseCode":"0","ResponseDescription":"Accept the service request successfully."}`)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func newStubClient(t *testing.T, cfg cfgpkg.MpesaConfig) (*Client, *darajaStub) {
	t.Helper()
	stub := &darajaStub{}
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, stub.handle) }()
	t.Cleanup(func() { _ = ln.Close() })

	cfg.BaseURL = "http://daraja.test"
	c := NewClient(cfg, cache.NewMemoryCache("test"), zap.NewNop().Sugar())
	c.http = &fasthttp.Client{Dial: func(addr string) (net.Conn, error) { return ln.Dial() }}
	c.now = func() time.Time { return time.Date(2026, 5, 4, 9, 30, 0, 0, eat) }
	return c, stub
}

func testConfig() cfgpkg.MpesaConfig {
	return cfgpkg.MpesaConfig{
		ConsumerKey:     "key",
		ConsumerSecret:  "secret",
		ShortCode:       "174379",
		PassKey:         "pass",
		CallbackBaseURL: "https://api.example.com/",
		CallbackSecret:  "cb-secret",
		InitiatorName:   "apiop",
		B2CShortCode:    "600000",
	}
}

func TestSTKPush(t *testing.T) {
	c, stub := newStubClient(t, testConfig())
	ctx := context.Background()

	resp, err := c.STKPush(ctx, &STKPushRequest{
		Phone:            "0712 345 678",
		Amount:           decimal.NewFromInt(1500),
		AccountReference: "ORDER42",
		Description:      "Payment for order 42",
	})
	require.NoError(t, err)
	require.Equal(t, "ws_CO_1", resp.CheckoutRequestID)

	require.Equal(t, "254712345678", stub.lastSTK["PhoneNumber"])
	require.Equal(t, "254712345678", stub.lastSTK["PartyA"])
	require.Equal(t, float64(1500), stub.lastSTK["Amount"])
	require.Equal(t, "20260504093000", stub.lastSTK["Timestamp"])
	require.Equal(t, Password("174379", "pass", "20260504093000"), stub.lastSTK["Password"])
	require.Equal(t, "ORDER42", stub.lastSTK["AccountReference"])

	cb, err := url.Parse(stub.lastSTK["CallBackURL"].(string))
	require.NoError(t, err)
	require.Equal(t, "/api/v1/webhooks/mpesa/stk", cb.Path)
	require.NoError(t, c.VerifyCallbackToken(cb.Query().Get("token")))

	// token is cached between calls
	_, err = c.STKPush(ctx, &STKPushRequest{Phone: "254712345678", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.Equal(t, int32(1), stub.tokenCalls.Load())
}

func TestSTKPush_RejectsBeforeCallingDaraja(t *testing.T) {
	c, stub := newStubClient(t, testConfig())
	_, err := c.STKPush(context.Background(), &STKPushRequest{Phone: "0712345678", Amount: decimal.RequireFromString("10.50")})
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = c.STKPush(context.Background(), &STKPushRequest{Phone: "12345", Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Equal(t, int32(0), stub.tokenCalls.Load())
}

func TestSTKPush_ErrorStatusIsUpstream(t *testing.T) {
	c, stub := newStubClient(t, testConfig())
	stub.stkStatus = fasthttp.StatusBadRequest
	_, err := c.STKPush(context.Background(), &STKPushRequest{Phone: "0712345678", Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, apperr.ErrUpstreamGateway)
	require.ErrorContains(t, err, "Invalid Amount")
}

func TestB2C(t *testing.T) {
	c, stub := newStubClient(t, testConfig())
	resp, err := c.B2C(context.Background(), &B2CRequest{
		OriginatorConversationID: "po-1",
		Phone:                    "+254 712 345 678",
		Amount:                   decimal.NewFromInt(800),
		Remarks:                  "Vendor payout",
	})
	require.NoError(t, err)
	require.Equal(t, "AG_1", resp.ConversationID)
	require.Equal(t, "po-1", stub.lastB2C["OriginatorConversationID"])
	require.Equal(t, "600000", stub.lastB2C["PartyA"])
	require.Equal(t, "254712345678", stub.lastB2C["PartyB"])
	require.Equal(t, "BusinessPayment", stub.lastB2C["CommandID"])
	require.Equal(t, "apiop", stub.lastB2C["InitiatorName"])
}

func TestAccessToken_NotConfigured(t *testing.T) {
	c := NewClient(cfgpkg.MpesaConfig{}, cache.NewMemoryCache("test"), zap.NewNop().Sugar())
	require.False(t, c.Enabled())
	_, err := c.AccessToken(context.Background())
	require.Error(t, err)
}

func TestCallbackURL_WithoutSecret(t *testing.T) {
	cfg := testConfig()
	cfg.CallbackSecret = ""
	c := NewClient(cfg, cache.NewMemoryCache("test"), zap.NewNop().Sugar())
	u, err := c.CallbackURL(B2CCallbackPath)
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/api/v1/webhooks/mpesa/b2c", u)
	require.NoError(t, c.VerifyCallbackToken(""))
}
