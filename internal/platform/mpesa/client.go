// Package mpesa is a client for the Safaricom Daraja API: OAuth, STK push and B2C.
package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/internal/platform/cache"
	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/callbacktoken"
	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
	"github.com/fatflowers/marketplace/pkg/logctx"
)

const (
	provider         = "mpesa"
	timestampLayout  = "20060102150405"
	tokenSubject     = "mpesa"
	tokenExpirySlack = time.Minute

	STKCallbackPath = "/api/v1/webhooks/mpesa/stk"
	B2CCallbackPath = "/api/v1/webhooks/mpesa/b2c"
)

// Daraja timestamps are East Africa Time.
var eat = time.FixedZone("EAT", 3*60*60)

type Client struct {
	cfg     cfgpkg.MpesaConfig
	http    *fasthttp.Client
	cache   cache.Cache
	log     *zap.SugaredLogger
	timeout time.Duration
	now     func() time.Time
}

func NewClient(cfg cfgpkg.MpesaConfig, c cache.Cache, log *zap.SugaredLogger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    &fasthttp.Client{Name: "marketplace-mpesa"},
		cache:   c,
		log:     log,
		timeout: timeout,
		now:     time.Now,
	}
}

func New(cfg *cfgpkg.Config, c cache.Cache, log *zap.SugaredLogger) *Client {
	return NewClient(cfg.Mpesa, c, log)
}

func (c *Client) Enabled() bool { return c != nil && c.cfg.Enabled() }

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// errorResponse is what Daraja returns on rejected requests.
type errorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *Client) do(ctx context.Context, method, path, auth string, body any, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(strings.TrimRight(c.cfg.BaseURL, "/") + path)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", auth)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBody(b)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return apperr.Upstream(provider, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		var e errorResponse
		if json.Unmarshal(resp.Body(), &e) == nil && e.ErrorMessage != "" {
			return apperr.Upstream(provider, fmt.Errorf("%s %s: status %d: %s %s", method, path, resp.StatusCode(), e.ErrorCode, e.ErrorMessage))
		}
		return apperr.Upstream(provider, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode()))
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return apperr.Upstream(provider, fmt.Errorf("decode %s response: %w", path, err))
	}
	return nil
}

// AccessToken returns a cached OAuth token, fetching a new one when needed.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if !c.Enabled() {
		return "", errors.New("mpesa is not configured")
	}
	key := c.cache.GenerateKey("mpesa_token", c.cfg.ConsumerKey)
	if tok, err := c.cache.Get(ctx, key); err == nil && tok != "" {
		return tok, nil
	} else if err != nil {
		logctx.FromCtx(ctx, c.log).Warnw("mpesa_token_cache_get_failed", "error", err.Error())
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	var tr tokenResponse
	if err := c.do(ctx, fasthttp.MethodGet, "/oauth/v1/generate?grant_type=client_credentials", "Basic "+basic, nil, &tr); err != nil {
		return "", err
	}
	if tr.AccessToken == "" {
		return "", apperr.Upstream(provider, errors.New("empty access token"))
	}
	ttl := 3599 * time.Second
	if secs, err := time.ParseDuration(tr.ExpiresIn + "s"); err == nil && secs > 0 {
		ttl = secs
	}
	if ttl > tokenExpirySlack {
		ttl -= tokenExpirySlack
	}
	if err := c.cache.Set(ctx, key, tr.AccessToken, ttl); err != nil {
		logctx.FromCtx(ctx, c.log).Warnw("mpesa_token_cache_set_failed", "error", err.Error())
	}
	return tr.AccessToken, nil
}

// CallbackURL returns the public URL for path with a signed token attached.
func (c *Client) CallbackURL(path string) (string, error) {
	u := strings.TrimRight(c.cfg.CallbackBaseURL, "/") + path
	if c.cfg.CallbackSecret == "" {
		return u, nil
	}
	tok, err := callbacktoken.Issue(c.cfg.CallbackSecret, tokenSubject)
	if err != nil {
		return "", err
	}
	return u + "?token=" + url.QueryEscape(tok), nil
}

// VerifyCallbackToken checks a token taken from a callback URL. With no
// secret configured every token is accepted.
func (c *Client) VerifyCallbackToken(raw string) error {
	if c.cfg.CallbackSecret == "" {
		return nil
	}
	return callbacktoken.Verify(c.cfg.CallbackSecret, tokenSubject, raw)
}

type STKPushRequest struct {
	Phone            string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// STKPush asks the customer's phone to approve a payment.
func (c *Client) STKPush(ctx context.Context, req *STKPushRequest) (*STKPushResponse, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	amount, err := WholeAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	tok, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	callback, err := c.CallbackURL(STKCallbackPath)
	if err != nil {
		return nil, err
	}
	ts := c.now().In(eat).Format(timestampLayout)
	payload := &stkPushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.PassKey, ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       callback,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.Description,
	}
	var out STKPushResponse
	if err := c.do(ctx, fasthttp.MethodPost, "/mpesa/stkpush/v1/processrequest", "Bearer "+tok, payload, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" || out.CheckoutRequestID == "" {
		return nil, apperr.Upstream(provider, fmt.Errorf("stk push rejected: %s %s", out.ResponseCode, out.ResponseDescription))
	}
	logctx.FromCtx(ctx, c.log).Infow("mpesa_stk_push_sent", "checkout_request_id", out.CheckoutRequestID,
		"merchant_request_id", out.MerchantRequestID, "amount", amount)
	return &out, nil
}

type B2CRequest struct {
	// OriginatorConversationID is echoed in the result callback.
	OriginatorConversationID string
	Phone                    string
	Amount                   decimal.Decimal
	Remarks                  string
	Occasion                 string
}

type b2cPayload struct {
	OriginatorConversationID string `json:"OriginatorConversationID"`
	InitiatorName            string `json:"InitiatorName"`
	SecurityCredential       string `json:"SecurityCredential"`
	CommandID                string `json:"CommandID"`
	Amount                   int64  `json:"Amount"`
	PartyA                   string `json:"PartyA"`
	PartyB                   string `json:"PartyB"`
	Remarks                  string `json:"Remarks"`
	QueueTimeOutURL          string `json:"QueueTimeOutURL"`
	ResultURL                string `json:"ResultURL"`
	Occasion                 string `json:"Occasion"`
}

type B2CResponse struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

// B2C sends money from the business short code to a phone.
func (c *Client) B2C(ctx context.Context, req *B2CRequest) (*B2CResponse, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	amount, err := WholeAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	tok, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	resultURL, err := c.CallbackURL(B2CCallbackPath)
	if err != nil {
		return nil, err
	}
	shortCode := c.cfg.B2CShortCode
	if shortCode == "" {
		shortCode = c.cfg.ShortCode
	}
	payload := &b2cPayload{
		OriginatorConversationID: req.OriginatorConversationID,
		InitiatorName:            c.cfg.InitiatorName,
		SecurityCredential:       c.cfg.SecurityCredential,
		CommandID:                "BusinessPayment",
		Amount:                   amount,
		PartyA:                   shortCode,
		PartyB:                   phone,
		Remarks:                  req.Remarks,
		QueueTimeOutURL:          resultURL,
		ResultURL:                resultURL,
		Occasion:                 req.Occasion,
	}
	var out B2CResponse
	if err := c.do(ctx, fasthttp.MethodPost, "/mpesa/b2c/v3/paymentrequest", "Bearer "+tok, payload, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		return nil, apperr.Upstream(provider, fmt.Errorf("b2c rejected: %s %s", out.ResponseCode, out.ResponseDescription))
	}
	logctx.FromCtx(ctx, c.log).Infow("mpesa_b2c_sent", "originator_conversation_id", req.OriginatorConversationID,
		"conversation_id", out.ConversationID, "amount", amount)
	return &out, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
