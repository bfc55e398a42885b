package payout

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/internal/platform/mpesa"
	"github.com/fatflowers/marketplace/internal/platform/paypal"
	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
	"github.com/fatflowers/marketplace/pkg/types"
)

func TestGatewaysDisabledWithoutConfig(t *testing.T) {
	log := zap.NewNop().Sugar()
	require.Nil(t, NewMpesaDisbursement(mpesa.NewClient(cfgpkg.MpesaConfig{}, nil, log)))

	pp, err := paypal.NewClient(cfgpkg.PayPalConfig{}, "", log)
	require.NoError(t, err)
	require.Nil(t, NewPayPalDisbursement(pp))
}

func TestPayPalDisbursement(t *testing.T) {
	var sent map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"access_token":"A21","token_type":"Bearer","expires_in":32400}`)
	})
	mux.HandleFunc("/v1/payments/payouts", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &sent)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"batch_header":{"payout_batch_id":"5UXD2E8A7EBQJ","batch_status":"PENDING"}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := paypal.NewClient(cfgpkg.PayPalConfig{ClientID: "id", ClientSecret: "secret", Currency: "usd"}, srv.URL, zap.NewNop().Sugar())
	require.NoError(t, err)
	g := NewPayPalDisbursement(client)
	require.NotNil(t, g)
	require.Equal(t, types.PayoutMethodPayPal, g.Method())

	ack, err := g.Disburse(context.Background(), &DisbursementRequest{
		PayoutID:  "p-1",
		Reference: "p-1",
		Amount:    dec("42.50"),
		Currency:  "KES",
		Recipient: "vendor@example.com",
		Remarks:   "Vendor payout",
	})
	require.NoError(t, err)
	require.Equal(t, "5UXD2E8A7EBQJ", ack.ConversationID)

	items := sent["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	require.Equal(t, "p-1", item["sender_item_id"])
	require.Equal(t, "vendor@example.com", item["receiver"])
	require.Equal(t, map[string]any{"currency": "USD", "value": "42.50"}, item["amount"])
}
