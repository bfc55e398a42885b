package payout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/types"
)

// DisbursementRequest is what a payout gateway needs to send money to a vendor.
type DisbursementRequest struct {
	PayoutID string
	// Reference is echoed back by the gateway in result callbacks.
	Reference string
	VendorID  string
	Amount    decimal.Decimal
	Currency  string
	Recipient string
	Remarks   string
}

type DisbursementAck struct {
	ConversationID string
	Raw            any
}

// DisbursementGateway sends vendor payouts through one provider.
type DisbursementGateway interface {
	Method() types.PayoutMethod
	Disburse(ctx context.Context, req *DisbursementRequest) (*DisbursementAck, error)
}

// AmountLimiter is implemented by gateways that cannot send every amount.
// PayableAmount returns the largest amount not above amount the gateway can send.
type AmountLimiter interface {
	PayableAmount(amount decimal.Decimal) decimal.Decimal
}

// payableAmount is amount as g can send it; gateways without limits send it unchanged.
func payableAmount(g DisbursementGateway, amount decimal.Decimal) decimal.Decimal {
	if l, ok := g.(AmountLimiter); ok {
		return l.PayableAmount(amount)
	}
	return amount
}

// PayoutCallbackResult is a payout result callback reduced to what the handler needs.
type PayoutCallbackResult struct {
	Provider          types.CallbackProvider
	ExternalReference string
	Success           bool
	ResultCode        string
	ResultDesc        string
	ConversationID    string
	Metadata          map[string]any
}

type Branch string

const (
	BranchCompleted Branch = "completed"
	BranchFailed    Branch = "failed"
	BranchDuplicate Branch = "duplicate"
	BranchNotFound  Branch = "not_found"
)

type PayoutCallbackOutcome struct {
	Branch   Branch `json:"branch"`
	PayoutID string `json:"payout_id,omitempty"`
	VendorID string `json:"vendor_id,omitempty"`
}

type CreatePayoutRequestInput struct {
	VendorID     string             `json:"vendor_id"`
	Amount       decimal.Decimal    `json:"amount"`
	PayoutMethod types.PayoutMethod `json:"payout_method"`
	// Recipient defaults to the vendor's phone or PayPal email.
	Recipient string `json:"recipient"`
}

type BulkFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type BulkProcessResult struct {
	Successful []string      `json:"successful"`
	Failed     []BulkFailure `json:"failed"`
}

// PayoutManager is what the HTTP layer, webhook intake and payment service use.
type PayoutManager interface {
	RequestPayout(ctx context.Context, vendorID string, amount decimal.Decimal, method types.PayoutMethod, recipient string) (*models.PayoutTransaction, error)
	HandlePayoutCallback(ctx context.Context, res *PayoutCallbackResult) (*PayoutCallbackOutcome, error)
	AutoPayout(ctx context.Context, vendorID string) (*models.PayoutTransaction, error)
	GetPayout(ctx context.Context, payoutID string) (*models.PayoutTransaction, error)

	CreatePayoutRequest(ctx context.Context, in *CreatePayoutRequestInput) (*models.PayoutRequest, error)
	ApprovePayoutRequest(ctx context.Context, id, approvedBy string) (*models.PayoutRequest, error)
	RejectPayoutRequest(ctx context.Context, id, reason string) (*models.PayoutRequest, error)
	ProcessPayoutRequest(ctx context.Context, id string) (*models.PayoutRequest, error)
	BulkProcessPayoutRequests(ctx context.Context, ids []string) *BulkProcessResult

	ScanPayoutRequests(ctx context.Context, req *types.ScanRequest) (*types.ScanResult[models.PayoutRequest], error)
	ScanPayouts(ctx context.Context, req *types.ScanRequest) (*types.ScanResult[models.PayoutTransaction], error)
	ScanEarnings(ctx context.Context, req *types.ScanRequest) (*types.ScanResult[models.VendorEarning], error)
	VendorPayoutSummaries(ctx context.Context) ([]*VendorPayoutSummary, error)
}
