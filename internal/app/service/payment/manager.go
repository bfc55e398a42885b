package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/types"
)

type InitiatePaymentRequest struct {
	OrderID        string              `json:"order_id"`
	PaymentMethod  types.PaymentMethod `json:"payment_method"`
	PhoneOrAccount string              `json:"phone_or_account"`
}

type InitiatePaymentResult struct {
	Payment *models.Payment `json:"payment"`
	// ApprovalURL is where the customer approves a PayPal order.
	ApprovalURL string `json:"approval_url,omitempty"`
}

// CheckoutRequest is what a checkout gateway needs to start collecting money.
type CheckoutRequest struct {
	PaymentID      string
	OrderID        string
	Amount         decimal.Decimal
	Currency       string
	PhoneOrAccount string
	Description    string
}

type CheckoutAck struct {
	// ExternalReference is the gateway id callbacks will carry.
	ExternalReference string
	ApprovalURL       string
	Raw               any
}

// CheckoutGateway starts a customer payment with one provider.
type CheckoutGateway interface {
	Method() types.PaymentMethod
	Initiate(ctx context.Context, req *CheckoutRequest) (*CheckoutAck, error)
}

// CallbackResult is a gateway callback reduced to what the completion handler needs.
type CallbackResult struct {
	Provider          types.CallbackProvider
	ExternalReference string
	Success           bool
	ResultCode        string
	ResultDesc        string
	ReceiptNumber     string
	Metadata          map[string]any
}

type Branch string

const (
	BranchCompleted Branch = "completed"
	BranchFailed    Branch = "failed"
	BranchDuplicate Branch = "duplicate"
	BranchNotFound  Branch = "not_found"
)

type CallbackOutcome struct {
	Branch    Branch `json:"branch"`
	PaymentID string `json:"payment_id,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
}

// AutoPayouter starts a payout for a vendor that opted in, once its balance
// crosses the configured threshold. It returns nil when nothing was started.
type AutoPayouter interface {
	AutoPayout(ctx context.Context, vendorID string) (*models.PayoutTransaction, error)
}

type ScanPaymentsRequest = types.ScanRequest

type ScanPaymentsResponse struct {
	Items []*models.Payment `json:"items"`
	Total int64             `json:"total"`
}

// PaymentManager is what the HTTP layer and webhook intake use.
type PaymentManager interface {
	InitiateOrderPayment(ctx context.Context, req *InitiatePaymentRequest) (*InitiatePaymentResult, error)
	RetryPayment(ctx context.Context, paymentID string) (*InitiatePaymentResult, error)
	HandlePaymentCallback(ctx context.Context, res *CallbackResult) (*CallbackOutcome, error)
	ConfirmCashPayment(ctx context.Context, paymentID, receipt string) (*CallbackOutcome, error)
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	ScanPayments(ctx context.Context, req *ScanPaymentsRequest) (*ScanPaymentsResponse, error)
}
