package types

type PaymentMethod string

const (
	PaymentMethodMpesa  PaymentMethod = "mpesa"
	PaymentMethodPayPal PaymentMethod = "paypal"
	PaymentMethodCash   PaymentMethod = "cash"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// PaymentPayoutStatus tracks how far the vendor share of a payment has been paid out.
type PaymentPayoutStatus string

const (
	PaymentPayoutStatusPending   PaymentPayoutStatus = "pending"
	PaymentPayoutStatusProcessed PaymentPayoutStatus = "processed"
	PaymentPayoutStatusPaid      PaymentPayoutStatus = "paid"
)

// CallbackProvider names the gateway a callback came from.
type CallbackProvider string

const (
	CallbackProviderMpesa  CallbackProvider = "mpesa"
	CallbackProviderPayPal CallbackProvider = "paypal"
	CallbackProviderManual CallbackProvider = "manual"
)
