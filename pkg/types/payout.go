package types

type PayoutMethod string

const (
	PayoutMethodMpesa  PayoutMethod = "mpesa"
	PayoutMethodPayPal PayoutMethod = "paypal"
)

type PayoutStatus string

const (
	PayoutStatusInitiated  PayoutStatus = "initiated"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusCancelled  PayoutStatus = "cancelled"
)

func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusCompleted || s == PayoutStatusFailed || s == PayoutStatusCancelled
}

type PayoutRequestStatus string

const (
	PayoutRequestStatusPending    PayoutRequestStatus = "pending"
	PayoutRequestStatusApproved   PayoutRequestStatus = "approved"
	PayoutRequestStatusProcessing PayoutRequestStatus = "processing"
	PayoutRequestStatusCompleted  PayoutRequestStatus = "completed"
	PayoutRequestStatusFailed     PayoutRequestStatus = "failed"
	PayoutRequestStatusRejected   PayoutRequestStatus = "rejected"
)

type PeriodType string

const (
	PeriodTypeDaily   PeriodType = "daily"
	PeriodTypeWeekly  PeriodType = "weekly"
	PeriodTypeMonthly PeriodType = "monthly"
	PeriodTypeYearly  PeriodType = "yearly"
)

// Days returns the length of the rolling window for the period, or 0 when unknown.
func (p PeriodType) Days() int {
	switch p {
	case PeriodTypeDaily:
		return 1
	case PeriodTypeWeekly:
		return 7
	case PeriodTypeMonthly:
		return 30
	case PeriodTypeYearly:
		return 365
	default:
		return 0
	}
}
