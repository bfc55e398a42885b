package types

type EarningType string

const (
	EarningTypeOrder      EarningType = "order"
	EarningTypeRefund     EarningType = "refund"
	EarningTypeAdjustment EarningType = "adjustment"
	EarningTypePayout     EarningType = "payout"
)

type EarningStatus string

const (
	EarningStatusPending   EarningStatus = "pending"
	EarningStatusProcessed EarningStatus = "processed"
	EarningStatusPaid      EarningStatus = "paid"
	EarningStatusCancelled EarningStatus = "cancelled"
)
