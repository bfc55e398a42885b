package models

// All lists every model managed by AutoMigrate.
func All() []any {
	return []any{
		&Vendor{},
		&GasProduct{},
		&Order{},
		&OrderItem{},
		&OrderTracking{},
		&Payment{},
		&VendorEarning{},
		&PayoutRequest{},
		&PayoutTransaction{},
		&CommissionSummary{},
		&PaymentWebhookLog{},
	}
}
