// Package commission splits a gross amount between the platform and the vendor.
package commission

import (
	"github.com/shopspring/decimal"

	"github.com/fatflowers/marketplace/pkg/apperr"
)

var hundred = decimal.NewFromInt(100)

// Split is the result of applying a commission rate to a gross amount.
// Commission + Net == Gross always holds.
type Split struct {
	Gross      decimal.Decimal `json:"gross"`
	Rate       decimal.Decimal `json:"rate"`
	Commission decimal.Decimal `json:"commission"`
	Net        decimal.Decimal `json:"net"`
}

// Calculate returns commission = round(gross*rate/100, 2) and net = gross - commission.
// Negative gross or a rate outside [0,100] is rejected, never clamped.
func Calculate(gross, rate decimal.Decimal) (Split, error) {
	if gross.IsNegative() {
		return Split{}, apperr.Validation("gross amount must not be negative, got %s", gross.String())
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return Split{}, apperr.Validation("commission rate must be within [0,100], got %s", rate.String())
	}
	c := gross.Mul(rate).Div(hundred).Round(2)
	return Split{Gross: gross, Rate: rate, Commission: c, Net: gross.Sub(c)}, nil
}

// ResolveRate prefers a vendor specific rate over the platform default.
func ResolveRate(vendorRate decimal.NullDecimal, defaultRate decimal.Decimal) decimal.Decimal {
	if vendorRate.Valid {
		return vendorRate.Decimal
	}
	return defaultRate
}
