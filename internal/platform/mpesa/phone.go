package mpesa

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/marketplace/pkg/apperr"
)

var msisdn = regexp.MustCompile(`^254[17]\d{8}$`)

// NormalizePhone turns 07XXXXXXXX, +2547XXXXXXXX and 7XXXXXXXX into 2547XXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	p := strings.NewReplacer("+", "", " ", "", "-", "").Replace(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(p, "254"):
	case strings.HasPrefix(p, "0"):
		p = "254" + p[1:]
	default:
		p = "254" + p
	}
	if !msisdn.MatchString(p) {
		return "", apperr.Validation("invalid M-Pesa phone number %q", raw)
	}
	return p, nil
}

// WholeAmount converts an amount to shillings. M-Pesa does not move cents.
func WholeAmount(d decimal.Decimal) (int64, error) {
	if !d.IsPositive() {
		return 0, apperr.Validation("M-Pesa amount must be positive, got %s", d.String())
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, apperr.Validation("M-Pesa amount must be whole shillings, got %s", d.String())
	}
	return d.IntPart(), nil
}
