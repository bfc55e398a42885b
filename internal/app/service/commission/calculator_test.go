package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/marketplace/pkg/apperr"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculate(t *testing.T) {
	cases := []struct {
		name       string
		gross      string
		rate       string
		commission string
		net        string
	}{
		{"ten percent of 1000", "1000", "10", "100.00", "900.00"},
		{"zero rate", "2500.75", "0", "0", "2500.75"},
		{"zero gross", "0", "15", "0", "0"},
		{"full rate", "99.99", "100", "99.99", "0"},
		{"rounds half up", "0.05", "10", "0.01", "0.04"},
		{"fractional rate", "1234.56", "12.5", "154.32", "1080.24"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Calculate(d(tc.gross), d(tc.rate))
			require.NoError(t, err)
			require.True(t, s.Commission.Equal(d(tc.commission)), "commission %s", s.Commission)
			require.True(t, s.Net.Equal(d(tc.net)), "net %s", s.Net)
		})
	}
}

func TestCalculate_Rejects(t *testing.T) {
	_, err := Calculate(d("-1"), d("10"))
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = Calculate(d("100"), d("-0.01"))
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = Calculate(d("100"), d("100.01"))
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCalculate_CommissionPlusNetIsGross(t *testing.T) {
	rates := []string{"0", "0.5", "3.33", "7", "10", "12.5", "33.333", "99.99", "100"}
	for cents := int64(0); cents <= 100000; cents += 137 {
		gross := decimal.New(cents, -2)
		for _, r := range rates {
			s, err := Calculate(gross, d(r))
			require.NoError(t, err)
			require.True(t, s.Commission.Add(s.Net).Equal(gross), "gross %s rate %s", gross, r)
			require.True(t, s.Commission.Equal(s.Commission.Round(2)))
		}
	}
}

func TestResolveRate(t *testing.T) {
	def := d("10")
	require.True(t, ResolveRate(decimal.NullDecimal{}, def).Equal(def))
	require.True(t, ResolveRate(decimal.NewNullDecimal(d("7.5")), def).Equal(d("7.5")))
}
