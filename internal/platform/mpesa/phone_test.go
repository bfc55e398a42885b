package mpesa

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/marketplace/pkg/apperr"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"0712345678", "254712345678", true},
		{"+254712345678", "254712345678", true},
		{"254 712 345 678", "254712345678", true},
		{"712345678", "254712345678", true},
		{"0110-123-456", "254110123456", true},
		{"0812345678", "", false},
		{"07123", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if !tc.ok {
			require.ErrorIs(t, err, apperr.ErrValidation, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got)
	}
}

func TestWholeAmount(t *testing.T) {
	n, err := WholeAmount(decimal.RequireFromString("1500.00"))
	require.NoError(t, err)
	require.Equal(t, int64(1500), n)

	for _, bad := range []string{"0", "-5", "99.99"} {
		_, err := WholeAmount(decimal.RequireFromString(bad))
		require.ErrorIs(t, err, apperr.ErrValidation, bad)
	}
}
