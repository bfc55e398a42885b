package callbacktoken

import (
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
)

func TestIssueVerify(t *testing.T) {
	tok, err := Issue("s3cret", "mpesa")
	require.NoError(t, err)
	require.NoError(t, Verify("s3cret", "mpesa", tok))

	require.ErrorIs(t, Verify("other", "mpesa", tok), ErrInvalidToken)
	require.ErrorIs(t, Verify("s3cret", "paypal", tok), ErrInvalidToken)
	require.ErrorIs(t, Verify("s3cret", "mpesa", ""), ErrInvalidToken)
	require.ErrorIs(t, Verify("s3cret", "mpesa", "not.a.token"), ErrInvalidToken)

	_, err = Issue("", "mpesa")
	require.Error(t, err)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.StandardClaims{Subject: "mpesa"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	require.ErrorIs(t, Verify("s3cret", "mpesa", raw), ErrInvalidToken)
}
