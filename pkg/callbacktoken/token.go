// Package callbacktoken signs the token embedded in callback URLs handed to
// payment gateways that cannot sign their own requests.
package callbacktoken

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt"
)

var ErrInvalidToken = errors.New("invalid callback token")

// Issue returns an HS256 token for subject. Callback tokens do not expire
// because gateways may redeliver days later.
func Issue(secret, subject string) (string, error) {
	if secret == "" {
		return "", errors.New("callback secret is empty")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{Subject: subject, Issuer: "marketplace"})
	return token.SignedString([]byte(secret))
}

// Verify checks the signature and subject of a token produced by Issue.
func Verify(secret, subject, raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: missing", ErrInvalidToken)
	}
	claims := &jwt.StandardClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject != subject {
		return fmt.Errorf("%w: subject %q", ErrInvalidToken, claims.Subject)
	}
	return nil
}
