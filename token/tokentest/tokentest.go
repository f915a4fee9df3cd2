// Package tokentest mints signed JWTs for tests.
package tokentest

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const secret = "tokentest-secret"

// Mint returns an HS256 access token for subject that expires at exp.
func Mint(t testing.TB, subject string, exp time.Time) string {
	t.Helper()

	claims := jwtlib.MapClaims{
		"sub": subject,
		"iss": "security-stamp",
		"exp": exp.Unix(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// MintWithoutExpiry returns a token that carries no exp claim
func MintWithoutExpiry(t testing.TB, subject string) string {
	t.Helper()

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{"sub": subject}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
