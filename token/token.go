package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/scan-portal/internal/errors"
	"golang.org/x/oauth2"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Pair is the token response of the login and refresh endpoints.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// OAuth2 converts the pair into an oauth2.Token. Expiry is taken from the
// access token's exp claim when it can be decoded and left zero otherwise.
func (p Pair) OAuth2() *oauth2.Token {
	tokenType := p.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	t := &oauth2.Token{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    tokenType,
	}
	if exp, err := ExpiresAt(p.AccessToken); err == nil {
		t.Expiry = exp
	}
	return t
}

// ExpiresAt decodes the exp claim of a JWT. The signature is not verified;
// the portal only needs to know when to refresh, the backend does the checking.
func ExpiresAt(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.ErrMalformedToken
	}

	unverified, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrMalformedToken, "%v", err)
	}

	exp, err := unverified.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrMalformedToken, "exp claim: %v", err)
	}
	if exp == nil {
		return time.Time{}, errors.ErrNoExpiry
	}
	return exp.Time, nil
}

// RemainingLifetime returns how long the token stays valid after now. Expired
// tokens return zero.
func RemainingLifetime(raw string, now time.Time) (time.Duration, error) {
	exp, err := ExpiresAt(raw)
	if err != nil {
		return 0, err
	}
	if remaining := exp.Sub(now); remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}
