package session

import (
	"context"
	"time"

	"github.com/jrsteele09/scan-portal/token"
	"github.com/jrsteele09/scan-portal/users"
)

// Cookie names the tokens are persisted under
const (
	AccessTokenKey  = "token"
	RefreshTokenKey = "refreshToken"
)

// TokenStorage persists tokens between requests. Set with a ttl of zero stores a
// value without an explicit expiry.
type TokenStorage interface {
	Get(name string) (string, bool)
	Set(name, value string, ttl time.Duration)
	Remove(name string)
}

// Transport is the backend the store exchanges credentials with
type Transport interface {
	Login(ctx context.Context, creds users.Credentials) (token.Pair, error)
	Register(ctx context.Context, reg users.Registration) error
	FetchCurrentUser(ctx context.Context, accessToken string) (*users.User, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (token.Pair, error)
}

// UserCache holds user records keyed by the access token they were fetched with.
// Get returns errors.ErrNotFound on a miss.
type UserCache interface {
	Get(ctx context.Context, accessToken string) (*users.User, error)
	Put(ctx context.Context, accessToken string, user *users.User, ttl time.Duration) error
	Delete(ctx context.Context, accessToken string) error
}
