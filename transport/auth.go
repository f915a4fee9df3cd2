package transport

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/scan-portal/internal/errors"
	"github.com/jrsteele09/scan-portal/token"
	"github.com/jrsteele09/scan-portal/users"
)

// Backend routes, relative to the base URL
const (
	PathLogin        = "/auth/login"
	PathLoginSimple  = "/auth/login-simple"
	PathRegister     = "/auth/register"
	PathTestToken    = "/auth/test-token"
	PathMe           = "/auth/me"
	PathRefreshToken = "/auth/refresh-token"
)

const (
	defaultLoginMessage    = "Invalid email or password"
	defaultRegisterMessage = "Registration failed"
	defaultUserMessage     = "Failed to get user data"
	defaultRefreshMessage  = "Token refresh failed"
)

type registerRequest struct {
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	Role        users.Role `json:"role"`
	FullName    string     `json:"full_name"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
}

// Login exchanges credentials for a token pair. The JSON endpoint is tried
// first; when it is unavailable the OAuth2 password grant endpoint is tried once.
func (c *Client) Login(ctx context.Context, creds users.Credentials) (token.Pair, error) {
	var pair token.Pair
	err := c.doJSON(ctx, "login", http.MethodPost, PathLoginSimple, nil, creds, &pair, defaultLoginMessage)
	if err == nil {
		return pair, nil
	}
	if !c.loginFallback || !shouldFallback(err) {
		return token.Pair{}, err
	}

	c.logger.Info().Err(err).Msg("login-simple unavailable, trying password grant")
	pair, fallbackErr := c.passwordGrant(ctx, creds)
	if fallbackErr != nil {
		return token.Pair{}, fallbackErr
	}
	return pair, nil
}

// passwordGrant posts the OAuth2 password grant form. The backend reads the
// address from email and accepts username as an alias, so both are sent.
func (c *Client) passwordGrant(ctx context.Context, creds users.Credentials) (token.Pair, error) {
	form := url.Values{
		"grant_type": {"password"},
		"email":      {creds.Email},
		"username":   {creds.Email},
		"password":   {creds.Password},
	}

	var pair token.Pair
	if err := c.doForm(ctx, "login", PathLogin, form, &pair, defaultLoginMessage); err != nil {
		return token.Pair{}, err
	}
	return pair, nil
}

// Register creates an account. It does not log the caller in.
func (c *Client) Register(ctx context.Context, reg users.Registration) error {
	body := registerRequest{
		Email:       reg.Email,
		Password:    reg.Password,
		Role:        reg.RoleOrDefault(),
		FullName:    reg.FullName,
		IsActive:    true,
		IsSuperuser: false,
	}
	return c.doJSON(ctx, "register", http.MethodPost, PathRegister, nil, body, nil, defaultRegisterMessage)
}

// FetchCurrentUser returns the user owning accessToken. Any non-2xx answer is
// an error; only a missing test-token endpoint falls back to /auth/me.
func (c *Client) FetchCurrentUser(ctx context.Context, accessToken string) (*users.User, error) {
	var user users.User
	err := c.doJSON(ctx, "fetch current user", http.MethodPost, PathTestToken, bearerHeader(accessToken), struct{}{}, &user, defaultUserMessage)
	if err != nil && isMissingEndpoint(err) {
		err = c.doJSON(ctx, "fetch current user", http.MethodGet, PathMe, bearerHeader(accessToken), nil, &user, defaultUserMessage)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Refresh exchanges the current pair for a new one
func (c *Client) Refresh(ctx context.Context, accessToken, refreshToken string) (token.Pair, error) {
	header := bearerHeader(accessToken)
	header.Set(headerRefreshToken, refreshToken)

	var pair token.Pair
	if err := c.doJSON(ctx, "refresh", http.MethodPost, PathRefreshToken, header, nil, &pair, defaultRefreshMessage); err != nil {
		return token.Pair{}, err
	}
	return pair, nil
}

func bearerHeader(accessToken string) http.Header {
	req := &http.Request{Header: http.Header{}}
	setBearer(req, accessToken)
	return req.Header
}

func isMissingEndpoint(err error) bool {
	var tErr *errors.TransportError
	return errors.As(err, &tErr) && (tErr.StatusCode == http.StatusNotFound || tErr.StatusCode == http.StatusMethodNotAllowed)
}
