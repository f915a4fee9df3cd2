package transport

import (
	"context"
	"net/http"

	"github.com/jrsteele09/scan-portal/token"
)

// TokenSource yields the currently persisted access token, or "" when there is none.
type TokenSource func() string

type tokenSourceKey struct{}

// WithTokenSource attaches a token source to ctx. Requests made with that
// context carry the token as a bearer credential unless they set their own
// Authorization header.
func WithTokenSource(ctx context.Context, source TokenSource) context.Context {
	return context.WithValue(ctx, tokenSourceKey{}, source)
}

func tokenSourceFromContext(ctx context.Context) TokenSource {
	source, _ := ctx.Value(tokenSourceKey{}).(TokenSource)
	return source
}

type bearerTransport struct {
	base http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(headerAuthorization) != "" {
		return t.base.RoundTrip(req)
	}
	source := tokenSourceFromContext(req.Context())
	if source == nil {
		return t.base.RoundTrip(req)
	}
	accessToken := source()
	if accessToken == "" {
		return t.base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request
	clone := req.Clone(req.Context())
	setBearer(clone, accessToken)
	return t.base.RoundTrip(clone)
}

func setBearer(req *http.Request, accessToken string) {
	token.Pair{AccessToken: accessToken}.OAuth2().SetAuthHeader(req)
}
