package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/scan-portal/guard"
	"github.com/jrsteele09/scan-portal/session"
	"github.com/jrsteele09/scan-portal/session/cookiestore"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the request's *session.Store
const ContextKeySession ContextKey = "session"

// newStore builds a session store persisting to this request's cookies
func (s *Server) newStore(w http.ResponseWriter, r *http.Request) *session.Store {
	storage := cookiestore.New(w, r, cookiestore.WithSecure(s.config.GetSecureCookies()))

	opts := []session.Option{
		session.WithCookieExpiry(s.config.GetAccessTokenCookieExpiry(), s.config.GetRefreshTokenCookieExpiry()),
		session.WithRefreshRequired(s.config.GetRequireRefreshToken()),
		session.WithRefreshPolicy(session.DefaultRefreshInterval, s.config.GetRefreshThreshold()),
	}
	if s.userCache != nil {
		opts = append(opts, session.WithUserCache(s.userCache, s.config.GetUserCacheTTL()))
	}
	return session.New(s.transport, storage, opts...)
}

// loadSession rehydrates the session from the request cookies and refreshes the
// access token when it is close to expiry.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) *session.Store {
	store := s.newStore(w, r)
	ctx := r.Context()

	if err := store.Initialize(ctx); err != nil {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("[Server SessionGuard] session not restored")
		return store
	}
	if _, err := store.RefreshIfNeeded(ctx); err != nil {
		log.Info().Err(err).Str("path", r.URL.Path).Msg("[Server SessionGuard] token refresh failed")
	}
	return store
}

// SessionGuard applies the guard table to HTML pages. Authorized requests reach
// next with the store on the context.
func (s *Server) SessionGuard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := s.loadSession(w, r)
		decision := s.guardTable.Decide(store, r.URL.Path)

		switch decision.State {
		case guard.Loading:
			s.renderLoading(w, r)
		case guard.Redirecting:
			redirectSuccess(w, r, decision.Location)
		default:
			next(w, r.WithContext(context.WithValue(r.Context(), ContextKeySession, store)))
		}
	}
}

// StoreFromContext returns the store SessionGuard attached, or nil
func StoreFromContext(ctx context.Context) *session.Store {
	store, _ := ctx.Value(ContextKeySession).(*session.Store)
	return store
}
