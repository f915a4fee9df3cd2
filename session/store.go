package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jrsteele09/scan-portal/internal/errors"
	"github.com/jrsteele09/scan-portal/token"
	"github.com/jrsteele09/scan-portal/transport"
	"github.com/jrsteele09/scan-portal/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAccessTokenExpiry  = 24 * time.Hour
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
	DefaultRefreshInterval    = time.Minute
	DefaultRefreshThreshold   = 5 * time.Minute
	DefaultUserCacheTTL       = 2 * time.Minute

	defaultLoginMessage    = "Invalid email or password"
	defaultRegisterMessage = "Registration failed"

	evictTimeout = 2 * time.Second
)

// Store is the single writer of a Session. Login, Register, Initialize, Logout and
// Refresh(IfNeeded) are the only mutators and run one at a time.
type Store struct {
	transport Transport
	storage   TokenStorage
	cache     UserCache
	cacheTTL  time.Duration

	accessExpiry     time.Duration
	refreshExpiry    time.Duration
	requireRefresh   bool
	refreshInterval  time.Duration
	refreshThreshold time.Duration

	logger zerolog.Logger
	now    func() time.Time

	// one slot: holding it means owning the mutation
	ops chan struct{}

	mu    sync.RWMutex
	state Session
}

type Option func(*Store)

func WithCookieExpiry(access, refresh time.Duration) Option {
	return func(s *Store) {
		s.accessExpiry = access
		s.refreshExpiry = refresh
	}
}

// WithRefreshRequired makes a login without a refresh token fail and enables
// expiry driven refreshes.
func WithRefreshRequired(required bool) Option {
	return func(s *Store) {
		s.requireRefresh = required
	}
}

// WithRefreshPolicy sets how often RunRefreshLoop checks the access token and
// the remaining lifetime under which it is refreshed.
func WithRefreshPolicy(interval, threshold time.Duration) Option {
	return func(s *Store) {
		s.refreshInterval = interval
		s.refreshThreshold = threshold
	}
}

func WithUserCache(cache UserCache, ttl time.Duration) Option {
	return func(s *Store) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns a store in the loading state. Call Initialize to rehydrate it.
func New(t Transport, storage TokenStorage, options ...Option) *Store {
	s := &Store{
		transport:        t,
		storage:          storage,
		cacheTTL:         DefaultUserCacheTTL,
		accessExpiry:     DefaultAccessTokenExpiry,
		refreshExpiry:    DefaultRefreshTokenExpiry,
		requireRefresh:   true,
		refreshInterval:  DefaultRefreshInterval,
		refreshThreshold: DefaultRefreshThreshold,
		logger:           log.With().Str("component", "session").Logger(),
		now:              func() time.Time { return token.NowTimeFunc() },
		ops:              make(chan struct{}, 1),
		state:            Session{Loading: true},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated()
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Loading
}

func (s *Store) IsDoctor() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsDoctor()
}

func (s *Store) IsPatient() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsPatient()
}

func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAdmin()
}

func (s *Store) HasRole(role users.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.HasRole(role)
}

// Initialize rehydrates the session from the persisted access token.
// A token the backend rejects is removed. When ctx ends first the state stays
// loading and nothing persisted is touched.
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	accessToken, ok := s.storage.Get(AccessTokenKey)
	if !ok || accessToken == "" {
		s.set(Session{})
		return nil
	}
	refreshToken, _ := s.storage.Get(RefreshTokenKey)
	s.update(func(st *Session) { st.Loading = true })

	user, err := s.currentUser(s.withTokens(ctx), accessToken)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isRejection(err) {
			s.logger.Info().Err(err).Msg("[Session Initialize] persisted token rejected")
			s.clearPersisted(ctx, accessToken)
		} else {
			s.logger.Warn().Err(err).Msg("[Session Initialize] backend unavailable")
		}
		s.set(Session{})
		return err
	}

	s.set(Session{
		User:          user,
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		Authenticated: true,
	})
	return nil
}

// Login exchanges credentials for a token pair, persists it and loads the user.
// A failed user fetch still authenticates the session with no user record.
// On failure only Loading and Error change.
func (s *Store) Login(ctx context.Context, creds users.Credentials) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.update(func(st *Session) {
		st.Loading = true
		st.Error = ""
	})

	ctx = s.withTokens(ctx)
	pair, err := s.transport.Login(ctx, creds)
	if err == nil {
		err = s.validatePair(pair)
	}
	if err != nil {
		s.fail(err, defaultLoginMessage)
		s.logger.Info().Err(err).Str("email", creds.Email).Msg("[Session Login] failed")
		return err
	}

	s.persist(pair)

	user, err := s.currentUser(ctx, pair.AccessToken)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", creds.Email).Msg("[Session Login] user fetch failed, continuing without user record")
		user = nil
	}

	s.set(Session{
		User:          user,
		AccessToken:   pair.AccessToken,
		RefreshToken:  pair.RefreshToken,
		Authenticated: true,
	})
	s.logger.Info().Str("email", creds.Email).Msg("[Session Login] authenticated")
	return nil
}

// Register creates an account. It never authenticates the caller.
func (s *Store) Register(ctx context.Context, reg users.Registration) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.update(func(st *Session) {
		st.Loading = true
		st.Error = ""
	})

	if err := s.transport.Register(s.withTokens(ctx), reg); err != nil {
		s.fail(err, defaultRegisterMessage)
		s.logger.Info().Err(err).Str("email", reg.Email).Msg("[Session Register] failed")
		return err
	}

	s.update(func(st *Session) { st.Loading = false })
	return nil
}

// Logout removes both persisted tokens and resets to the unauthenticated shape.
// It waits for an in-flight operation so that operation cannot re-authenticate afterwards.
func (s *Store) Logout() {
	s.ops <- struct{}{}
	defer s.release()

	accessToken, _ := s.storage.Get(AccessTokenKey)
	if accessToken == "" {
		accessToken = s.Snapshot().AccessToken
	}

	ctx, cancel := context.WithTimeout(context.Background(), evictTimeout)
	defer cancel()
	s.clearPersisted(ctx, accessToken)
	s.set(Session{})
}

// Refresh exchanges the current token pair for a new one and persists it.
// A rejected refresh, or any failure once the access token has expired, logs out.
func (s *Store) Refresh(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	return s.refresh(ctx)
}

// RefreshIfNeeded refreshes when the access token's remaining lifetime is under
// the threshold. Tokens without a decodable expiry are left alone.
func (s *Store) RefreshIfNeeded(ctx context.Context) (bool, error) {
	if err := s.acquire(ctx); err != nil {
		return false, err
	}
	defer s.release()

	if !s.requireRefresh {
		return false, nil
	}
	st := s.Snapshot()
	if !st.IsAuthenticated() {
		return false, nil
	}

	remaining, err := token.RemainingLifetime(st.AccessToken, s.now())
	if err != nil {
		s.logger.Debug().Err(err).Msg("[Session RefreshIfNeeded] access token expiry unreadable")
		return false, nil
	}
	if remaining >= s.refreshThreshold {
		return false, nil
	}

	if err := s.refresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// RunRefreshLoop checks the access token every refresh interval until ctx is done
func (s *Store) RunRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshed, err := s.RefreshIfNeeded(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("[Session RefreshLoop] refresh failed")
				continue
			}
			if refreshed {
				s.logger.Debug().Msg("[Session RefreshLoop] tokens refreshed")
			}
		}
	}
}

func (s *Store) refresh(ctx context.Context) error {
	st := s.Snapshot()
	if !st.IsAuthenticated() {
		return errors.ErrNotLoggedIn
	}

	refreshToken := st.RefreshToken
	if refreshToken == "" {
		refreshToken, _ = s.storage.Get(RefreshTokenKey)
	}
	if refreshToken == "" {
		return s.refreshFailed(ctx, st, errors.ErrNoRefreshToken)
	}

	pair, err := s.transport.Refresh(s.withTokens(ctx), st.AccessToken, refreshToken)
	if err == nil && pair.AccessToken == "" {
		err = &errors.ValidationError{Field: "access_token", Err: errors.ErrNoAccessToken}
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.refreshFailed(ctx, st, err)
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}

	s.persist(pair)
	s.moveCachedUser(ctx, st.AccessToken, pair.AccessToken, st.User)
	s.update(func(cur *Session) {
		cur.AccessToken = pair.AccessToken
		cur.RefreshToken = pair.RefreshToken
	})
	return nil
}

func (s *Store) refreshFailed(ctx context.Context, st Session, err error) error {
	if isRejection(err) || s.expired(st.AccessToken) {
		s.logger.Info().Err(err).Msg("[Session Refresh] refresh rejected, logging out")
		s.clearPersisted(ctx, st.AccessToken)
		s.set(Session{})
		return err
	}
	s.logger.Warn().Err(err).Msg("[Session Refresh] transient failure, keeping session")
	return err
}

func (s *Store) expired(accessToken string) bool {
	remaining, err := token.RemainingLifetime(accessToken, s.now())
	return err == nil && remaining == 0
}

func (s *Store) validatePair(pair token.Pair) error {
	if pair.AccessToken == "" {
		return &errors.ValidationError{Field: "access_token", Err: errors.ErrNoAccessToken}
	}
	if s.requireRefresh && pair.RefreshToken == "" {
		return &errors.ValidationError{Field: "refresh_token", Err: errors.ErrNoRefreshToken}
	}
	return nil
}

func (s *Store) currentUser(ctx context.Context, accessToken string) (*users.User, error) {
	if s.cache != nil {
		user, err := s.cache.Get(ctx, accessToken)
		switch {
		case err == nil && user != nil:
			return user, nil
		case err != nil && !errors.Is(err, errors.ErrNotFound):
			s.logger.Warn().Err(err).Msg("[Session UserCache] get failed")
		}
	}

	user, err := s.transport.FetchCurrentUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	s.cacheUser(ctx, accessToken, user)
	return user, nil
}

func (s *Store) cacheUser(ctx context.Context, accessToken string, user *users.User) {
	if s.cache == nil || user == nil {
		return
	}
	ttl := s.cacheTTL
	if remaining, err := token.RemainingLifetime(accessToken, s.now()); err == nil && remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	if err := s.cache.Put(ctx, accessToken, user, ttl); err != nil {
		s.logger.Warn().Err(err).Msg("[Session UserCache] put failed")
	}
}

func (s *Store) moveCachedUser(ctx context.Context, oldToken, newToken string, user *users.User) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, oldToken); err != nil {
		s.logger.Warn().Err(err).Msg("[Session UserCache] delete failed")
	}
	s.cacheUser(ctx, newToken, user)
}

func (s *Store) persist(pair token.Pair) {
	s.storage.Set(AccessTokenKey, pair.AccessToken, s.accessExpiry)
	if pair.RefreshToken != "" {
		s.storage.Set(RefreshTokenKey, pair.RefreshToken, s.refreshExpiry)
	}
}

func (s *Store) clearPersisted(ctx context.Context, accessToken string) {
	s.storage.Remove(AccessTokenKey)
	s.storage.Remove(RefreshTokenKey)
	if s.cache == nil || accessToken == "" {
		return
	}
	if err := s.cache.Delete(ctx, accessToken); err != nil {
		s.logger.Warn().Err(err).Msg("[Session UserCache] delete failed")
	}
}

func (s *Store) fail(err error, fallback string) {
	msg := ErrorMessage(err, fallback)
	s.update(func(st *Session) {
		st.Loading = false
		st.Error = msg
	})
}

// withTokens lets the transport attach the persisted access token to calls that
// don't carry one explicitly.
func (s *Store) withTokens(ctx context.Context) context.Context {
	return transport.WithTokenSource(ctx, func() string {
		accessToken, _ := s.storage.Get(AccessTokenKey)
		return accessToken
	})
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.ops <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.ops
}

func (s *Store) set(st Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Store) update(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// ErrorMessage returns the most specific message for err: the backend's detail,
// then the error text, then fallback.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var tErr *errors.TransportError
	if errors.As(err, &tErr) && tErr.Detail != "" {
		return tErr.Detail
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

// isRejection reports whether the backend answered and refused the credentials,
// as opposed to being unreachable or missing the endpoint.
func isRejection(err error) bool {
	var vErr *errors.ValidationError
	if errors.As(err, &vErr) {
		return true
	}
	var tErr *errors.TransportError
	if !errors.As(err, &tErr) {
		return false
	}
	switch tErr.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return true
	}
	return false
}
