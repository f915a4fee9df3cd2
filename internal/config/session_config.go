package config

import "time"

type SessionConfig interface {
	GetAccessTokenCookieExpiry() time.Duration
	GetRefreshTokenCookieExpiry() time.Duration
	GetRequireRefreshToken() bool
	GetRefreshThreshold() time.Duration
	GetUserCacheTTL() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetAccessTokenCookieExpiry() time.Duration {
	return 24 * time.Hour
}

func (Session) GetRefreshTokenCookieExpiry() time.Duration {
	return 7 * 24 * time.Hour
}

// GetRequireRefreshToken makes a login without a refresh token a failure
func (Session) GetRequireRefreshToken() bool {
	return GetBoolEnv("SESSION_REQUIRE_REFRESH", true)
}

// GetRefreshThreshold is the remaining access token lifetime under which a refresh is triggered
func (Session) GetRefreshThreshold() time.Duration {
	return GetDurationEnv("SESSION_REFRESH_THRESHOLD", 5*time.Minute)
}

func (Session) GetUserCacheTTL() time.Duration {
	return GetDurationEnv("USER_CACHE_TTL", 2*time.Minute)
}
