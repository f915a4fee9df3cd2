package config

type SecurityConfig interface {
	GetLoginRateLimit() int
	GetSecureCookies() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetLoginRateLimit is the number of login/register submissions allowed per IP per minute
func (Security) GetLoginRateLimit() int {
	return GetIntEnv("LOGIN_RATE_LIMIT", 10)
}

// GetSecureCookies forces the Secure flag on session cookies even when the
// request did not arrive over TLS (e.g. behind a TLS terminating proxy)
func (Security) GetSecureCookies() bool {
	return GetBoolEnv("SECURE_COOKIES", false)
}
