package config

import "time"

type API struct{}

var _ APIConfig = API{}

// GetAPIBaseURL returns the REST backend base URL including the /api prefix
func (API) GetAPIBaseURL() string {
	return GetEnv("API_BASE_URL", "http://localhost:8000/api")
}

func (API) GetAPITimeout() time.Duration {
	return GetDurationEnv("API_TIMEOUT", 10*time.Second)
}

// GetLoginFallback enables the single retry against the form-encoded login endpoint
func (API) GetLoginFallback() bool {
	return GetBoolEnv("API_LOGIN_FALLBACK", true)
}
