package config

import "time"

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	SecurityConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetLoginFallback() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type mainConfig struct {
	EnvVars
	API
	Session
	Security
	Cors
}

func New() Config {
	return mainConfig{}
}
