package config

import "time"

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	AttendanceConfig
	ServerConfig
	CorsConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

// APIConfig describes how the console reaches the HR backend.
type APIConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetLoginPath() string
}

// SessionConfig selects where the session is persisted between runs.
type SessionConfig interface {
	GetSessionBackend() string
	GetSessionFile() string
	GetRedisAddr() string
	GetSessionKey() string
	GetSessionTTL() time.Duration
}

type AttendanceConfig interface {
	GetTickInterval() time.Duration
}

// ServerConfig is only read by the development backend.
type ServerConfig interface {
	GetPort() string
	GetJWTSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetOTPTTL() time.Duration
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
}

// New decodes the environment into a Config, falling back to defaults for unset variables.
func New() (Config, error) {
	env, err := DecodeEnv()
	if err != nil {
		return nil, err
	}
	return mainConfig{EnvVars: env, Cors: NewCors(env.AllowedOrigins)}, nil
}

// From wraps already populated values, mainly for tests and embedding.
func From(env EnvVars) Config {
	return mainConfig{EnvVars: env, Cors: NewCors(env.AllowedOrigins)}
}
