package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

const (
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

// EnvVars holds every tunable read from the environment. Defaults live in the struct tags.
type EnvVars struct {
	AppName  string `env:"APP_NAME,default=HR Console"`
	Env      string `env:"ENV,default=DEV"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	APIBaseURL     string        `env:"HR_API_BASE_URL,default=http://localhost:8080"`
	RequestTimeout time.Duration `env:"HR_API_TIMEOUT,default=10s"`
	LoginPath      string        `env:"HR_LOGIN_PATH,default=/login"`

	SessionBackend string        `env:"HR_SESSION_BACKEND,default=file"`
	SessionFile    string        `env:"HR_SESSION_FILE,default=./data/session.json"`
	RedisAddr      string        `env:"HR_REDIS_ADDR,default=localhost:6379"`
	SessionKey     string        `env:"HR_SESSION_KEY,default=hrconsole:session"`
	SessionTTL     time.Duration `env:"HR_SESSION_TTL,default=168h"`

	TickInterval time.Duration `env:"HR_TICK_INTERVAL,default=1s"`

	Port            string        `env:"PORT,default=8080"`
	JWTSecret       string        `env:"HR_JWT_SECRET,default=dev-secret-change-me"`
	AccessTokenTTL  time.Duration `env:"HR_ACCESS_TOKEN_TTL,default=15m"`
	RefreshTokenTTL time.Duration `env:"HR_REFRESH_TOKEN_TTL,default=168h"`
	OTPTTL          time.Duration `env:"HR_OTP_TTL,default=5m"`
	AllowedOrigins  string        `env:"HR_ALLOWED_ORIGINS,default=http://localhost:3000"`
}

var _ EnvConfig = EnvVars{}
var _ APIConfig = EnvVars{}
var _ SessionConfig = EnvVars{}
var _ AttendanceConfig = EnvVars{}
var _ ServerConfig = EnvVars{}

// DecodeEnv populates EnvVars from the process environment.
func DecodeEnv() (EnvVars, error) {
	var e EnvVars
	if err := envdecode.Decode(&e); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return EnvVars{}, fmt.Errorf("config.DecodeEnv: %w", err)
	}
	e.SessionBackend = strings.ToLower(strings.TrimSpace(e.SessionBackend))
	switch e.SessionBackend {
	case SessionBackendFile, SessionBackendRedis, SessionBackendMemory:
	default:
		return EnvVars{}, fmt.Errorf("config.DecodeEnv: unknown session backend %q", e.SessionBackend)
	}
	return e, nil
}

func (e EnvVars) GetAppName() string { return e.AppName }

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

func (e EnvVars) GetLogLevel() string { return e.LogLevel }

func (e EnvVars) GetAPIBaseURL() string {
	return strings.TrimRight(e.APIBaseURL, "/")
}

// GetRequestTimeout never returns zero so that no request can hang forever.
func (e EnvVars) GetRequestTimeout() time.Duration {
	if e.RequestTimeout <= 0 {
		return 10 * time.Second
	}
	return e.RequestTimeout
}

func (e EnvVars) GetLoginPath() string {
	if e.LoginPath == "" {
		return "/login"
	}
	return e.LoginPath
}

func (e EnvVars) GetSessionBackend() string {
	if e.SessionBackend == "" {
		return SessionBackendFile
	}
	return e.SessionBackend
}

func (e EnvVars) GetSessionFile() string { return e.SessionFile }
func (e EnvVars) GetRedisAddr() string   { return e.RedisAddr }
func (e EnvVars) GetSessionKey() string  { return e.SessionKey }

func (e EnvVars) GetSessionTTL() time.Duration { return e.SessionTTL }

func (e EnvVars) GetTickInterval() time.Duration {
	if e.TickInterval <= 0 {
		return time.Second
	}
	return e.TickInterval
}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if port[0] != ':' {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetJWTSecret() string { return e.JWTSecret }

func (e EnvVars) GetAccessTokenTTL() time.Duration {
	if e.AccessTokenTTL <= 0 {
		return 15 * time.Minute
	}
	return e.AccessTokenTTL
}

func (e EnvVars) GetRefreshTokenTTL() time.Duration {
	if e.RefreshTokenTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return e.RefreshTokenTTL
}

func (e EnvVars) GetOTPTTL() time.Duration {
	if e.OTPTTL <= 0 {
		return 5 * time.Minute
	}
	return e.OTPTTL
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
