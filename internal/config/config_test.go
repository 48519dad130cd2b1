package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-hr-console/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvDefaults(t *testing.T) {
	t.Setenv("HR_API_BASE_URL", "")
	e, err := config.DecodeEnv()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8080", e.GetAPIBaseURL())
	require.Equal(t, 10*time.Second, e.GetRequestTimeout())
	require.Equal(t, "/login", e.GetLoginPath())
	require.Equal(t, config.SessionBackendFile, e.GetSessionBackend())
	require.Equal(t, time.Second, e.GetTickInterval())
	require.Equal(t, ":8080", e.GetPort())
}

func TestDecodeEnvOverrides(t *testing.T) {
	t.Setenv("HR_API_BASE_URL", "https://hr.example.com/api/")
	t.Setenv("HR_API_TIMEOUT", "3s")
	t.Setenv("HR_SESSION_BACKEND", "Redis")
	t.Setenv("PORT", ":9090")
	t.Setenv("HR_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "https://hr.example.com/api", cfg.GetAPIBaseURL())
	require.Equal(t, 3*time.Second, cfg.GetRequestTimeout())
	require.Equal(t, config.SessionBackendRedis, cfg.GetSessionBackend())
	require.Equal(t, ":9090", cfg.GetPort())
	require.True(t, cfg.GetAllowedOrigins().IsAllowedOrigin("https://b.example.com"))
	require.False(t, cfg.GetAllowedOrigins().IsAllowedOrigin("https://c.example.com"))
}

func TestDecodeEnvRejectsUnknownBackend(t *testing.T) {
	t.Setenv("HR_SESSION_BACKEND", "sqlite")
	_, err := config.DecodeEnv()
	require.Error(t, err)
}

func TestZeroValuesFallBack(t *testing.T) {
	var e config.EnvVars
	require.Equal(t, 10*time.Second, e.GetRequestTimeout())
	require.Equal(t, time.Second, e.GetTickInterval())
	require.Equal(t, 15*time.Minute, e.GetAccessTokenTTL())
	require.Equal(t, "DEV", e.GetEnv())
}
