package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("PUBLIC_BASE_URL", "https://id.teedin.test")
	t.Setenv("APP_CALLBACK_URL", "https://app.teedin.test/auth/callback")
	t.Setenv("DIRECTORY_DSN", "postgres://u:p@localhost/teedin")
	t.Setenv("LINE_CHANNEL_ID", "1234567890")
	t.Setenv("LINE_CHANNEL_SECRET", "chansecret")
	t.Setenv("LINE_REDIRECT_URL", "https://id.teedin.test/v1/auth/line/callback")
}

func TestLoadEnvOnly(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "memory", cfg.Cache.Driver)
	require.Equal(t, 10*time.Minute, cfg.State.TTL)
	require.Equal(t, 5*time.Minute, cfg.Bridge.TTL)
	require.True(t, cfg.LineConfigured())
	require.False(t, cfg.GoogleConfigured())
	require.Equal(t, "s3cret", cfg.State.Secret, "state secret falls back to session secret")
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("HTTP_ADDR", ":9999")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8081"
  home_url: "/dashboard"
bridge:
  ttl: 2m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Server.Addr, "env wins over yaml")
	require.Equal(t, "/dashboard", cfg.Server.HomeURL)
	require.Equal(t, 2*time.Minute, cfg.Bridge.TTL)
}

func TestValidateMissingSecret(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SESSION_SECRET", "")

	_, err := Load("")
	require.ErrorIs(t, err, ErrConfig)
	require.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestValidatePartialProvider(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GOOGLE_CLIENT_ID", "gid")
	// secret and redirect missing

	_, err := Load("")
	require.ErrorIs(t, err, ErrConfig)
	require.Contains(t, err.Error(), "GOOGLE")
}

func TestValidateNoProviderAtAll(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LINE_CHANNEL_ID", "")
	t.Setenv("LINE_CHANNEL_SECRET", "")
	t.Setenv("LINE_REDIRECT_URL", "")

	_, err := Load("")
	require.ErrorIs(t, err, ErrConfig)
}

func TestValidateRedisNeedsAddr(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CACHE_DRIVER", "redis")

	_, err := Load("")
	require.ErrorIs(t, err, ErrConfig)
	require.Contains(t, err.Error(), "REDIS_ADDR")
}
