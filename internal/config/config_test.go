package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  driver: postgres
  dsn: postgres://localhost/sitesync
kv:
  backend: redis
feed:
  transport: postgres
session:
  expiry: 12h
  empty_phase_policy: reset
`), 0o600))

	t.Setenv("SITESYNC_MAX_CONCURRENT_FETCHES", "3")
	t.Setenv("SITESYNC_AUTH_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Backend.Driver)
	assert.Equal(t, "postgres://localhost/sitesync", cfg.Feed.PostgresDSN, "feed DSN follows the backend")
	assert.Equal(t, "redis", cfg.KV.Backend)
	assert.Equal(t, "localhost:6379", cfg.KV.RedisAddr, "unset keys keep defaults")
	assert.Equal(t, 12*time.Hour, cfg.Session.Expiry)
	assert.Equal(t, "reset", cfg.Session.EmptyPhasePolicy)
	assert.Equal(t, 3, cfg.Session.MaxConcurrentFetches)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
}

func TestLoad_IgnoresBadEnvNumbers(t *testing.T) {
	t.Setenv("SITESYNC_MAX_CONCURRENT_FETCHES", "lots")
	t.Setenv("SITESYNC_SESSION_EXPIRY", "-1h")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Session.MaxConcurrentFetches)
	assert.Equal(t, 24*time.Hour, cfg.Session.Expiry)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Backend.Driver = "mysql"
	cfg.KV.Backend = "etcd"
	cfg.Feed.Transport = "postgres"
	cfg.Session.EmptyPhasePolicy = "drop"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"backend.driver", "kv.backend", "feed.postgres_dsn", "empty_phase_policy"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
