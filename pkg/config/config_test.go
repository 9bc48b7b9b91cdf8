package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 3003, cfg.Ports.Auth)
	assert.Equal(t, 3004, cfg.Ports.Document)
	assert.Equal(t, 3000, cfg.Ports.Gateway)
	assert.Equal(t, 3005, cfg.Ports.Worker)
	assert.Equal(t, "policy_auth", cfg.AuthDB.Name)
	assert.Equal(t, "policy_documents", cfg.DocumentDB.Name)
	assert.Equal(t, NotifyDriverMemory, cfg.Notify.Driver)
	assert.Equal(t, time.Hour, cfg.Credentials.PasswordResetTTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JWT_EXPIRATION", "30m")
	t.Setenv("DOCUMENT_DB_NAME", "docs_test")
	t.Setenv("NOTIFY_DRIVER", "ASYNQ")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("UPSTREAM_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, "docs_test", cfg.DocumentDB.Name)
	assert.Equal(t, NotifyDriverAsynq, cfg.Notify.Driver)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Upstreams.Timeout)
}
