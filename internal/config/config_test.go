package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "DATABASE_URL", "VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY", "VAPID_SUBSCRIBER", "SESSION_KEY", "LOG_LEVEL", "NOTIFICATION_LANG"} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "en", cfg.NotificationLang)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("DATABASE_URL", "postgres://localhost/hemogram")
	t.Setenv("NOTIFICATION_LANG", "pt-BR")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "postgres://localhost/hemogram", cfg.DatabaseURL)
	assert.Equal(t, "pt-BR", cfg.NotificationLang)
}

func TestLoadInvalidRedisDB(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REDIS_DB", "one")

	_, err := Load(zerolog.Nop())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Port: "8080"}
	assert.Error(t, cfg.Validate())

	cfg.DatabaseURL = "postgres://localhost/hemogram"
	assert.NoError(t, cfg.Validate())

	cfg.Port = "http"
	assert.Error(t, cfg.Validate())
}

func TestEnsureVAPIDKeys(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.EnsureVAPIDKeys(zerolog.Nop()))
	assert.NotEmpty(t, cfg.VAPIDPublicKey)
	assert.NotEmpty(t, cfg.VAPIDPrivateKey)

	kept := &Config{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv"}
	require.NoError(t, kept.EnsureVAPIDKeys(zerolog.Nop()))
	assert.Equal(t, "pub", kept.VAPIDPublicKey)
	assert.Equal(t, "priv", kept.VAPIDPrivateKey)
}
