package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HAVEN_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "haven.db", cfg.DatabaseURL)
	assert.Equal(t, "gpt-3.5-turbo", cfg.CompletionModel)
	assert.Equal(t, 10*time.Minute, cfg.ResetCodeTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.False(t, cfg.UsesPostgres())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("HAVEN_JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("HAVEN_JWT_SECRET", "short")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadRejectsBadCost(t *testing.T) {
	t.Setenv("HAVEN_JWT_SECRET", testSecret)
	t.Setenv("HAVEN_BCRYPT_COST", "99")
	_, err := Load()
	require.Error(t, err)
}

func TestCompletionAPIKeyFallback(t *testing.T) {
	cfg := Config{AnthropicAPIKey: " second "}
	assert.Equal(t, "second", cfg.CompletionAPIKey())

	cfg.OpenAIAPIKey = "first"
	assert.Equal(t, "first", cfg.CompletionAPIKey())
}

func TestUsesPostgres(t *testing.T) {
	for _, dsn := range []string{"postgres://u@h/db", "postgresql://u@h/db", "user=x host=10.0.0.1 dbname=haven"} {
		assert.True(t, Config{DatabaseURL: dsn}.UsesPostgres(), dsn)
	}
	assert.False(t, Config{DatabaseURL: "/var/lib/haven/haven.db"}.UsesPostgres())
}
