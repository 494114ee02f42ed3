package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobooth-kiosk/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("PORT", "")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "captures", cfg.SupabaseStorageBucket)
	assert.Equal(t, 3600, cfg.SignedURLTTL)
	assert.Equal(t, 3, cfg.CountdownSeconds)
	assert.Equal(t, 10*time.Second, cfg.FinishTimeout)
	assert.Equal(t, 2*time.Minute, cfg.UploadTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.GIFDelay)
	assert.Equal(t, "uploads", cfg.LocalStorageDir)
	assert.Equal(t, "templates", cfg.TemplatesBucket)
	assert.False(t, cfg.UseSupabase())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COUNTDOWN_SECONDS", "5")
	t.Setenv("SESSION_TIMEOUT", "90s")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_PUBLISHABLE_KEY", "key")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.CountdownSeconds)
	assert.Equal(t, 90*time.Second, cfg.SessionTimeout)
	assert.True(t, cfg.UseSupabase())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &config.Config{
		SupabaseURL:  "https://example.supabase.co",
		SignedURLTTL: 0,
	}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_PUBLISHABLE_KEY")
	assert.Contains(t, err.Error(), "SIGNED_URL_TTL")
	assert.Contains(t, err.Error(), "COUNTDOWN_SECONDS")
}

func TestLocalSigningKey_FallsBackToJWTSecret(t *testing.T) {
	cfg := &config.Config{SupabaseJWTSecret: "jwt-secret"}
	assert.Equal(t, []byte("jwt-secret"), cfg.LocalSigningKey())

	cfg.LocalStorageSecret = "local-secret"
	assert.Equal(t, []byte("local-secret"), cfg.LocalSigningKey())
}
