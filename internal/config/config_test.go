package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ServerPort:     "8080",
		DatabaseURL:    "postgres://localhost/postboard",
		JWTSecret:      "secret",
		JWTAccessTTL:   30 * time.Minute,
		JWTRefreshTTL:  168 * time.Hour,
		UploadRoot:     "./uploads",
		ThumbnailRoot:  "./thumbnails",
		MaxUploadSize:  1024,
		RequestTimeout: 30 * time.Second,
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTSecret = "  "
		assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")
	})

	t.Run("missing database url", func(t *testing.T) {
		cfg := validConfig()
		cfg.DatabaseURL = ""
		assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")
	})

	t.Run("refresh ttl must exceed access ttl", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTRefreshTTL = cfg.JWTAccessTTL
		assert.ErrorContains(t, cfg.Validate(), "JWT_REFRESH_TTL")
	})

	t.Run("non-positive upload size", func(t *testing.T) {
		cfg := validConfig()
		cfg.MaxUploadSize = 0
		assert.ErrorContains(t, cfg.Validate(), "MAX_UPLOAD_SIZE")
	})
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/postboard_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 30*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.JWTRefreshTTL)
	assert.Equal(t, "refresh_token", cfg.RefreshCookieName)
	assert.Contains(t, cfg.AllowedMIMETypes, "image/jpeg")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/postboard_test")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("RATE_LIMIT_RPM", "42")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, 42, cfg.RateLimitRPM)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}
