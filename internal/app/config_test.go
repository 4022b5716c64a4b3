package app

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "session")
	t.Setenv("CSRF_SECRET", "csrf")
	t.Setenv("APP_ENV", "unused")
	require.NoError(t, os.Unsetenv("APP_ENV"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, 15, cfg.PostsPerPage)
	assert.Equal(t, 5*time.Minute, cfg.PostsCacheTTL)
	assert.Equal(t, 90*24*time.Hour, cfg.AuditRetention)
	assert.EqualValues(t, 10, cfg.PGMaxConns)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", "session")
	t.Setenv("CSRF_SECRET", "csrf")
	t.Setenv("APP_ENV", "production")
	t.Setenv("POSTS_PER_PAGE", "5")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "120")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5, cfg.PostsPerPage)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("SESSION_SECRET", "session")
	t.Setenv("CSRF_SECRET", "csrf")
	t.Setenv("POSTS_PER_PAGE", "0")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "csrf")

	_, err := LoadConfig()
	require.Error(t, err)
}
