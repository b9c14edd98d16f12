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
	assert.Equal(t, "uni-enrollment-api", cfg.AppName)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 3, cfg.Enrollment.CapacityLowThreshold)
	assert.Equal(t, time.Minute, cfg.Catalog.CacheTTL)
	assert.Len(t, cfg.Notifications.AdminEmails, 3)
	assert.True(t, cfg.Reports.Enabled)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENABLE_REDIS", "true")
	t.Setenv("ENABLE_CATALOG_CACHE", "true")
	t.Setenv("CATALOG_CACHE_TTL", "45s")
	t.Setenv("ALLOWED_ORIGINS", " https://portal.uni.test , ,https://admin.uni.test")
	t.Setenv("ENROLLMENT_CAPACITY_LOW_THRESHOLD", "-1")
	t.Setenv("JWT_EXPIRATION", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.Catalog.CacheTTL)
	assert.Equal(t, []string{"https://portal.uni.test", "https://admin.uni.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 3, cfg.Enrollment.CapacityLowThreshold)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
}

func TestValidateRejectsUnsafeSettings(t *testing.T) {
	t.Setenv("ENV", EnvProduction)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	cfg := &Config{Port: 8080, JWT: JWTConfig{Secret: "s"}, Catalog: CatalogConfig{CacheEnabled: true}, Notifications: NotificationConfig{Async: true}}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENABLE_CATALOG_CACHE requires ENABLE_REDIS")
	assert.Contains(t, err.Error(), "NOTIFY_WORKERS")
}
