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
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10, cfg.SectionLimit)
	assert.Equal(t, 15, cfg.ComponentLimit)
	assert.Equal(t, LimitScopeSection, cfg.ComponentLimitScope)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HACKERFOLIO_ADDR", ":9000")
	t.Setenv("HACKERFOLIO_STORE_DRIVER", "Memory")
	t.Setenv("HACKERFOLIO_ACCESS_TTL", "5m")
	t.Setenv("HACKERFOLIO_SECTION_LIMIT", "4")
	t.Setenv("HACKERFOLIO_COMPONENT_LIMIT_SCOPE", "portfolio")
	t.Setenv("HACKERFOLIO_REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("HACKERFOLIO_PUBLISH_ENDPOINT", "localhost:9000")
	t.Setenv("HACKERFOLIO_PUBLISH_USE_SSL", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 4, cfg.SectionLimit)
	assert.Equal(t, LimitScopePortfolio, cfg.ComponentLimitScope)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, "localhost:9000", cfg.PublishEndpoint)
	assert.True(t, cfg.PublishUseSSL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HACKERFOLIO_COMPONENT_LIMIT_SCOPE", "global")
	t.Setenv("HACKERFOLIO_STORE_DRIVER", "sqlite")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "component_limit_scope")
	assert.Contains(t, err.Error(), "store_driver")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "jwt_secret"},
		{"zero limit", func(c *Config) { c.SectionLimit = 0 }, "section_limit"},
		{"missing dsn", func(c *Config) { c.DatabaseURL = "" }, "database_url"},
		{"bucket", func(c *Config) { c.PublishEndpoint = "s3.local"; c.PublishBucket = "" }, "publish_bucket"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := Default()
	cfg.StoreDriver = StoreDriverMemory
	cfg.DatabaseURL = ""
	require.NoError(t, cfg.Validate())
}
