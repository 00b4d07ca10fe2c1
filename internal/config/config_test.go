package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PRINTWORKS_AUTH_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.False(t, cfg.Store.UseRedis)
	assert.Equal(t, 10*time.Second, cfg.Reporting.QueryTimeout)
	assert.Equal(t, 500, cfg.Reporting.ListLimit)
	assert.Equal(t, []string{"/v1/admin/"}, cfg.Auth.AdminPaths)
	assert.True(t, cfg.IsDevelopment())
	assert.Empty(t, cfg.Server.TrustedProxies, "no forwarding headers are trusted by default")
	assert.Equal(t, 100000, cfg.RateLimit.MaxTrackedIPs)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PRINTWORKS_AUTH_ENABLED", "true")
	t.Setenv("PRINTWORKS_API_KEY_MASTER", "secret")
	t.Setenv("PRINTWORKS_STORE_BACKEND", "ClickHouse")
	t.Setenv("PRINTWORKS_QUERY_TIMEOUT", "0s")
	t.Setenv("PRINTWORKS_ADMIN_PATHS", "/v1/admin/, /internal/ ,")
	t.Setenv("PRINTWORKS_DB_PORT", "not-a-number")
	t.Setenv("PRINTWORKS_ENV", "production")
	t.Setenv("PRINTWORKS_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreClickHouse, cfg.Store.Backend)
	assert.Equal(t, time.Duration(0), cfg.Reporting.QueryTimeout)
	assert.Equal(t, []string{"/v1/admin/", "/internal/"}, cfg.Auth.AdminPaths)
	assert.Equal(t, 5432, cfg.Database.Port, "unparsable values fall back to the default")
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.Server.TrustedProxies)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "auth without key",
			mutate:  func(c *Config) { c.Auth.Enabled = true; c.Auth.MasterKey = "" },
			wantErr: "PRINTWORKS_API_KEY_MASTER",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "mongo" },
			wantErr: "PRINTWORKS_STORE_BACKEND",
		},
		{
			name:    "non-positive list limit",
			mutate:  func(c *Config) { c.Reporting.ListLimit = 0 },
			wantErr: "PRINTWORKS_LIST_LIMIT",
		},
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Store:     StoreConfig{Backend: StoreMemory},
				Reporting: ReportingConfig{ListLimit: 10},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5433, DBName: "events", SSLMode: "require"}
	assert.Equal(t, "postgres://u:p@db:5433/events?sslmode=require", d.DSN())

	ch := ClickHouseConfig{Host: "ch", Port: 9000}
	assert.Equal(t, "ch:9000", ch.Addr())
}
