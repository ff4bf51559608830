package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("Test Biz", 2026)
	cfg.Tenant.ID = "tenant-1"
	cfg.Tenant.OrganizationID = "org-1"
	cfg.Database.Driver = DriverPostgres
	cfg.Database.DSN = "postgres://localhost/piecebook"

	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaults(t *testing.T) {
	cfg := Default("My Company", 2026)

	assert.Equal(t, "My Company", cfg.Tenant.CompanyName)
	assert.Equal(t, 2026, cfg.Tenant.FiscalYear)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Database.TxTimeout)
	assert.Equal(t, 5, cfg.Posting.SequenceWidth)
	assert.Equal(t, 3, cfg.Posting.AllocationAttempts)
	assert.Equal(t, "STARTER", cfg.Quota.Plan)
	assert.True(t, cfg.Quota.Enabled)
	require.NoError(t, cfg.Validate())

	tol, err := cfg.Tolerance()
	require.NoError(t, err)
	assert.True(t, tol.Equal(decimal.RequireFromString("0.001")))
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYAMLFormat(t *testing.T) {
	cfg := Default("Test Biz", 2026)
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "company_name: Test Biz")
	assert.Contains(t, contents, "driver: sqlite")
	assert.Contains(t, contents, "balance_tolerance: \"0.001\"")
	assert.Contains(t, contents, "tx_timeout: 30s")
}

func TestLoadDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	yml := "database:\n  driver: memory\n  tx_timeout: 5s\nposting:\n  balance_tolerance: \"0.01\"\n  sequence_width: 6\n  allocation_attempts: 4\n  retry_initial_interval: 25ms\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
	assert.Equal(t, 25*time.Millisecond, cfg.Posting.RetryInitialInterval)
	assert.Equal(t, 6, cfg.Posting.SequenceWidth)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"bad tolerance", func(c *Config) { c.Posting.BalanceTolerance = "abc" }, "balance_tolerance"},
		{"negative tolerance", func(c *Config) { c.Posting.BalanceTolerance = "-1" }, "must not be negative"},
		{"zero width", func(c *Config) { c.Posting.SequenceWidth = 0 }, "sequence_width"},
		{"zero attempts", func(c *Config) { c.Posting.AllocationAttempts = 0 }, "allocation_attempts"},
		{"unknown plan", func(c *Config) { c.Quota.Plan = "GOLD" }, "quota.plan"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("x", 2026)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidate_MemoryNeedsNoDSN(t *testing.T) {
	cfg := Default("x", 2026)
	cfg.Database = DatabaseConfig{Driver: DriverMemory}
	cfg.Quota.Enabled = false
	cfg.Quota.Plan = ""
	assert.NoError(t, cfg.Validate())
}
