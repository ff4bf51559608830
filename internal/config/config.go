package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/piecebook/internal/model"
)

// FileName is the default config file name.
const FileName = "piecebook.yaml"

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the top-level piecebook.yaml configuration.
type Config struct {
	Tenant   TenantConfig   `yaml:"tenant"`
	Database DatabaseConfig `yaml:"database"`
	Posting  PostingConfig  `yaml:"posting"`
	Quota    QuotaConfig    `yaml:"quota"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
}

// TenantConfig identifies the tenant the CLI acts on.
type TenantConfig struct {
	ID             string `yaml:"id"`
	OrganizationID string `yaml:"organization_id"`
	CompanyName    string `yaml:"company_name"`
	FiscalYear     int    `yaml:"fiscal_year"`
	Currency       string `yaml:"currency"`
}

// DatabaseConfig selects and tunes the store.
type DatabaseConfig struct {
	Driver       string        `yaml:"driver"` // memory, sqlite or postgres
	DSN          string        `yaml:"dsn"`    // file path for sqlite
	MaxOpenConns int           `yaml:"max_open_conns,omitempty"`
	TxTimeout    time.Duration `yaml:"tx_timeout"`
}

// PostingConfig tunes the posting pipeline.
type PostingConfig struct {
	BalanceTolerance     string        `yaml:"balance_tolerance"` // decimal string, e.g. "0.001"
	SequenceWidth        int           `yaml:"sequence_width"`
	AllocationAttempts   int           `yaml:"allocation_attempts"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
}

// QuotaConfig controls the subscription gate and the subscription created by init.
type QuotaConfig struct {
	Enabled bool   `yaml:"enabled"`
	Plan    string `yaml:"plan"`
	Status  string `yaml:"status"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Load reads a piecebook.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(companyName string, fiscalYear int) *Config {
	return &Config{
		Tenant: TenantConfig{
			CompanyName: companyName,
			FiscalYear:  fiscalYear,
			Currency:    "DZD",
		},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			DSN:          "piecebook.db",
			MaxOpenConns: 1,
			TxTimeout:    30 * time.Second,
		},
		Posting: PostingConfig{
			BalanceTolerance:     "0.001",
			SequenceWidth:        5,
			AllocationAttempts:   3,
			RetryInitialInterval: 10 * time.Millisecond,
		},
		Quota: QuotaConfig{
			Enabled: true,
			Plan:    string(model.PlanStarter),
			Status:  string(model.SubscriptionTrial),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Tolerance parses Posting.BalanceTolerance.
func (c *Config) Tolerance() (decimal.Decimal, error) {
	tol, err := decimal.NewFromString(c.Posting.BalanceTolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("posting.balance_tolerance %q: %w", c.Posting.BalanceTolerance, err)
	}
	return tol, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want memory, sqlite or postgres", c.Database.Driver))
	}

	if tol, err := c.Tolerance(); err != nil {
		errs = append(errs, err)
	} else if tol.IsNegative() {
		errs = append(errs, fmt.Errorf("posting.balance_tolerance must not be negative"))
	}
	if c.Posting.SequenceWidth < 1 {
		errs = append(errs, fmt.Errorf("posting.sequence_width must be at least 1"))
	}
	if c.Posting.AllocationAttempts < 1 {
		errs = append(errs, fmt.Errorf("posting.allocation_attempts must be at least 1"))
	}

	if c.Quota.Enabled {
		switch model.Plan(c.Quota.Plan) {
		case model.PlanStarter, model.PlanProfessional, model.PlanCabinet, model.PlanCustom:
		default:
			errs = append(errs, fmt.Errorf("quota.plan %q is unknown", c.Quota.Plan))
		}
	}

	switch c.Log.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want json or console", c.Log.Format))
	}

	return errors.Join(errs...)
}
