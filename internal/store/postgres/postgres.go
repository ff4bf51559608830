// Package postgres opens a piecebook store on PostgreSQL through pgx's
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/store/sqlstore"
)

const uniqueViolation = "23505"

// Dialect is the PostgreSQL flavour of sqlstore. LockJournal takes a row lock
// on the journal so concurrent writers of one journal queue behind each other.
var Dialect = &sqlstore.Dialect{
	Name:              "postgres",
	Positional:        true,
	LockSuffix:        " FOR UPDATE",
	Schema:            schema,
	IsUniqueViolation: isUniqueViolation,
	DateValue: func(t time.Time) any {
		return model.TruncateDate(t)
	},
	TimeValue: func(t time.Time) any {
		return t.UTC()
	},
}

// Config tunes the connection pool.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, cfg Config, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres: DSN is required")
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return sqlstore.New(db, Dialect, opts...), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    company_name TEXT NOT NULL,
    fiscal_year INTEGER NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    currency TEXT NOT NULL DEFAULT 'MAD'
)`,
	`CREATE TABLE IF NOT EXISTS journals (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL REFERENCES tenants(id),
    code TEXT NOT NULL,
    label TEXT NOT NULL,
    nature TEXT NOT NULL,
    principal_account TEXT NOT NULL DEFAULT '',
    UNIQUE (tenant_id, code)
)`,
	`CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL REFERENCES tenants(id),
    code TEXT NOT NULL,
    label TEXT NOT NULL,
    class INTEGER NOT NULL,
    type TEXT NOT NULL,
    is_auxiliary_required BOOLEAN NOT NULL DEFAULT FALSE,
    UNIQUE (tenant_id, code)
)`,
	`CREATE TABLE IF NOT EXISTS auxiliaries (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL REFERENCES tenants(id),
    code TEXT NOT NULL,
    label TEXT NOT NULL,
    type TEXT NOT NULL,
    UNIQUE (tenant_id, code)
)`,
	`CREATE TABLE IF NOT EXISTS pieces (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL REFERENCES tenants(id),
    journal_id TEXT NOT NULL REFERENCES journals(id),
    piece_number TEXT NOT NULL,
    date DATE NOT NULL,
    reference TEXT,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    UNIQUE (journal_id, piece_number)
)`,
	`CREATE INDEX IF NOT EXISTS idx_pieces_tenant_journal_date ON pieces (tenant_id, journal_id, date)`,
	`CREATE TABLE IF NOT EXISTS transaction_lines (
    id TEXT PRIMARY KEY,
    piece_id TEXT NOT NULL REFERENCES pieces(id) ON DELETE CASCADE,
    tenant_id TEXT NOT NULL REFERENCES tenants(id),
    line_number INTEGER NOT NULL,
    account_id TEXT NOT NULL REFERENCES accounts(id),
    account_code TEXT NOT NULL,
    auxiliary_id TEXT REFERENCES auxiliaries(id),
    cost_center_id TEXT,
    label TEXT NOT NULL,
    debit NUMERIC NOT NULL DEFAULT 0,
    credit NUMERIC NOT NULL DEFAULT 0,
    is_export_product BOOLEAN NOT NULL DEFAULT FALSE,
    is_deductible_charge BOOLEAN NOT NULL DEFAULT FALSE,
    is_non_deductible_charge BOOLEAN NOT NULL DEFAULT FALSE,
    is_fiscal_depreciation BOOLEAN NOT NULL DEFAULT FALSE,
    is_accounting_depreciation BOOLEAN NOT NULL DEFAULT FALSE,
    is_investment BOOLEAN NOT NULL DEFAULT FALSE,
    UNIQUE (piece_id, line_number),
    CHECK ((debit > 0) <> (credit > 0))
)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    type TEXT NOT NULL,
    description TEXT NOT NULL,
    user_id TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_tenant ON activity_logs (tenant_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
    organization_id TEXT PRIMARY KEY,
    plan TEXT NOT NULL,
    status TEXT NOT NULL,
    max_transactions_per_month BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS usage_metrics (
    organization_id TEXT NOT NULL,
    metric TEXT NOT NULL,
    period TEXT NOT NULL,
    used BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (organization_id, metric, period)
)`,
}
