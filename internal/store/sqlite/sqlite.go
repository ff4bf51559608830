// Package sqlite opens a piecebook store backed by a single SQLite file.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/store/sqlstore"
)

// timeLayout is fixed width so text ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Dialect is the SQLite flavour of sqlstore. Writers are serialized by the
// single connection and BEGIN IMMEDIATE, so no row lock suffix is needed.
var Dialect = &sqlstore.Dialect{
	Name:              "sqlite",
	Schema:            schema,
	IsUniqueViolation: isUniqueViolation,
	DateValue: func(t time.Time) any {
		return t.Format(model.DateLayout)
	},
	TimeValue: func(t time.Time) any {
		return t.UTC().Format(timeLayout)
	},
}

// Open opens (creating if needed) the database at path and returns a store.
// Call Migrate before first use.
func Open(path string, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One connection: SQLite allows a single writer and in-memory databases
	// are per connection.
	db.SetMaxOpenConns(1)
	return sqlstore.New(db, Dialect, opts...), nil
}

func dsn(path string) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Set("_txlock", "immediate")
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + params.Encode()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    company_name TEXT NOT NULL,
    fiscal_year INTEGER NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
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
    is_auxiliary_required INTEGER NOT NULL DEFAULT 0,
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
    date TEXT NOT NULL,
    reference TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
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
    debit TEXT NOT NULL DEFAULT '0',
    credit TEXT NOT NULL DEFAULT '0',
    is_export_product INTEGER NOT NULL DEFAULT 0,
    is_deductible_charge INTEGER NOT NULL DEFAULT 0,
    is_non_deductible_charge INTEGER NOT NULL DEFAULT 0,
    is_fiscal_depreciation INTEGER NOT NULL DEFAULT 0,
    is_accounting_depreciation INTEGER NOT NULL DEFAULT 0,
    is_investment INTEGER NOT NULL DEFAULT 0,
    UNIQUE (piece_id, line_number)
)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    type TEXT NOT NULL,
    description TEXT NOT NULL,
    user_id TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    created_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_tenant ON activity_logs (tenant_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
    organization_id TEXT PRIMARY KEY,
    plan TEXT NOT NULL,
    status TEXT NOT NULL,
    max_transactions_per_month INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS usage_metrics (
    organization_id TEXT NOT NULL,
    metric TEXT NOT NULL,
    period TEXT NOT NULL,
    used INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (organization_id, metric, period)
)`,
}
