// Package sqlstore implements store.Store on database/sql. The sqlite and
// postgres packages supply the driver, schema and Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

const defaultTxTimeout = 30 * time.Second

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for rollback and migration messages.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTxTimeout bounds units of work whose context carries no deadline.
func WithTxTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.txTimeout = timeout
		}
	}
}

// Store is a store.Store over a *sql.DB.
type Store struct {
	queries
	db        *sql.DB
	logger    *zap.Logger
	txTimeout time.Duration
}

// New wraps an open database. The Store owns db and closes it on Close.
func New(db *sql.DB, dialect *Dialect, opts ...Option) *Store {
	s := &Store{
		queries:   queries{q: db, d: dialect},
		db:        db,
		logger:    zap.NewNop(),
		txTimeout: defaultTxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range s.d.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: migration step %d: %w", s.d.Name, i+1, err)
		}
	}
	s.logger.Debug("schema migrated", zap.String("dialect", s.d.Name), zap.Int("statements", len(s.d.Schema)))
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a database transaction. Without a caller deadline the
// transaction is bounded by the configured timeout; on timeout it rolls back.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w", s.d.Name, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", zap.String("dialect", s.d.Name), zap.Error(rbErr))
		}
	}()

	if err := fn(ctx, &tx{queries: queries{q: sqlTx, d: s.d}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%s: commit transaction: %w", s.d.Name, err)
	}
	committed = true
	return nil
}

// ==================== Setup ====================

func (s *Store) CreateTenant(ctx context.Context, t *model.Tenant) error {
	return s.insert(ctx, "INSERT INTO tenants ("+tenantColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.OrganizationID, t.CompanyName, t.FiscalYear, s.d.DateValue(t.StartDate), s.d.DateValue(t.EndDate), t.Currency)
}

func (s *Store) CreateJournal(ctx context.Context, j *model.Journal) error {
	return s.insert(ctx, "INSERT INTO journals ("+journalColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		j.ID, j.TenantID, j.Code, j.Label, string(j.Nature), j.PrincipalAccount)
}

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	return s.insert(ctx, "INSERT INTO accounts ("+accountColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.TenantID, a.Code, a.Label, a.Class, string(a.Type), a.IsAuxiliaryRequired)
}

func (s *Store) CreateAuxiliary(ctx context.Context, a *model.Auxiliary) error {
	return s.insert(ctx, "INSERT INTO auxiliaries ("+auxiliaryColumns+") VALUES (?, ?, ?, ?, ?)",
		a.ID, a.TenantID, a.Code, a.Label, string(a.Type))
}

func (s *Store) insert(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.d.rebind(query), args...)
	if err != nil && s.d.IsUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// ==================== Subscriptions ====================

func (s *Store) GetSubscription(ctx context.Context, organizationID string) (*model.Subscription, error) {
	var sub model.Subscription
	var plan, status string
	err := s.db.QueryRowContext(ctx, s.d.rebind(
		"SELECT organization_id, plan, status, max_transactions_per_month FROM subscriptions WHERE organization_id = ?"),
		organizationID).Scan(&sub.OrganizationID, &plan, &status, &sub.MaxTransactionsPerMonth)
	if err != nil {
		return nil, notFound(err)
	}
	sub.Plan = model.Plan(plan)
	sub.Status = model.SubscriptionStatus(status)
	return &sub, nil
}

func (s *Store) PutSubscription(ctx context.Context, sub *model.Subscription) error {
	_, err := s.db.ExecContext(ctx, s.d.rebind(`
INSERT INTO subscriptions (organization_id, plan, status, max_transactions_per_month)
VALUES (?, ?, ?, ?)
ON CONFLICT (organization_id) DO UPDATE SET
    plan = excluded.plan,
    status = excluded.status,
    max_transactions_per_month = excluded.max_transactions_per_month`),
		sub.OrganizationID, string(sub.Plan), string(sub.Status), sub.MaxTransactionsPerMonth)
	return err
}

func (s *Store) Usage(ctx context.Context, organizationID, metric, period string) (int64, error) {
	var used int64
	err := s.db.QueryRowContext(ctx, s.d.rebind(
		"SELECT used FROM usage_metrics WHERE organization_id = ? AND metric = ? AND period = ?"),
		organizationID, metric, period).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return used, err
}

func (s *Store) IncrementUsage(ctx context.Context, organizationID, metric, period string) error {
	_, err := s.db.ExecContext(ctx, s.d.rebind(`
INSERT INTO usage_metrics (organization_id, metric, period, used)
VALUES (?, ?, ?, 1)
ON CONFLICT (organization_id, metric, period) DO UPDATE SET used = usage_metrics.used + 1`),
		organizationID, metric, period)
	return err
}

// ==================== Activity ====================

func (s *Store) ListActivity(ctx context.Context, tenantID string) ([]model.ActivityLog, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(
		"SELECT "+activityColumns+" FROM activity_logs WHERE tenant_id = ? ORDER BY created_at, id"), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ActivityLog
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ==================== Tx ====================

type tx struct {
	queries
}

func (t *tx) LockJournal(ctx context.Context, tenantID, journalID string) (*model.Journal, error) {
	row := t.q.QueryRowContext(ctx, t.d.rebind(
		"SELECT "+journalColumns+" FROM journals WHERE tenant_id = ? AND id = ?"+t.d.LockSuffix), tenantID, journalID)
	j, err := scanJournal(row)
	if err != nil {
		return nil, notFound(err)
	}
	return j, nil
}

func (t *tx) InsertPiece(ctx context.Context, p *model.Piece) error {
	_, err := t.q.ExecContext(ctx, t.d.rebind("INSERT INTO pieces ("+pieceColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		p.ID, p.TenantID, p.JournalID, p.PieceNumber, t.d.DateValue(p.Date), nullString(p.Reference),
		t.d.TimeValue(p.CreatedAt), t.d.TimeValue(p.UpdatedAt))
	if err != nil && t.d.IsUniqueViolation(err) {
		return store.ErrDuplicatePieceNumber
	}
	return err
}

func (t *tx) UpdatePiece(ctx context.Context, p *model.Piece) error {
	res, err := t.q.ExecContext(ctx, t.d.rebind(
		"UPDATE pieces SET date = ?, reference = ?, updated_at = ? WHERE id = ? AND tenant_id = ?"),
		t.d.DateValue(p.Date), nullString(p.Reference), t.d.TimeValue(p.UpdatedAt), p.ID, p.TenantID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *tx) DeletePiece(ctx context.Context, tenantID, pieceID string) error {
	if _, err := t.q.ExecContext(ctx, t.d.rebind(
		"DELETE FROM transaction_lines WHERE piece_id = ? AND tenant_id = ?"), pieceID, tenantID); err != nil {
		return err
	}
	res, err := t.q.ExecContext(ctx, t.d.rebind("DELETE FROM pieces WHERE id = ? AND tenant_id = ?"), pieceID, tenantID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *tx) InsertLines(ctx context.Context, lines []model.Line) error {
	query := t.d.rebind("INSERT INTO transaction_lines (" + lineColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	for _, l := range lines {
		debit, credit := l.Amount.Columns()
		tags := l.FiscalTags
		if _, err := t.q.ExecContext(ctx, query,
			l.ID, l.PieceID, l.TenantID, l.LineNumber, l.AccountID, l.AccountCode,
			nullString(l.AuxiliaryID), nullString(l.CostCenterID), l.Label, debit, credit,
			tags.IsExportProduct, tags.IsDeductibleCharge, tags.IsNonDeductibleCharge,
			tags.IsFiscalDepreciation, tags.IsAccountingDepreciation, tags.IsInvestment); err != nil {
			return fmt.Errorf("inserting line %d: %w", l.LineNumber, err)
		}
	}
	return nil
}

func (t *tx) DeleteLines(ctx context.Context, tenantID, pieceID string) error {
	_, err := t.q.ExecContext(ctx, t.d.rebind(
		"DELETE FROM transaction_lines WHERE piece_id = ? AND tenant_id = ?"), pieceID, tenantID)
	return err
}

func (t *tx) AppendActivity(ctx context.Context, a *model.ActivityLog) error {
	_, err := t.q.ExecContext(ctx, t.d.rebind("INSERT INTO activity_logs ("+activityColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		a.ID, a.TenantID, string(a.Type), a.Description, a.ActorID, a.EntityType, a.EntityID, t.d.TimeValue(a.CreatedAt))
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
