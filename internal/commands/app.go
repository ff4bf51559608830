package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cleared-dev/piecebook/internal/accounts"
	"github.com/cleared-dev/piecebook/internal/config"
	"github.com/cleared-dev/piecebook/internal/journal"
	"github.com/cleared-dev/piecebook/internal/logging"
	"github.com/cleared-dev/piecebook/internal/metrics"
	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/quota"
	"github.com/cleared-dev/piecebook/internal/store"
	"github.com/cleared-dev/piecebook/internal/store/memory"
	"github.com/cleared-dev/piecebook/internal/store/postgres"
	"github.com/cleared-dev/piecebook/internal/store/sqlite"
	"github.com/cleared-dev/piecebook/internal/store/sqlstore"
)

// app holds everything a subcommand needs, built from one config file.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    store.Store
	metrics  *metrics.Pipeline
	journals *journal.Service
	accounts *accounts.Service
}

// openApp loads the config at path and wires the store and services.
// Relative sqlite paths resolve against the config file's directory.
func openApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg, filepath.Dir(path), logger)
	if err != nil {
		return nil, err
	}

	a, err := newApp(cfg, logger, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if cfg.Database.Driver == config.DriverMemory {
		// Nothing survives the process, so every run starts from a fresh bootstrap.
		if _, err := a.bootstrap(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	return a, nil
}

func newApp(cfg *config.Config, logger *zap.Logger, st store.Store) (*app, error) {
	tol, err := cfg.Tolerance()
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	opts := []journal.Option{
		journal.WithLogger(logger),
		journal.WithMetrics(m),
		journal.WithBalanceTolerance(tol),
		journal.WithSequenceWidth(cfg.Posting.SequenceWidth),
		journal.WithAllocationAttempts(cfg.Posting.AllocationAttempts),
		journal.WithRetryInterval(cfg.Posting.RetryInitialInterval),
	}
	if cfg.Quota.Enabled {
		opts = append(opts, journal.WithGate(quota.NewPlanGate(st, quota.WithLogger(logger))))
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		metrics:  m,
		journals: journal.NewService(st, opts...),
		accounts: accounts.NewService(st, logger),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, baseDir string, logger *zap.Logger) (store.Store, error) {
	db := cfg.Database
	opts := []sqlstore.Option{sqlstore.WithLogger(logger)}
	if db.TxTimeout > 0 {
		opts = append(opts, sqlstore.WithTxTimeout(db.TxTimeout))
	}

	var (
		st  store.Store
		err error
	)
	switch db.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		path := db.DSN
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		st, err = sqlite.Open(path, opts...)
	case config.DriverPostgres:
		st, err = postgres.Open(ctx, postgres.Config{DSN: db.DSN, MaxOpenConns: db.MaxOpenConns}, opts...)
	default:
		return nil, fmt.Errorf("unknown database driver %q", db.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", db.Driver, err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrating %s store: %w", db.Driver, err)
	}
	return st, nil
}

// bootstrap creates the configured tenant with the default reference data.
func (a *app) bootstrap(ctx context.Context) (*model.Tenant, error) {
	t := a.cfg.Tenant
	params := accounts.BootstrapParams{
		TenantID:       t.ID,
		OrganizationID: t.OrganizationID,
		CompanyName:    t.CompanyName,
		FiscalYear:     t.FiscalYear,
		Currency:       t.Currency,
	}
	if a.cfg.Quota.Enabled {
		params.Subscription = &model.Subscription{
			Plan:   model.Plan(a.cfg.Quota.Plan),
			Status: model.SubscriptionStatus(a.cfg.Quota.Status),
		}
	}
	return a.accounts.Bootstrap(ctx, params)
}

func (a *app) actor(actorID string) model.Actor {
	return model.Actor{
		ActorID:        actorID,
		TenantID:       a.cfg.Tenant.ID,
		OrganizationID: a.cfg.Tenant.OrganizationID,
	}
}

func (a *app) Close() error {
	defer func() { _ = a.logger.Sync() }()
	return a.store.Close()
}
