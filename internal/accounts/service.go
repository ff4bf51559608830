// Package accounts manages a tenant's chart of accounts, journals and
// auxiliaries, and bootstraps new tenants with the defaults.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cleared-dev/piecebook/internal/id"
	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/quota"
	"github.com/cleared-dev/piecebook/internal/store"
)

// Service reads and seeds reference data through a store.
type Service struct {
	store  store.Store
	logger *zap.Logger
}

// NewService creates a Service over st.
func NewService(st store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, logger: logger}
}

// All returns the tenant's accounts ordered by code.
func (s *Service) All(ctx context.Context, tenantID string) ([]model.Account, error) {
	return s.store.ListAccounts(ctx, tenantID)
}

// Get returns an account by code.
func (s *Service) Get(ctx context.Context, tenantID, code string) (model.Account, bool, error) {
	a, err := s.store.GetAccountByCode(ctx, tenantID, code)
	if errors.Is(err, store.ErrNotFound) {
		return model.Account{}, false, nil
	}
	if err != nil {
		return model.Account{}, false, err
	}
	return *a, true, nil
}

// ByType returns the tenant's accounts of the given type.
func (s *Service) ByType(ctx context.Context, tenantID string, accountType model.AccountType) ([]model.Account, error) {
	all, err := s.store.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var result []model.Account
	for _, a := range all {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result, nil
}

// Journals returns the tenant's journals ordered by code.
func (s *Service) Journals(ctx context.Context, tenantID string) ([]model.Journal, error) {
	return s.store.ListJournals(ctx, tenantID)
}

// Auxiliaries returns the tenant's customers and suppliers ordered by code.
func (s *Service) Auxiliaries(ctx context.Context, tenantID string) ([]model.Auxiliary, error) {
	return s.store.ListAuxiliaries(ctx, tenantID)
}

// AuxiliaryByCode resolves an auxiliary code to the auxiliary.
func (s *Service) AuxiliaryByCode(ctx context.Context, tenantID, code string) (model.Auxiliary, bool, error) {
	all, err := s.store.ListAuxiliaries(ctx, tenantID)
	if err != nil {
		return model.Auxiliary{}, false, err
	}
	for _, a := range all {
		if a.Code == code {
			return a, true, nil
		}
	}
	return model.Auxiliary{}, false, nil
}

// ImportChart creates the given accounts for a tenant, skipping codes that
// already exist. It returns how many were created.
func (s *Service) ImportChart(ctx context.Context, tenantID string, accounts []model.Account) (int, error) {
	created := 0
	for _, a := range accounts {
		a.ID = id.New()
		a.TenantID = tenantID
		err := s.store.CreateAccount(ctx, &a)
		if errors.Is(err, store.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("creating account %s: %w", a.Code, err)
		}
		created++
	}
	return created, nil
}

// BootstrapParams describes a new tenant.
type BootstrapParams struct {
	TenantID       string // generated when empty
	OrganizationID string
	CompanyName    string
	FiscalYear     int
	Currency       string
	// Subscription is stored for OrganizationID when non-nil.
	Subscription *model.Subscription
}

// Bootstrap creates a tenant with the default chart, journals and
// auxiliaries. Rows that already exist are left untouched, so it can be rerun.
func (s *Service) Bootstrap(ctx context.Context, p BootstrapParams) (*model.Tenant, error) {
	if p.FiscalYear == 0 {
		p.FiscalYear = time.Now().Year()
	}
	if p.TenantID == "" {
		p.TenantID = id.New()
	}
	if p.Currency == "" {
		p.Currency = "DZD"
	}
	tenant := &model.Tenant{
		ID:             p.TenantID,
		OrganizationID: p.OrganizationID,
		CompanyName:    p.CompanyName,
		FiscalYear:     p.FiscalYear,
		StartDate:      time.Date(p.FiscalYear, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(p.FiscalYear, time.December, 31, 0, 0, 0, 0, time.UTC),
		Currency:       p.Currency,
	}
	if err := skipExisting(s.store.CreateTenant(ctx, tenant)); err != nil {
		return nil, fmt.Errorf("creating tenant: %w", err)
	}

	accounts, err := s.ImportChart(ctx, tenant.ID, DefaultChart())
	if err != nil {
		return nil, err
	}
	for _, j := range DefaultJournals() {
		j.ID = id.New()
		j.TenantID = tenant.ID
		if err := skipExisting(s.store.CreateJournal(ctx, &j)); err != nil {
			return nil, fmt.Errorf("creating journal %s: %w", j.Code, err)
		}
	}
	for _, a := range DefaultAuxiliaries() {
		a.ID = id.New()
		a.TenantID = tenant.ID
		if err := skipExisting(s.store.CreateAuxiliary(ctx, &a)); err != nil {
			return nil, fmt.Errorf("creating auxiliary %s: %w", a.Code, err)
		}
	}

	if sub := p.Subscription; sub != nil && p.OrganizationID != "" {
		sub.OrganizationID = p.OrganizationID
		if sub.MaxTransactionsPerMonth <= 0 {
			sub.MaxTransactionsPerMonth = quota.PlanLimit(sub.Plan)
		}
		if err := s.store.PutSubscription(ctx, sub); err != nil {
			return nil, fmt.Errorf("storing subscription: %w", err)
		}
	}

	s.logger.Info("tenant bootstrapped",
		zap.String("tenant", tenant.ID),
		zap.Int("fiscal_year", tenant.FiscalYear),
		zap.Int("accounts_created", accounts))
	return tenant, nil
}

func skipExisting(err error) error {
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil
	}
	return err
}
