// Package storetest is a conformance suite run against every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/store"
)

// Fixture is the reference data Seed creates.
type Fixture struct {
	Tenant    model.Tenant
	Journal   model.Journal
	Purchases model.Account // 611100, no auxiliary
	Supplier  model.Account // 441100, auxiliary required
	Aux       model.Auxiliary
}

// Seed creates a tenant with one journal, two accounts and a supplier.
func Seed(t *testing.T, s store.Store, tenantID string) Fixture {
	t.Helper()
	ctx := context.Background()

	f := Fixture{
		Tenant: model.Tenant{
			ID: tenantID, OrganizationID: "org-" + tenantID, CompanyName: "Atlas SARL",
			FiscalYear: 2026,
			StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:    time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
			Currency:   "MAD",
		},
		Journal: model.Journal{ID: tenantID + "-ach", TenantID: tenantID, Code: "ACH", Label: "Achats", Nature: model.JournalNaturePurchase, PrincipalAccount: "441100"},
		Purchases: model.Account{ID: tenantID + "-611100", TenantID: tenantID, Code: "611100", Label: "Achats de marchandises",
			Class: 6, Type: model.AccountTypeExpense},
		Supplier: model.Account{ID: tenantID + "-441100", TenantID: tenantID, Code: "441100", Label: "Fournisseurs",
			Class: 4, Type: model.AccountTypeLiability, IsAuxiliaryRequired: true},
		Aux: model.Auxiliary{ID: tenantID + "-f001", TenantID: tenantID, Code: "F001", Label: "Fournisseur Atlas", Type: model.AuxiliaryTypeSupplier},
	}
	require.NoError(t, s.CreateTenant(ctx, &f.Tenant))
	require.NoError(t, s.CreateJournal(ctx, &f.Journal))
	require.NoError(t, s.CreateAccount(ctx, &f.Purchases))
	require.NoError(t, s.CreateAccount(ctx, &f.Supplier))
	require.NoError(t, s.CreateAuxiliary(ctx, &f.Aux))
	return f
}

// Run exercises open() against the store contract. open must return an
// empty, migrated store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("SetupLookups", func(t *testing.T) { testSetupLookups(t, open(t)) })
	t.Run("DuplicateSetup", func(t *testing.T) { testDuplicateSetup(t, open(t)) })
	t.Run("PieceRoundTrip", func(t *testing.T) { testPieceRoundTrip(t, open(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("DuplicatePieceNumber", func(t *testing.T) { testDuplicatePieceNumber(t, open(t)) })
	t.Run("Ordering", func(t *testing.T) { testOrdering(t, open(t)) })
	t.Run("UpdateAndDelete", func(t *testing.T) { testUpdateAndDelete(t, open(t)) })
	t.Run("TenantIsolation", func(t *testing.T) { testTenantIsolation(t, open(t)) })
	t.Run("Subscriptions", func(t *testing.T) { testSubscriptions(t, open(t)) })
}

func piece(f Fixture, id, number string, date time.Time) *model.Piece {
	now := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	return &model.Piece{
		ID: id, TenantID: f.Tenant.ID, JournalID: f.Journal.ID, PieceNumber: number,
		Date: date, Reference: "FA-" + number, CreatedAt: now, UpdatedAt: now,
	}
}

func lines(t *testing.T, f Fixture, pieceID, amount string) []model.Line {
	t.Helper()
	v := decimal.RequireFromString(amount)
	debit, err := model.Debit(v)
	require.NoError(t, err)
	credit, err := model.Credit(v)
	require.NoError(t, err)
	return []model.Line{
		{ID: pieceID + "-1", PieceID: pieceID, TenantID: f.Tenant.ID, LineNumber: 1, AccountID: f.Purchases.ID,
			AccountCode: f.Purchases.Code, Label: "Marchandises", Amount: debit,
			FiscalTags: model.FiscalTags{IsDeductibleCharge: true}},
		{ID: pieceID + "-2", PieceID: pieceID, TenantID: f.Tenant.ID, LineNumber: 2, AccountID: f.Supplier.ID,
			AccountCode: f.Supplier.Code, AuxiliaryID: f.Aux.ID, Label: "Fournisseur", Amount: credit},
	}
}

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func post(t *testing.T, s store.Store, p *model.Piece, ls []model.Line) {
	t.Helper()
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.LockJournal(ctx, p.TenantID, p.JournalID); err != nil {
			return err
		}
		if err := tx.InsertPiece(ctx, p); err != nil {
			return err
		}
		return tx.InsertLines(ctx, ls)
	})
	require.NoError(t, err)
}

func testSetupLookups(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s, "t1")

	tenant, err := s.GetTenant(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, f.Tenant.CompanyName, tenant.CompanyName)
	assert.True(t, tenant.StartDate.Equal(f.Tenant.StartDate))
	assert.True(t, tenant.EndDate.Equal(f.Tenant.EndDate))

	j, err := s.GetJournalByCode(ctx, "t1", "ACH")
	require.NoError(t, err)
	assert.Equal(t, f.Journal, *j)

	acct, err := s.GetAccountByCode(ctx, "t1", "441100")
	require.NoError(t, err)
	assert.True(t, acct.IsAuxiliaryRequired)
	assert.Equal(t, model.AccountTypeLiability, acct.Type)

	accts, err := s.ListAccounts(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, accts, 2)
	assert.Equal(t, "441100", accts[0].Code)
	assert.Equal(t, "611100", accts[1].Code)

	aux, err := s.GetAuxiliary(ctx, "t1", f.Aux.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuxiliaryTypeSupplier, aux.Type)

	auxes, err := s.ListAuxiliaries(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, auxes, 1)
	assert.Equal(t, f.Aux, auxes[0])

	auxes, err = s.ListAuxiliaries(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, auxes)

	_, err = s.GetAccountByCode(ctx, "t1", "999999")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Ping(ctx))
}

func testDuplicateSetup(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s, "t1")

	dup := f.Journal
	dup.ID = "another-id"
	assert.ErrorIs(t, s.CreateJournal(ctx, &dup), store.ErrAlreadyExists)

	acct := f.Purchases
	acct.ID = "another-account"
	assert.ErrorIs(t, s.CreateAccount(ctx, &acct), store.ErrAlreadyExists)
}

func testPieceRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s, "t1")

	p := piece(f, "p1", "00001", day(5))
	post(t, s, p, lines(t, f, "p1", "1000.125"))

	got, err := s.GetPiece(ctx, "t1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "00001", got.PieceNumber)
	assert.Equal(t, "2026-01-05", got.DateString())
	assert.Equal(t, "FA-00001", got.Reference)
	assert.True(t, got.CreatedAt.Equal(p.CreatedAt))

	ls, err := s.ListLines(ctx, "t1", "p1")
	require.NoError(t, err)
	require.Len(t, ls, 2)
	assert.Equal(t, model.SideDebit, ls[0].Amount.Side())
	assert.True(t, ls[0].Amount.Value().Equal(decimal.RequireFromString("1000.125")))
	assert.True(t, ls[0].FiscalTags.IsDeductibleCharge)
	assert.Equal(t, model.SideCredit, ls[1].Amount.Side())
	assert.Equal(t, f.Aux.ID, ls[1].AuxiliaryID)
	assert.Empty(t, ls[0].AuxiliaryID)

	maxSeq, err := s.MaxPieceNumber(ctx, "t1", f.Journal.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, maxSeq)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s, "t1")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertPiece(ctx, piece(f, "p1", "00001", day(5))); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, lines(t, f, "p1", "10")); err != nil {
			return err
		}
		if err := tx.AppendActivity(ctx, &model.ActivityLog{
			ID: "a1", TenantID: "t1", Type: model.ActivityPieceCreated, Description: "Created piece 00001",
			ActorID: "u1", EntityType: model.EntityPiece, EntityID: "p1", CreatedAt: day(5),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetPiece(ctx, "t1", "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	maxSeq, err := s.MaxPieceNumber(ctx, "t1", f.Journal.ID)
	require.NoError(t, err)
	assert.Zero(t, maxSeq)
	activity, err := s.ListActivity(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, activity)
}

func testDuplicatePieceNumber(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s, "t1")
	post(t, s, piece(f, "p1", "00001", day(5)), lines(t, f, "p1", "10"))

	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertPiece(ctx, piece(f, "p2", "00001", day(6)))
	})
	assert.ErrorIs(t, err, store.ErrDuplicatePieceNumber)
}

func testOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s, "t1")

	_, err := s.LatestPiece(ctx, "t1", f.Journal.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	post(t, s, piece(f, "p1", "00001", day(5)), lines(t, f, "p1", "10"))
	post(t, s, piece(f, "p2", "00002", day(9)), lines(t, f, "p2", "10"))
	post(t, s, piece(f, "p10", "00010", day(9)), lines(t, f, "p10", "10"))

	latest, err := s.LatestPiece(ctx, "t1", f.Journal.ID)
	require.NoError(t, err)
	assert.Equal(t, "00010", latest.PieceNumber)

	pieces, err := s.ListPieces(ctx, "t1", f.Journal.ID)
	require.NoError(t, err)
	require.Len(t, pieces, 3)
	assert.Equal(t, []string{"00001", "00002", "00010"},
		[]string{pieces[0].PieceNumber, pieces[1].PieceNumber, pieces[2].PieceNumber})

	maxSeq, err := s.MaxPieceNumber(ctx, "t1", f.Journal.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, maxSeq)
}

func testUpdateAndDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s, "t1")
	post(t, s, piece(f, "p1", "00001", day(5)), lines(t, f, "p1", "10"))

	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p := piece(f, "p1", "00001", day(7))
		p.Reference = "FA-2026-7"
		if err := tx.UpdatePiece(ctx, p); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, "t1", "p1"); err != nil {
			return err
		}
		return tx.InsertLines(ctx, lines(t, f, "p1", "25.50"))
	})
	require.NoError(t, err)

	got, err := s.GetPiece(ctx, "t1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-07", got.DateString())
	assert.Equal(t, "FA-2026-7", got.Reference)
	ls, err := s.ListLines(ctx, "t1", "p1")
	require.NoError(t, err)
	require.Len(t, ls, 2)
	assert.True(t, ls[1].Amount.Value().Equal(decimal.RequireFromString("25.5")))

	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.DeletePiece(ctx, "t1", "p1")
	})
	require.NoError(t, err)
	_, err = s.GetPiece(ctx, "t1", "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.ListLines(ctx, "t1", "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.DeletePiece(ctx, "t1", "p1")
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testTenantIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := Seed(t, s, "ta")
	b := Seed(t, s, "tb")
	post(t, s, piece(a, "pa", "00001", day(5)), lines(t, a, "pa", "10"))

	_, err := s.GetPiece(ctx, "tb", "pa")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetJournal(ctx, "tb", a.Journal.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetAuxiliary(ctx, "tb", a.Aux.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.LockJournal(ctx, "tb", a.Journal.ID)
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	maxSeq, err := s.MaxPieceNumber(ctx, "tb", b.Journal.ID)
	require.NoError(t, err)
	assert.Zero(t, maxSeq)
}

func testSubscriptions(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetSubscription(ctx, "org-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	sub := &model.Subscription{OrganizationID: "org-1", Plan: model.PlanStarter, Status: model.SubscriptionTrial, MaxTransactionsPerMonth: 200}
	require.NoError(t, s.PutSubscription(ctx, sub))
	sub.Status = model.SubscriptionActive
	require.NoError(t, s.PutSubscription(ctx, sub))

	got, err := s.GetSubscription(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, *sub, *got)

	used, err := s.Usage(ctx, "org-1", "TRANSACTION", "2026-01")
	require.NoError(t, err)
	assert.Zero(t, used)

	for range 3 {
		require.NoError(t, s.IncrementUsage(ctx, "org-1", "TRANSACTION", "2026-01"))
	}
	require.NoError(t, s.IncrementUsage(ctx, "org-1", "TRANSACTION", "2026-02"))

	used, err = s.Usage(ctx, "org-1", "TRANSACTION", "2026-01")
	require.NoError(t, err)
	assert.Equal(t, int64(3), used)
}
