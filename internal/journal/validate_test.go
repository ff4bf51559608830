package journal

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/store/memory"
	"github.com/cleared-dev/piecebook/internal/store/storetest"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(n int, account, debit, credit string) LineInput {
	l := LineInput{LineNumber: n, AccountCode: account, Label: "line " + fmt.Sprint(n)}
	if debit != "" {
		l.Debit = dec(debit)
	}
	if credit != "" {
		l.Credit = dec(credit)
	}
	return l
}

func validProposal() Proposal {
	return Proposal{
		JournalID: "j1",
		Date:      date(2026, 1, 5),
		Lines: []LineInput{
			line(1, "611100", "1000", ""),
			line(2, "441100", "", "1000"),
		},
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Proposal)
		field  string
	}{
		{"valid", func(*Proposal) {}, ""},
		{"missing journal", func(p *Proposal) { p.JournalID = " " }, "journalId"},
		{"missing date", func(p *Proposal) { p.Date = time.Time{} }, "date"},
		{"single line", func(p *Proposal) { p.Lines = p.Lines[:1] }, "lines"},
		{"zero line number", func(p *Proposal) { p.Lines[1].LineNumber = 0 }, "lines[1].lineNumber"},
		{"duplicate line number", func(p *Proposal) { p.Lines[1].LineNumber = 1 }, "lines[1].lineNumber"},
		{"missing account", func(p *Proposal) { p.Lines[0].AccountCode = "" }, "lines[0].accountCode"},
		{"account too long", func(p *Proposal) { p.Lines[0].AccountCode = "123456789012345" }, "lines[0].accountCode"},
		{"missing label", func(p *Proposal) { p.Lines[1].Label = "  " }, "lines[1].label"},
		{"negative debit", func(p *Proposal) { p.Lines[0].Debit = dec("-1") }, "lines[0].debit"},
		{"negative credit", func(p *Proposal) { p.Lines[1].Credit = dec("-0.01") }, "lines[1].credit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProposal()
			tt.mutate(&p)
			err := ValidateRequest(p)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCheckBalance_Exact(t *testing.T) {
	r := CheckBalance([]LineInput{
		line(1, "611100", "333.33", ""),
		line(2, "611100", "666.67", ""),
		line(3, "441100", "", "1000"),
	}, DefaultBalanceTolerance)
	assert.True(t, r.Valid)
	assert.True(t, r.Difference.IsZero())
	assert.True(t, r.TotalDebit.Equal(dec("1000")))
	assert.True(t, r.TotalCredit.Equal(dec("1000")))
}

func TestCheckBalance_OneCentOff(t *testing.T) {
	r := CheckBalance([]LineInput{
		line(1, "611100", "100.01", ""),
		line(2, "441100", "", "100.00"),
	}, DefaultBalanceTolerance)
	assert.False(t, r.Valid)
	assert.True(t, r.Difference.Equal(dec("0.01")), r.Difference.String())
}

func TestCheckBalance_Tolerance(t *testing.T) {
	below := CheckBalance([]LineInput{line(1, "a", "100.0009", ""), line(2, "b", "", "100")}, DefaultBalanceTolerance)
	assert.True(t, below.Valid)

	at := CheckBalance([]LineInput{line(1, "a", "100.001", ""), line(2, "b", "", "100")}, DefaultBalanceTolerance)
	assert.False(t, at.Valid)
}

func TestCheckBalance_NoFloatDrift(t *testing.T) {
	lines := []LineInput{line(11, "441100", "", "0.3")}
	for i := range 3 {
		lines = append(lines, line(i+1, "611100", "0.1", ""))
	}
	r := CheckBalance(lines, decimal.New(1, -12))
	assert.True(t, r.Valid)
	assert.True(t, r.Difference.IsZero())
}

func TestValidateBalance_Error(t *testing.T) {
	err := ValidateBalance([]LineInput{line(1, "a", "500", ""), line(2, "b", "", "400")}, DefaultBalanceTolerance)
	var ue UnbalancedEntryError
	require.ErrorAs(t, err, &ue)
	assert.True(t, ue.Difference.Equal(dec("100")))
	assert.Equal(t, "transaction is not balanced: debit 500, credit 400, difference 100", err.Error())

	err = ValidateBalance([]LineInput{line(1, "a", "10.004", ""), line(2, "b", "", "10")}, DefaultBalanceTolerance)
	assert.ErrorContains(t, err, "difference 0.004")
}

func TestValidateLineAmount(t *testing.T) {
	a, err := ValidateLineAmount(line(1, "a", "50", ""))
	require.NoError(t, err)
	assert.Equal(t, model.SideDebit, a.Side())

	a, err = ValidateLineAmount(line(2, "a", "0", "20"))
	require.NoError(t, err)
	assert.Equal(t, model.SideCredit, a.Side())

	_, err = ValidateLineAmount(line(3, "a", "50", "20"))
	var le LineAmountError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 3, le.LineNumber)
	assert.ErrorIs(t, err, model.ErrAmountBothSides)

	_, err = ValidateLineAmount(line(4, "a", "0", "0"))
	assert.ErrorIs(t, err, model.ErrAmountNoSide)
}

func TestValidateLineAmounts_StopsAtFirstBadLine(t *testing.T) {
	_, err := ValidateLineAmounts([]LineInput{
		line(1, "a", "10", ""),
		line(2, "a", "", ""),
		line(3, "a", "5", "5"),
	})
	var le LineAmountError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 2, le.LineNumber)
}

func TestValidateAuxiliaryRequirement(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	f := storetest.Seed(t, st, "t1")

	acct, err := ValidateAuxiliaryRequirement(ctx, st, "t1", line(1, "611100", "1", ""))
	require.NoError(t, err)
	assert.Equal(t, f.Purchases.ID, acct.ID)

	_, err = ValidateAuxiliaryRequirement(ctx, st, "t1", line(2, "441100", "", "1"))
	var me MissingAuxiliaryError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "441100", me.AccountCode)

	withAux := line(2, "441100", "", "1")
	withAux.AuxiliaryID = f.Aux.ID
	_, err = ValidateAuxiliaryRequirement(ctx, st, "t1", withAux)
	assert.NoError(t, err)

	_, err = ValidateAuxiliaryRequirement(ctx, st, "t1", line(3, "999999", "1", ""))
	var ae AccountNotFoundError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "999999", ae.AccountCode)

	// Accounts of another tenant are invisible.
	_, err = ValidateAuxiliaryRequirement(ctx, st, "t2", line(1, "611100", "1", ""))
	assert.ErrorAs(t, err, &ae)
}

func TestValidateChronology(t *testing.T) {
	latest := &model.Piece{PieceNumber: "00001", Date: date(2026, 1, 5)}

	assert.NoError(t, ValidateChronology(date(2026, 1, 1), nil))
	assert.NoError(t, ValidateChronology(date(2026, 1, 5), latest))
	assert.NoError(t, ValidateChronology(date(2026, 1, 6), latest))

	err := ValidateChronology(date(2026, 1, 1), latest)
	var ce ChronologyViolationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "00001", ce.ConflictingNumber)
	assert.Contains(t, err.Error(), "00001")
}

func TestValidateUpdateChronology(t *testing.T) {
	pieces := []model.Piece{
		{PieceNumber: "00001", Date: date(2026, 1, 5)},
		{PieceNumber: "00002", Date: date(2026, 1, 10)},
		{PieceNumber: "00003", Date: date(2026, 1, 20)},
	}
	tests := []struct {
		name     string
		date     time.Time
		conflict string
	}{
		{"same date", date(2026, 1, 10), ""},
		{"between neighbours", date(2026, 1, 15), ""},
		{"equal to previous", date(2026, 1, 5), ""},
		{"equal to next", date(2026, 1, 20), ""},
		{"before previous", date(2026, 1, 3), "00001"},
		{"after next", date(2026, 1, 25), "00003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpdateChronology(tt.date, "00002", pieces)
			if tt.conflict == "" {
				assert.NoError(t, err)
				return
			}
			var ce ChronologyViolationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.conflict, ce.ConflictingNumber)
		})
	}
}

func TestValidateFiscalPeriod(t *testing.T) {
	tenant := &model.Tenant{FiscalYear: 2026, StartDate: date(2026, 1, 1), EndDate: date(2026, 12, 31)}
	assert.NoError(t, ValidateFiscalPeriod(tenant, date(2026, 1, 1)))
	assert.NoError(t, ValidateFiscalPeriod(tenant, date(2026, 12, 31)))

	err := ValidateFiscalPeriod(tenant, date(2025, 12, 31))
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "date", ve.Field)
	assert.Contains(t, ve.Message, "fiscal year 2026")
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ValidationError{Field: "date"}, KindValidation},
		{UnbalancedEntryError{}, KindUnbalancedEntry},
		{LineAmountError{Err: model.ErrAmountNoSide}, KindLineAmount},
		{AccountNotFoundError{}, KindAccountNotFound},
		{MissingAuxiliaryError{}, KindMissingAuxiliary},
		{ChronologyViolationError{}, KindChronology},
		{QuotaExceededError{}, KindQuotaExceeded},
		{UnauthorizedError{}, KindUnauthorized},
		{PersistenceConflictError{}, KindPersistenceConflict},
		{fmt.Errorf("piece x: %w", ErrPieceNotFound), KindPieceNotFound},
		{ErrJournalNotFound, KindJournalNotFound},
		{fmt.Errorf("import: %w", MissingAuxiliaryError{AccountCode: "441100"}), KindMissingAuxiliary},
		{errors.New("connection reset"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), "%v", tt.err)
	}
}
