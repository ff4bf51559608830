package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/piecebook/internal/id"
	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/store"
)

// DefaultBalanceTolerance is the largest debit/credit difference still
// treated as balanced, exclusive.
var DefaultBalanceTolerance = decimal.New(1, -3)

const maxAccountCodeLen = 14

// LineInput is one proposed transaction line.
type LineInput struct {
	LineNumber   int
	AccountCode  string
	AuxiliaryID  string
	CostCenterID string
	Label        string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	FiscalTags   model.FiscalTags
}

// Proposal is a proposed piece: a header and its complete line set.
type Proposal struct {
	JournalID string
	Date      time.Time
	Reference string
	Lines     []LineInput
}

// ValidateRequest checks the shape of a proposal. It has no side effects.
func ValidateRequest(p Proposal) error {
	if strings.TrimSpace(p.JournalID) == "" {
		return ValidationError{Field: "journalId", Message: "is required"}
	}
	if p.Date.IsZero() {
		return ValidationError{Field: "date", Message: "is required"}
	}
	if len(p.Lines) < 2 {
		return ValidationError{Field: "lines", Message: fmt.Sprintf("at least 2 lines are required, got %d", len(p.Lines))}
	}

	seen := make(map[int]bool, len(p.Lines))
	for i, l := range p.Lines {
		field := func(name string) string { return fmt.Sprintf("lines[%d].%s", i, name) }
		switch {
		case l.LineNumber <= 0:
			return ValidationError{Field: field("lineNumber"), Message: "must be positive"}
		case seen[l.LineNumber]:
			return ValidationError{Field: field("lineNumber"), Message: fmt.Sprintf("duplicate line number %d", l.LineNumber)}
		case strings.TrimSpace(l.AccountCode) == "":
			return ValidationError{Field: field("accountCode"), Message: "is required"}
		case len(l.AccountCode) > maxAccountCodeLen:
			return ValidationError{Field: field("accountCode"), Message: fmt.Sprintf("must be at most %d characters", maxAccountCodeLen)}
		case strings.TrimSpace(l.Label) == "":
			return ValidationError{Field: field("label"), Message: "is required"}
		case l.Debit.IsNegative():
			return ValidationError{Field: field("debit"), Message: "must not be negative"}
		case l.Credit.IsNegative():
			return ValidationError{Field: field("credit"), Message: "must not be negative"}
		}
		seen[l.LineNumber] = true
	}
	return nil
}

// BalanceResult holds the exact totals of a line set.
type BalanceResult struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Difference  decimal.Decimal // absolute
	Valid       bool
}

// CheckBalance sums debits and credits exactly. The set is valid when the
// difference is strictly below tolerance.
func CheckBalance(lines []LineInput, tolerance decimal.Decimal) BalanceResult {
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, l := range lines {
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
	}
	diff := totalDebit.Sub(totalCredit).Abs()
	return BalanceResult{
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		Difference:  diff,
		Valid:       diff.LessThan(tolerance),
	}
}

// ValidateBalance returns an UnbalancedEntryError when CheckBalance fails.
func ValidateBalance(lines []LineInput, tolerance decimal.Decimal) error {
	r := CheckBalance(lines, tolerance)
	if r.Valid {
		return nil
	}
	return UnbalancedEntryError{TotalDebit: r.TotalDebit, TotalCredit: r.TotalCredit, Difference: r.Difference}
}

// ValidateLineAmount converts one line's debit/credit pair to a tagged Amount.
func ValidateLineAmount(l LineInput) (model.Amount, error) {
	amount, err := model.AmountFromColumns(l.Debit, l.Credit)
	if err != nil {
		return model.Amount{}, LineAmountError{LineNumber: l.LineNumber, Err: err}
	}
	return amount, nil
}

// ValidateLineAmounts checks every line and returns their amounts in order.
func ValidateLineAmounts(lines []LineInput) ([]model.Amount, error) {
	amounts := make([]model.Amount, len(lines))
	for i, l := range lines {
		a, err := ValidateLineAmount(l)
		if err != nil {
			return nil, err
		}
		amounts[i] = a
	}
	return amounts, nil
}

// AccountLookup resolves accounts by code within a tenant. store.Reader satisfies it.
type AccountLookup interface {
	GetAccountByCode(ctx context.Context, tenantID, code string) (*model.Account, error)
}

// ValidateAuxiliaryRequirement resolves the line's account and checks that
// auxiliary-required accounts carry an auxiliary.
func ValidateAuxiliaryRequirement(ctx context.Context, accounts AccountLookup, tenantID string, l LineInput) (*model.Account, error) {
	acct, err := accounts.GetAccountByCode(ctx, tenantID, l.AccountCode)
	if errors.Is(err, store.ErrNotFound) {
		return nil, AccountNotFoundError{LineNumber: l.LineNumber, AccountCode: l.AccountCode}
	}
	if err != nil {
		return nil, fmt.Errorf("looking up account %s: %w", l.AccountCode, err)
	}
	if acct.IsAuxiliaryRequired && strings.TrimSpace(l.AuxiliaryID) == "" {
		return nil, MissingAuxiliaryError{LineNumber: l.LineNumber, AccountCode: acct.Code}
	}
	return acct, nil
}

// ValidateChronology rejects a date strictly earlier than the journal's
// latest piece. latest is nil for an empty journal.
func ValidateChronology(date time.Time, latest *model.Piece) error {
	if latest == nil {
		return nil
	}
	if model.TruncateDate(date).Before(model.TruncateDate(latest.Date)) {
		return ChronologyViolationError{Date: date, ConflictingNumber: latest.PieceNumber, ConflictingDate: latest.Date}
	}
	return nil
}

// ValidateUpdateChronology checks that moving piece pieceNumber to date keeps
// the journal ordered: no lower-numbered piece is dated after it and no
// higher-numbered piece is dated before it. pieces may include the piece itself.
func ValidateUpdateChronology(date time.Time, pieceNumber string, pieces []model.Piece) error {
	self, err := id.ParsePieceNumber(pieceNumber)
	if err != nil {
		return err
	}
	date = model.TruncateDate(date)
	for _, p := range pieces {
		seq, err := id.ParsePieceNumber(p.PieceNumber)
		if err != nil || seq == self {
			continue
		}
		pd := model.TruncateDate(p.Date)
		if (seq < self && date.Before(pd)) || (seq > self && date.After(pd)) {
			return ChronologyViolationError{Date: date, ConflictingNumber: p.PieceNumber, ConflictingDate: p.Date}
		}
	}
	return nil
}

// ValidateFiscalPeriod rejects dates outside the tenant's fiscal year.
func ValidateFiscalPeriod(tenant *model.Tenant, date time.Time) error {
	if tenant.InFiscalYear(date) {
		return nil
	}
	return ValidationError{
		Field: "date",
		Message: fmt.Sprintf("%s is outside fiscal year %d (%s to %s)", date.Format(model.DateLayout), tenant.FiscalYear,
			tenant.StartDate.Format(model.DateLayout), tenant.EndDate.Format(model.DateLayout)),
	}
}
