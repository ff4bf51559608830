package model

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Side is the ledger column an amount is posted to.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

var (
	// ErrAmountBothSides is returned when both the debit and credit columns are positive.
	ErrAmountBothSides = errors.New("a line cannot have both debit and credit amounts")
	// ErrAmountNoSide is returned when neither column is positive.
	ErrAmountNoSide = errors.New("a line must have either a positive debit or credit amount")
)

// Amount is a strictly positive value posted to exactly one side.
// The zero Amount is unset and is never persisted.
type Amount struct {
	side  Side
	value decimal.Decimal
}

// Debit returns a debit amount. v must be strictly positive.
func Debit(v decimal.Decimal) (Amount, error) {
	if !v.IsPositive() {
		return Amount{}, ErrAmountNoSide
	}
	return Amount{side: SideDebit, value: v}, nil
}

// Credit returns a credit amount. v must be strictly positive.
func Credit(v decimal.Decimal) (Amount, error) {
	if !v.IsPositive() {
		return Amount{}, ErrAmountNoSide
	}
	return Amount{side: SideCredit, value: v}, nil
}

// AmountFromColumns builds an Amount from the flat debit/credit storage columns.
func AmountFromColumns(debit, credit decimal.Decimal) (Amount, error) {
	hasDebit := debit.IsPositive()
	hasCredit := credit.IsPositive()
	switch {
	case hasDebit && hasCredit:
		return Amount{}, ErrAmountBothSides
	case hasDebit:
		return Debit(debit)
	case hasCredit:
		return Credit(credit)
	default:
		return Amount{}, ErrAmountNoSide
	}
}

// Side returns the column the amount is posted to.
func (a Amount) Side() Side { return a.side }

// Value returns the positive amount.
func (a Amount) Value() decimal.Decimal { return a.value }

// Columns flattens the amount back to (debit, credit) with the unused side at zero.
func (a Amount) Columns() (debit, credit decimal.Decimal) {
	switch a.side {
	case SideDebit:
		return a.value, decimal.Zero
	case SideCredit:
		return decimal.Zero, a.value
	}
	return decimal.Zero, decimal.Zero
}

// FiscalTags are classification flags consumed by tax reporting. They are stored as-is.
type FiscalTags struct {
	IsExportProduct          bool `json:"isExportProduct" yaml:"is_export_product"`
	IsDeductibleCharge       bool `json:"isDeductibleCharge" yaml:"is_deductible_charge"`
	IsNonDeductibleCharge    bool `json:"isNonDeductibleCharge" yaml:"is_non_deductible_charge"`
	IsFiscalDepreciation     bool `json:"isFiscalDepreciation" yaml:"is_fiscal_depreciation"`
	IsAccountingDepreciation bool `json:"isAccountingDepreciation" yaml:"is_accounting_depreciation"`
	IsInvestment             bool `json:"isInvestment" yaml:"is_investment"`
}

// Line is one transaction line of a piece.
type Line struct {
	ID           string
	PieceID      string
	TenantID     string
	LineNumber   int
	AccountID    string
	AccountCode  string
	AuxiliaryID  string // empty when none
	CostCenterID string // empty when none
	Label        string
	Amount       Amount
	FiscalTags   FiscalTags
}
