package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/piecebook/internal/model"
)

var (
	// ErrPieceNotFound is returned when a piece does not exist in the caller's tenant.
	ErrPieceNotFound = errors.New("piece not found")
	// ErrJournalNotFound is returned when a journal does not exist in the caller's tenant.
	ErrJournalNotFound = errors.New("journal not found")
)

// Error kinds returned by Kind.
const (
	KindValidation          = "validation"
	KindUnbalancedEntry     = "unbalanced_entry"
	KindLineAmount          = "line_amount"
	KindAccountNotFound     = "account_not_found"
	KindMissingAuxiliary    = "missing_auxiliary"
	KindChronology          = "chronology_violation"
	KindQuotaExceeded       = "quota_exceeded"
	KindUnauthorized        = "unauthorized"
	KindPersistenceConflict = "persistence_conflict"
	KindPieceNotFound       = "piece_not_found"
	KindJournalNotFound     = "journal_not_found"
	KindInternal            = "internal"
)

// ValidationError reports a malformed proposal.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// UnbalancedEntryError reports total debits and credits that differ by at
// least the balance tolerance.
type UnbalancedEntryError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Difference  decimal.Decimal
}

func (e UnbalancedEntryError) Error() string {
	return fmt.Sprintf("transaction is not balanced: debit %s, credit %s, difference %s",
		e.TotalDebit.String(), e.TotalCredit.String(), e.Difference.String())
}

// LineAmountError reports a line with both or neither of debit and credit.
type LineAmountError struct {
	LineNumber int
	Err        error // model.ErrAmountBothSides or model.ErrAmountNoSide
}

func (e LineAmountError) Error() string {
	return fmt.Sprintf("line %d: %v", e.LineNumber, e.Err)
}

func (e LineAmountError) Unwrap() error { return e.Err }

// AccountNotFoundError reports a line whose account code is not in the tenant's chart.
type AccountNotFoundError struct {
	LineNumber  int
	AccountCode string
}

func (e AccountNotFoundError) Error() string {
	return fmt.Sprintf("line %d: account %s not found", e.LineNumber, e.AccountCode)
}

// MissingAuxiliaryError reports a line on an auxiliary-required account without an auxiliary.
type MissingAuxiliaryError struct {
	LineNumber  int
	AccountCode string
}

func (e MissingAuxiliaryError) Error() string {
	return fmt.Sprintf("line %d: account %s requires an auxiliary", e.LineNumber, e.AccountCode)
}

// ChronologyViolationError reports a date that would break the journal's date order.
type ChronologyViolationError struct {
	Date              time.Time
	ConflictingNumber string
	ConflictingDate   time.Time
}

func (e ChronologyViolationError) Error() string {
	return fmt.Sprintf("date %s cannot be before last entry (%s dated %s)",
		e.Date.Format(model.DateLayout), e.ConflictingNumber, e.ConflictingDate.Format(model.DateLayout))
}

// QuotaExceededError carries the quota gate's refusal verbatim.
type QuotaExceededError struct {
	Reason          string
	UpgradeRequired bool
}

func (e QuotaExceededError) Error() string {
	if e.Reason == "" {
		return "transaction limit reached"
	}
	return e.Reason
}

// UnauthorizedError reports a missing actor or tenant scope.
type UnauthorizedError struct {
	Reason string
}

func (e UnauthorizedError) Error() string {
	return "unauthorized: " + e.Reason
}

// PersistenceConflictError is returned when piece-number allocation kept
// colliding after every attempt.
type PersistenceConflictError struct {
	JournalID string
	Attempts  int
	Err       error
}

func (e PersistenceConflictError) Error() string {
	return fmt.Sprintf("piece number allocation for journal %s conflicted %d times: %v", e.JournalID, e.Attempts, e.Err)
}

func (e PersistenceConflictError) Unwrap() error { return e.Err }

// Kind returns a stable name for the error's category, KindInternal when it
// belongs to none.
func Kind(err error) string {
	var (
		validation ValidationError
		unbalanced UnbalancedEntryError
		lineAmount LineAmountError
		account    AccountNotFoundError
		missingAux MissingAuxiliaryError
		chrono     ChronologyViolationError
		quota      QuotaExceededError
		unauth     UnauthorizedError
		conflict   PersistenceConflictError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &unbalanced):
		return KindUnbalancedEntry
	case errors.As(err, &lineAmount):
		return KindLineAmount
	case errors.As(err, &account):
		return KindAccountNotFound
	case errors.As(err, &missingAux):
		return KindMissingAuxiliary
	case errors.As(err, &chrono):
		return KindChronology
	case errors.As(err, &quota):
		return KindQuotaExceeded
	case errors.As(err, &unauth):
		return KindUnauthorized
	case errors.As(err, &conflict):
		return KindPersistenceConflict
	case errors.Is(err, ErrPieceNotFound):
		return KindPieceNotFound
	case errors.Is(err, ErrJournalNotFound):
		return KindJournalNotFound
	}
	return KindInternal
}
