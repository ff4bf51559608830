// Package importer turns bank statement CSVs into proposals for a bank journal.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/piecebook/internal/journal"
	"github.com/cleared-dev/piecebook/internal/model"
)

// Transaction is one statement row. A positive amount is money received.
type Transaction struct {
	Date      time.Time
	Label     string
	Amount    decimal.Decimal
	Reference string
}

// Parser converts a statement CSV into Transactions.
type Parser interface {
	Parse(r io.Reader) ([]Transaction, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Standard)
	r.Register(Chase)
	return r
}

// ColumnParser reads statements whose layout is fixed by column positions.
type ColumnParser struct {
	Name       string
	DateLayout string
	NumFields  int
	DateCol    int
	LabelCol   int
	AmountCol  int
	// RefPrefix starts generated references, e.g. "bnq".
	RefPrefix string
}

// Standard is "date,label,amount" with ISO dates.
var Standard = &ColumnParser{
	Name: "standard", DateLayout: model.DateLayout, NumFields: 3,
	DateCol: 0, LabelCol: 1, AmountCol: 2, RefPrefix: "bnq",
}

// Chase is the seven-column Chase checking export.
var Chase = &ColumnParser{
	Name: "chase", DateLayout: "01/02/2006", NumFields: 7,
	DateCol: 1, LabelCol: 2, AmountCol: 3, RefPrefix: "chase",
}

// Format returns the parser name.
func (p *ColumnParser) Format() string { return p.Name }

// Parse reads the CSV, skipping the header row.
func (p *ColumnParser) Parse(r io.Reader) ([]Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = p.NumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s CSV: %w", p.Name, err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var txns []Transaction
	for i, rec := range records[1:] {
		txn, err := p.parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func (p *ColumnParser) parseRow(rec []string) (Transaction, error) {
	date, err := time.Parse(p.DateLayout, strings.TrimSpace(rec[p.DateCol]))
	if err != nil {
		return Transaction{}, fmt.Errorf("parsing date %q: %w", rec[p.DateCol], err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(rec[p.AmountCol]))
	if err != nil {
		return Transaction{}, fmt.Errorf("parsing amount %q: %w", rec[p.AmountCol], err)
	}
	if amount.IsZero() {
		return Transaction{}, fmt.Errorf("amount is zero")
	}
	label := strings.TrimSpace(rec[p.LabelCol])
	return Transaction{
		Date:      date,
		Label:     label,
		Amount:    amount,
		Reference: makeRef(p.RefPrefix, date, label),
	}, nil
}

// makeRef creates a reference like bnq_20260103_SONELGAZ.
func makeRef(prefix string, date time.Time, label string) string {
	word := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, label)
	if len(word) > 10 {
		word = word[:10]
	}
	return fmt.Sprintf("%s_%s_%s", prefix, date.Format("20060102"), word)
}

// Posting says where statement lines go.
type Posting struct {
	JournalCode        string // bank journal, e.g. "BNQ"
	BankAccount        string // e.g. "512000"
	CounterpartAccount string // e.g. "581000" (transfers) or a suspense account
	CounterpartAux     string // auxiliary id, when the counterpart requires one
}

// Pieces turns transactions into two-line pieces in date order. Money received
// debits the bank account; money paid credits it.
func Pieces(txns []Transaction, post Posting) []journal.ImportedPiece {
	sorted := make([]Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	out := make([]journal.ImportedPiece, 0, len(sorted))
	for _, t := range sorted {
		value := t.Amount.Abs()
		bank := journal.LineInput{LineNumber: 1, AccountCode: post.BankAccount, Label: t.Label}
		other := journal.LineInput{LineNumber: 2, AccountCode: post.CounterpartAccount,
			AuxiliaryID: post.CounterpartAux, Label: t.Label}
		if t.Amount.IsPositive() {
			bank.Debit, other.Credit = value, value
		} else {
			bank.Credit, other.Debit = value, value
		}
		out = append(out, journal.ImportedPiece{
			JournalCode: post.JournalCode,
			Key:         t.Reference,
			Proposal: journal.Proposal{
				Date:      t.Date,
				Reference: t.Reference,
				Lines:     []journal.LineInput{bank, other},
			},
		})
	}
	return out
}
