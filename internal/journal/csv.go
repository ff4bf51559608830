package journal

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/store"
)

// Header is the CSV header of a piece export. There is one row per line.
const Header = "journal,piece_number,date,reference,line_number,account_code,auxiliary_id,cost_center_id,label,debit,credit,fiscal_tags"

const (
	numFields     = 12
	colJournal    = 0
	colPiece      = 1
	colDate       = 2
	colReference  = 3
	colLineNumber = 4
	colAccount    = 5
	colAuxiliary  = 6
	colCostCenter = 7
	colLabel      = 8
	colDebit      = 9
	colCredit     = 10
	colFiscalTags = 11
)

// Fiscal tag names used in the fiscal_tags column, separated by ";".
const (
	TagExport                 = "export"
	TagDeductible             = "deductible"
	TagNonDeductible          = "non_deductible"
	TagFiscalDepreciation     = "fiscal_depreciation"
	TagAccountingDepreciation = "accounting_depreciation"
	TagInvestment             = "investment"
)

// ImportedPiece is one piece read from CSV. Key groups the rows of a piece
// (the exported piece number); the store allocates a fresh number on post.
type ImportedPiece struct {
	JournalCode string
	Key         string
	Proposal    Proposal
}

// WritePieces writes pieces of the journal with the given code, one row per line.
func WritePieces(w io.Writer, journalCode string, pieces []model.PieceWithLines) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	row := 2
	for _, p := range pieces {
		for _, l := range p.Lines {
			if err := cw.Write(MarshalLine(journalCode, p.Piece, l)); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
			row++
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalLine converts one line of a piece to a CSV row.
func MarshalLine(journalCode string, p model.Piece, l model.Line) []string {
	rec := make([]string, numFields)
	rec[colJournal] = journalCode
	rec[colPiece] = p.PieceNumber
	rec[colDate] = p.DateString()
	rec[colReference] = p.Reference
	rec[colLineNumber] = strconv.Itoa(l.LineNumber)
	rec[colAccount] = l.AccountCode
	rec[colAuxiliary] = l.AuxiliaryID
	rec[colCostCenter] = l.CostCenterID
	rec[colLabel] = l.Label

	debit, credit := l.Amount.Columns()
	if !debit.IsZero() {
		rec[colDebit] = debit.String()
	}
	if !credit.IsZero() {
		rec[colCredit] = credit.String()
	}
	rec[colFiscalTags] = FormatFiscalTags(l.FiscalTags)
	return rec
}

// ReadPieces parses a CSV written by WritePieces. Consecutive rows with the
// same journal and piece number form one piece.
func ReadPieces(r io.Reader) ([]ImportedPiece, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading pieces CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var out []ImportedPiece
	for i, rec := range records[1:] {
		line, err := UnmarshalLine(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		date, err := model.ParseDate(rec[colDate])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing date %q: %w", i+2, rec[colDate], err)
		}

		journalCode, key := rec[colJournal], rec[colPiece]
		if n := len(out); n > 0 && out[n-1].JournalCode == journalCode && out[n-1].Key == key {
			out[n-1].Proposal.Lines = append(out[n-1].Proposal.Lines, line)
			continue
		}
		out = append(out, ImportedPiece{
			JournalCode: journalCode,
			Key:         key,
			Proposal:    Proposal{Date: date, Reference: rec[colReference], Lines: []LineInput{line}},
		})
	}
	return out, nil
}

// UnmarshalLine converts a CSV row to a proposed line.
func UnmarshalLine(rec []string) (LineInput, error) {
	if len(rec) != numFields {
		return LineInput{}, fmt.Errorf("expected %d fields, got %d", numFields, len(rec))
	}
	lineNumber, err := strconv.Atoi(rec[colLineNumber])
	if err != nil {
		return LineInput{}, fmt.Errorf("parsing line_number %q: %w", rec[colLineNumber], err)
	}

	var debit, credit decimal.Decimal
	if rec[colDebit] != "" {
		if debit, err = decimal.NewFromString(rec[colDebit]); err != nil {
			return LineInput{}, fmt.Errorf("parsing debit %q: %w", rec[colDebit], err)
		}
	}
	if rec[colCredit] != "" {
		if credit, err = decimal.NewFromString(rec[colCredit]); err != nil {
			return LineInput{}, fmt.Errorf("parsing credit %q: %w", rec[colCredit], err)
		}
	}
	tags, err := ParseFiscalTags(rec[colFiscalTags])
	if err != nil {
		return LineInput{}, err
	}

	return LineInput{
		LineNumber:   lineNumber,
		AccountCode:  rec[colAccount],
		AuxiliaryID:  rec[colAuxiliary],
		CostCenterID: rec[colCostCenter],
		Label:        rec[colLabel],
		Debit:        debit,
		Credit:       credit,
		FiscalTags:   tags,
	}, nil
}

// FormatFiscalTags joins the set tags with ";".
func FormatFiscalTags(t model.FiscalTags) string {
	var names []string
	for _, f := range fiscalTagFields(&t) {
		if *f.flag {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, ";")
}

// ParseFiscalTags is the inverse of FormatFiscalTags.
func ParseFiscalTags(s string) (model.FiscalTags, error) {
	var t model.FiscalTags
	if strings.TrimSpace(s) == "" {
		return t, nil
	}
	fields := fiscalTagFields(&t)
	for _, name := range strings.Split(s, ";") {
		name = strings.TrimSpace(name)
		i := slices.IndexFunc(fields, func(f fiscalTagField) bool { return f.name == name })
		if i < 0 {
			return model.FiscalTags{}, fmt.Errorf("unknown fiscal tag %q", name)
		}
		*fields[i].flag = true
	}
	return t, nil
}

type fiscalTagField struct {
	name string
	flag *bool
}

func fiscalTagFields(t *model.FiscalTags) []fiscalTagField {
	return []fiscalTagField{
		{TagExport, &t.IsExportProduct},
		{TagDeductible, &t.IsDeductibleCharge},
		{TagNonDeductible, &t.IsNonDeductibleCharge},
		{TagFiscalDepreciation, &t.IsFiscalDepreciation},
		{TagAccountingDepreciation, &t.IsAccountingDepreciation},
		{TagInvestment, &t.IsInvestment},
	}
}

// ExportJournal loads every piece of a journal with its lines, ready for WritePieces.
func (s *Service) ExportJournal(ctx context.Context, actor model.Actor, journalCode string) ([]model.PieceWithLines, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	journal, err := s.store.GetJournalByCode(ctx, actor.TenantID, journalCode)
	if err != nil {
		return nil, journalErr(err)
	}
	pieces, err := s.store.ListPieces(ctx, actor.TenantID, journal.ID)
	if err != nil {
		return nil, err
	}
	out := make([]model.PieceWithLines, 0, len(pieces))
	for _, p := range pieces {
		lines, err := s.store.ListLines(ctx, actor.TenantID, p.ID)
		if err != nil {
			return nil, fmt.Errorf("loading lines of piece %s: %w", p.PieceNumber, err)
		}
		out = append(out, model.PieceWithLines{Piece: p, Lines: lines})
	}
	return out, nil
}

// Import posts imported pieces in order and stops at the first failure,
// returning the pieces posted so far.
func (s *Service) Import(ctx context.Context, actor model.Actor, pieces []ImportedPiece) ([]model.PieceWithLines, error) {
	journals := make(map[string]string)
	var posted []model.PieceWithLines
	for _, ip := range pieces {
		journalID, ok := journals[ip.JournalCode]
		if !ok {
			j, err := s.store.GetJournalByCode(ctx, actor.TenantID, ip.JournalCode)
			if errors.Is(err, store.ErrNotFound) {
				return posted, fmt.Errorf("piece %s: journal %s: %w", ip.Key, ip.JournalCode, ErrJournalNotFound)
			}
			if err != nil {
				return posted, err
			}
			journalID = j.ID
			journals[ip.JournalCode] = journalID
		}
		p := ip.Proposal
		p.JournalID = journalID
		out, err := s.Post(ctx, actor, p)
		if err != nil {
			return posted, fmt.Errorf("piece %s of %s: %w", ip.Key, ip.JournalCode, err)
		}
		posted = append(posted, *out)
	}
	return posted, nil
}
