package model

import (
	"time"
)

// DateLayout is the wire and storage format of posting dates.
const DateLayout = "2006-01-02"

// JournalNature tells what kind of operations a journal records.
type JournalNature string

const (
	JournalNaturePurchase JournalNature = "purchase"
	JournalNatureSale     JournalNature = "sale"
	JournalNatureBank     JournalNature = "bank"
	JournalNatureCash     JournalNature = "cash"
	JournalNatureMisc     JournalNature = "misc"
	JournalNatureOpening  JournalNature = "opening"
)

// Journal is a named ledger stream of a tenant. It owns the piece-number sequence.
type Journal struct {
	ID               string
	TenantID         string
	Code             string // "ACH", "VTE", ...
	Label            string
	Nature           JournalNature
	PrincipalAccount string // optional counterpart account code
}

// Piece is the header of a posted ledger entry.
type Piece struct {
	ID          string
	TenantID    string
	JournalID   string
	PieceNumber string    // zero-padded, unique within the journal
	Date        time.Time //nolint:revive // posting date, midnight UTC
	Reference   string    // optional free text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DateString returns the posting date in DateLayout.
func (p Piece) DateString() string {
	return p.Date.Format(DateLayout)
}

// PieceWithLines is a piece header together with its complete line set.
type PieceWithLines struct {
	Piece
	Lines []Line
}

// ParseDate parses a posting date and normalizes it to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// TruncateDate drops the clock part of t, keeping its calendar day in UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
