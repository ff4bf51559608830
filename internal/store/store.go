// Package store defines the repository and unit-of-work contracts used by the
// posting pipeline. Implementations live in the memory, sqlite and postgres
// subpackages; none of them is a process-wide handle, callers pass a Store in.
package store

import (
	"context"
	"errors"

	"github.com/cleared-dev/piecebook/internal/model"
)

var (
	// ErrNotFound is returned when a tenant-scoped lookup matches nothing.
	ErrNotFound = errors.New("store: not found")
	// ErrAlreadyExists is returned when a setup insert collides with an existing row.
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrDuplicatePieceNumber is returned when a piece number is already taken in its journal.
	ErrDuplicatePieceNumber = errors.New("store: duplicate piece number")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")
)

// Reader is the read-only surface shared by Store and Tx. Every lookup is tenant scoped.
type Reader interface {
	GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error)
	GetJournal(ctx context.Context, tenantID, journalID string) (*model.Journal, error)
	GetJournalByCode(ctx context.Context, tenantID, code string) (*model.Journal, error)
	ListJournals(ctx context.Context, tenantID string) ([]model.Journal, error)
	GetAccountByCode(ctx context.Context, tenantID, code string) (*model.Account, error)
	ListAccounts(ctx context.Context, tenantID string) ([]model.Account, error)
	GetAuxiliary(ctx context.Context, tenantID, auxiliaryID string) (*model.Auxiliary, error)
	ListAuxiliaries(ctx context.Context, tenantID string) ([]model.Auxiliary, error)

	GetPiece(ctx context.Context, tenantID, pieceID string) (*model.Piece, error)
	// LatestPiece returns the most recently dated piece of a journal (highest number on ties),
	// or ErrNotFound when the journal is empty.
	LatestPiece(ctx context.Context, tenantID, journalID string) (*model.Piece, error)
	// ListPieces returns a journal's pieces ordered by piece number.
	ListPieces(ctx context.Context, tenantID, journalID string) ([]model.Piece, error)
	ListLines(ctx context.Context, tenantID, pieceID string) ([]model.Line, error)
	// MaxPieceNumber returns the highest live piece number of a journal, 0 when empty.
	MaxPieceNumber(ctx context.Context, tenantID, journalID string) (int, error)
}

// Tx is one atomic unit of work. Nothing written through a Tx is visible to
// other callers until the enclosing WithTx returns nil.
type Tx interface {
	Reader

	// LockJournal serializes writers of one journal until the unit of work ends.
	LockJournal(ctx context.Context, tenantID, journalID string) (*model.Journal, error)
	InsertPiece(ctx context.Context, p *model.Piece) error
	UpdatePiece(ctx context.Context, p *model.Piece) error
	DeletePiece(ctx context.Context, tenantID, pieceID string) error
	InsertLines(ctx context.Context, lines []model.Line) error
	DeleteLines(ctx context.Context, tenantID, pieceID string) error
	AppendActivity(ctx context.Context, a *model.ActivityLog) error
}

// Setup holds the writes used to bootstrap reference data (tenants, charts, journals).
type Setup interface {
	CreateTenant(ctx context.Context, t *model.Tenant) error
	CreateJournal(ctx context.Context, j *model.Journal) error
	CreateAccount(ctx context.Context, a *model.Account) error
	CreateAuxiliary(ctx context.Context, a *model.Auxiliary) error
}

// Subscriptions persists the quota state consulted by the quota gate.
type Subscriptions interface {
	GetSubscription(ctx context.Context, organizationID string) (*model.Subscription, error)
	PutSubscription(ctx context.Context, s *model.Subscription) error
	// Usage returns the counter for metric in period ("YYYY-MM"), 0 when absent.
	Usage(ctx context.Context, organizationID, metric, period string) (int64, error)
	IncrementUsage(ctx context.Context, organizationID, metric, period string) error
}

// Store is the full persistence surface injected into services.
type Store interface {
	Reader
	Setup
	Subscriptions

	// WithTx runs fn inside one unit of work: it commits when fn returns nil and
	// rolls everything back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	ListActivity(ctx context.Context, tenantID string) ([]model.ActivityLog, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
