// Package memory is an in-process store.Store. Units of work are serialized
// and run against a private copy of the state that replaces the live state on
// commit, so a failed unit leaves nothing behind.
package memory

import (
	"context"
	"sync"

	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	writeMu sync.Mutex   // held for the whole of every write
	mu      sync.RWMutex // guards data
	data    *state
	closed  bool
}

func New() *Store {
	return &Store{data: newState()}
}

func (s *Store) read() (reader, func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return reader{}, func() {}, store.ErrClosed
	}
	return reader{st: s.data}, s.mu.RUnlock, nil
}

// WithTx runs fn against a copy of the state and publishes the copy when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return store.ErrClosed
	}
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &tx{reader: reader{st: work}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

// mutate applies a single setup write as its own unit of work.
func (s *Store) mutate(fn func(st *state) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	return fn(s.data)
}

// ==================== Reader ====================

func (s *Store) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	return r.GetTenant(ctx, tenantID)
}

func (s *Store) GetJournal(ctx context.Context, tenantID, journalID string) (*model.Journal, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	return r.GetJournal(ctx, tenantID, journalID)
}

func (s *Store) GetJournalByCode(ctx context.Context, tenantID, code string) (*model.Journal, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	return r.GetJournalByCode(ctx, tenantID, code)
}

func (s *Store) ListJournals(ctx context.Context, tenantID string) ([]model.Journal, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	return r.ListJournals(ctx, tenantID)
}

func (s *Store) GetAccountByCode(ctx context.Context, tenantID, code string) (*model.Account, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	return r.GetAccountByCode(ctx, tenantID, code)
}

func (s *Store) ListAccounts(ctx context.Context, tenantID string) ([]model.Account, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	return r.ListAccounts(ctx, tenantID)
}

func (s *Store) GetAuxiliary(ctx context.Context, tenantID, auxiliaryID string) (*model.Auxiliary, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	return r.GetAuxiliary(ctx, tenantID, auxiliaryID)
}

func (s *Store) ListAuxiliaries(ctx context.Context, tenantID string) ([]model.Auxiliary, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	return r.ListAuxiliaries(ctx, tenantID)
}

func (s *Store) GetPiece(ctx context.Context, tenantID, pieceID string) (*model.Piece, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	return r.GetPiece(ctx, tenantID, pieceID)
}

func (s *Store) LatestPiece(ctx context.Context, tenantID, journalID string) (*model.Piece, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	return r.LatestPiece(ctx, tenantID, journalID)
}

func (s *Store) ListPieces(ctx context.Context, tenantID, journalID string) ([]model.Piece, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	return r.ListPieces(ctx, tenantID, journalID)
}

func (s *Store) ListLines(ctx context.Context, tenantID, pieceID string) ([]model.Line, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	return r.ListLines(ctx, tenantID, pieceID)
}

func (s *Store) MaxPieceNumber(ctx context.Context, tenantID, journalID string) (int, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return 0, err
	}
	return r.MaxPieceNumber(ctx, tenantID, journalID)
}

func (s *Store) ListActivity(_ context.Context, tenantID string) ([]model.ActivityLog, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	var out []model.ActivityLog
	for _, a := range r.st.activity {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ==================== Setup ====================

func (s *Store) CreateTenant(_ context.Context, t *model.Tenant) error {
	return s.mutate(func(st *state) error {
		if _, exists := st.tenants[t.ID]; exists {
			return store.ErrAlreadyExists
		}
		st.tenants[t.ID] = *t
		return nil
	})
}

func (s *Store) CreateJournal(_ context.Context, j *model.Journal) error {
	return s.mutate(func(st *state) error {
		if _, exists := st.journals[j.ID]; exists {
			return store.ErrAlreadyExists
		}
		for _, other := range st.journals {
			if other.TenantID == j.TenantID && other.Code == j.Code {
				return store.ErrAlreadyExists
			}
		}
		st.journals[j.ID] = *j
		return nil
	})
}

func (s *Store) CreateAccount(_ context.Context, a *model.Account) error {
	return s.mutate(func(st *state) error {
		if _, exists := st.accounts[a.ID]; exists {
			return store.ErrAlreadyExists
		}
		for _, other := range st.accounts {
			if other.TenantID == a.TenantID && other.Code == a.Code {
				return store.ErrAlreadyExists
			}
		}
		st.accounts[a.ID] = *a
		return nil
	})
}

func (s *Store) CreateAuxiliary(_ context.Context, a *model.Auxiliary) error {
	return s.mutate(func(st *state) error {
		if _, exists := st.auxiliaries[a.ID]; exists {
			return store.ErrAlreadyExists
		}
		for _, other := range st.auxiliaries {
			if other.TenantID == a.TenantID && other.Code == a.Code {
				return store.ErrAlreadyExists
			}
		}
		st.auxiliaries[a.ID] = *a
		return nil
	})
}

// ==================== Subscriptions ====================

func (s *Store) GetSubscription(_ context.Context, organizationID string) (*model.Subscription, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return nil, err
	}
	sub, ok := r.st.subscriptions[organizationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sub, nil
}

func (s *Store) PutSubscription(_ context.Context, sub *model.Subscription) error {
	return s.mutate(func(st *state) error {
		st.subscriptions[sub.OrganizationID] = *sub
		return nil
	})
}

func (s *Store) Usage(_ context.Context, organizationID, metric, period string) (int64, error) {
	r, done, err := s.read()
	defer done()
	if err != nil {
		return 0, err
	}
	return r.st.usage[usageKey(organizationID, metric, period)], nil
}

func (s *Store) IncrementUsage(_ context.Context, organizationID, metric, period string) error {
	return s.mutate(func(st *state) error {
		st.usage[usageKey(organizationID, metric, period)]++
		return nil
	})
}

// ==================== Core ====================

func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ==================== Tx ====================

type tx struct {
	reader
}

// LockJournal only checks ownership: WithTx already serializes all writers.
func (t *tx) LockJournal(ctx context.Context, tenantID, journalID string) (*model.Journal, error) {
	return t.GetJournal(ctx, tenantID, journalID)
}

func (t *tx) InsertPiece(_ context.Context, p *model.Piece) error {
	if _, exists := t.st.pieces[p.ID]; exists {
		return store.ErrAlreadyExists
	}
	for _, other := range t.st.pieces {
		if other.JournalID == p.JournalID && other.PieceNumber == p.PieceNumber {
			return store.ErrDuplicatePieceNumber
		}
	}
	t.st.pieces[p.ID] = *p
	return nil
}

func (t *tx) UpdatePiece(_ context.Context, p *model.Piece) error {
	cur, ok := t.st.pieces[p.ID]
	if !ok || cur.TenantID != p.TenantID {
		return store.ErrNotFound
	}
	cur.Date = p.Date
	cur.Reference = p.Reference
	cur.UpdatedAt = p.UpdatedAt
	t.st.pieces[p.ID] = cur
	return nil
}

func (t *tx) DeletePiece(_ context.Context, tenantID, pieceID string) error {
	cur, ok := t.st.pieces[pieceID]
	if !ok || cur.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(t.st.pieces, pieceID)
	delete(t.st.lines, pieceID)
	return nil
}

func (t *tx) InsertLines(_ context.Context, lines []model.Line) error {
	for _, l := range lines {
		if _, ok := t.st.pieces[l.PieceID]; !ok {
			return store.ErrNotFound
		}
		t.st.lines[l.PieceID] = append(t.st.lines[l.PieceID], l)
	}
	return nil
}

func (t *tx) DeleteLines(_ context.Context, tenantID, pieceID string) error {
	cur, ok := t.st.pieces[pieceID]
	if !ok || cur.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(t.st.lines, pieceID)
	return nil
}

func (t *tx) AppendActivity(_ context.Context, a *model.ActivityLog) error {
	t.st.activity = append(t.st.activity, *a)
	return nil
}
