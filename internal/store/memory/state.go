package memory

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/store"
)

// state is one consistent copy of every table.
type state struct {
	tenants       map[string]model.Tenant
	journals      map[string]model.Journal
	accounts      map[string]model.Account
	auxiliaries   map[string]model.Auxiliary
	pieces        map[string]model.Piece
	lines         map[string][]model.Line // by piece ID
	activity      []model.ActivityLog
	subscriptions map[string]model.Subscription
	usage         map[string]int64 // by usageKey
}

func newState() *state {
	return &state{
		tenants:       make(map[string]model.Tenant),
		journals:      make(map[string]model.Journal),
		accounts:      make(map[string]model.Account),
		auxiliaries:   make(map[string]model.Auxiliary),
		pieces:        make(map[string]model.Piece),
		lines:         make(map[string][]model.Line),
		subscriptions: make(map[string]model.Subscription),
		usage:         make(map[string]int64),
	}
}

func (s *state) clone() *state {
	c := &state{
		tenants:       cloneMap(s.tenants),
		journals:      cloneMap(s.journals),
		accounts:      cloneMap(s.accounts),
		auxiliaries:   cloneMap(s.auxiliaries),
		pieces:        cloneMap(s.pieces),
		lines:         make(map[string][]model.Line, len(s.lines)),
		activity:      slices.Clone(s.activity),
		subscriptions: cloneMap(s.subscriptions),
		usage:         cloneMap(s.usage),
	}
	for k, v := range s.lines {
		c.lines[k] = slices.Clone(v)
	}
	return c
}

func cloneMap[V any](m map[string]V) map[string]V {
	c := make(map[string]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func usageKey(organizationID, metric, period string) string {
	return organizationID + "|" + metric + "|" + period
}

func pieceSeq(p model.Piece) int {
	n, _ := strconv.Atoi(p.PieceNumber)
	return n
}

// reader implements store.Reader over a state. Callers handle locking.
type reader struct {
	st *state
}

func (r reader) GetTenant(_ context.Context, tenantID string) (*model.Tenant, error) {
	t, ok := r.st.tenants[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (r reader) GetJournal(_ context.Context, tenantID, journalID string) (*model.Journal, error) {
	j, ok := r.st.journals[journalID]
	if !ok || j.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return &j, nil
}

func (r reader) GetJournalByCode(_ context.Context, tenantID, code string) (*model.Journal, error) {
	for _, j := range r.st.journals {
		if j.TenantID == tenantID && j.Code == code {
			return &j, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r reader) ListJournals(_ context.Context, tenantID string) ([]model.Journal, error) {
	var out []model.Journal
	for _, j := range r.st.journals {
		if j.TenantID == tenantID {
			out = append(out, j)
		}
	}
	slices.SortFunc(out, func(a, b model.Journal) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (r reader) GetAccountByCode(_ context.Context, tenantID, code string) (*model.Account, error) {
	for _, a := range r.st.accounts {
		if a.TenantID == tenantID && a.Code == code {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r reader) ListAccounts(_ context.Context, tenantID string) ([]model.Account, error) {
	var out []model.Account
	for _, a := range r.st.accounts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b model.Account) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (r reader) GetAuxiliary(_ context.Context, tenantID, auxiliaryID string) (*model.Auxiliary, error) {
	a, ok := r.st.auxiliaries[auxiliaryID]
	if !ok || a.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (r reader) ListAuxiliaries(_ context.Context, tenantID string) ([]model.Auxiliary, error) {
	var out []model.Auxiliary
	for _, a := range r.st.auxiliaries {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b model.Auxiliary) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (r reader) GetPiece(_ context.Context, tenantID, pieceID string) (*model.Piece, error) {
	p, ok := r.st.pieces[pieceID]
	if !ok || p.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (r reader) LatestPiece(_ context.Context, tenantID, journalID string) (*model.Piece, error) {
	var latest *model.Piece
	for _, p := range r.st.pieces {
		if p.TenantID != tenantID || p.JournalID != journalID {
			continue
		}
		if latest == nil || p.Date.After(latest.Date) ||
			(p.Date.Equal(latest.Date) && pieceSeq(p) > pieceSeq(*latest)) {
			cp := p
			latest = &cp
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

func (r reader) ListPieces(_ context.Context, tenantID, journalID string) ([]model.Piece, error) {
	var out []model.Piece
	for _, p := range r.st.pieces {
		if p.TenantID == tenantID && p.JournalID == journalID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b model.Piece) int { return pieceSeq(a) - pieceSeq(b) })
	return out, nil
}

func (r reader) ListLines(_ context.Context, tenantID, pieceID string) ([]model.Line, error) {
	p, ok := r.st.pieces[pieceID]
	if !ok || p.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	out := slices.Clone(r.st.lines[pieceID])
	slices.SortFunc(out, func(a, b model.Line) int { return a.LineNumber - b.LineNumber })
	return out, nil
}

func (r reader) MaxPieceNumber(_ context.Context, tenantID, journalID string) (int, error) {
	maxSeq := 0
	for _, p := range r.st.pieces {
		if p.TenantID == tenantID && p.JournalID == journalID {
			maxSeq = max(maxSeq, pieceSeq(p))
		}
	}
	return maxSeq, nil
}
