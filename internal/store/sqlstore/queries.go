package sqlstore

import (
	"context"

	"github.com/cleared-dev/piecebook/internal/model"
)

// queries implements store.Reader on either the pool or an open transaction.
type queries struct {
	q querier
	d *Dialect
}

func (s queries) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	row := s.q.QueryRowContext(ctx, s.d.rebind("SELECT "+tenantColumns+" FROM tenants WHERE id = ?"), tenantID)
	t, err := scanTenant(row)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (s queries) GetJournal(ctx context.Context, tenantID, journalID string) (*model.Journal, error) {
	row := s.q.QueryRowContext(ctx, s.d.rebind(
		"SELECT "+journalColumns+" FROM journals WHERE tenant_id = ? AND id = ?"), tenantID, journalID)
	j, err := scanJournal(row)
	if err != nil {
		return nil, notFound(err)
	}
	return j, nil
}

func (s queries) GetJournalByCode(ctx context.Context, tenantID, code string) (*model.Journal, error) {
	row := s.q.QueryRowContext(ctx, s.d.rebind(
		"SELECT "+journalColumns+" FROM journals WHERE tenant_id = ? AND code = ?"), tenantID, code)
	j, err := scanJournal(row)
	if err != nil {
		return nil, notFound(err)
	}
	return j, nil
}

func (s queries) ListJournals(ctx context.Context, tenantID string) ([]model.Journal, error) {
	rows, err := s.q.QueryContext(ctx, s.d.rebind(
		"SELECT "+journalColumns+" FROM journals WHERE tenant_id = ? ORDER BY code"), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (s queries) GetAccountByCode(ctx context.Context, tenantID, code string) (*model.Account, error) {
	row := s.q.QueryRowContext(ctx, s.d.rebind(
		"SELECT "+accountColumns+" FROM accounts WHERE tenant_id = ? AND code = ?"), tenantID, code)
	a, err := scanAccount(row)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (s queries) ListAccounts(ctx context.Context, tenantID string) ([]model.Account, error) {
	rows, err := s.q.QueryContext(ctx, s.d.rebind(
		"SELECT "+accountColumns+" FROM accounts WHERE tenant_id = ? ORDER BY code"), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s queries) GetAuxiliary(ctx context.Context, tenantID, auxiliaryID string) (*model.Auxiliary, error) {
	row := s.q.QueryRowContext(ctx, s.d.rebind(
		"SELECT "+auxiliaryColumns+" FROM auxiliaries WHERE tenant_id = ? AND id = ?"), tenantID, auxiliaryID)
	a, err := scanAuxiliary(row)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (s queries) ListAuxiliaries(ctx context.Context, tenantID string) ([]model.Auxiliary, error) {
	rows, err := s.q.QueryContext(ctx, s.d.rebind(
		"SELECT "+auxiliaryColumns+" FROM auxiliaries WHERE tenant_id = ? ORDER BY code"), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Auxiliary
	for rows.Next() {
		a, err := scanAuxiliary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s queries) GetPiece(ctx context.Context, tenantID, pieceID string) (*model.Piece, error) {
	row := s.q.QueryRowContext(ctx, s.d.rebind(
		"SELECT "+pieceColumns+" FROM pieces WHERE tenant_id = ? AND id = ?"), tenantID, pieceID)
	p, err := scanPiece(row)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (s queries) LatestPiece(ctx context.Context, tenantID, journalID string) (*model.Piece, error) {
	row := s.q.QueryRowContext(ctx, s.d.rebind(
		"SELECT "+pieceColumns+" FROM pieces WHERE tenant_id = ? AND journal_id = ?"+
			" ORDER BY date DESC, CAST(piece_number AS INTEGER) DESC LIMIT 1"), tenantID, journalID)
	p, err := scanPiece(row)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (s queries) ListPieces(ctx context.Context, tenantID, journalID string) ([]model.Piece, error) {
	rows, err := s.q.QueryContext(ctx, s.d.rebind(
		"SELECT "+pieceColumns+" FROM pieces WHERE tenant_id = ? AND journal_id = ?"+
			" ORDER BY CAST(piece_number AS INTEGER)"), tenantID, journalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Piece
	for rows.Next() {
		p, err := scanPiece(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s queries) ListLines(ctx context.Context, tenantID, pieceID string) ([]model.Line, error) {
	if _, err := s.GetPiece(ctx, tenantID, pieceID); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, s.d.rebind(
		"SELECT "+lineColumns+" FROM transaction_lines WHERE tenant_id = ? AND piece_id = ? ORDER BY line_number"),
		tenantID, pieceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s queries) MaxPieceNumber(ctx context.Context, tenantID, journalID string) (int, error) {
	var maxSeq int
	err := s.q.QueryRowContext(ctx, s.d.rebind(
		"SELECT COALESCE(MAX(CAST(piece_number AS INTEGER)), 0) FROM pieces WHERE tenant_id = ? AND journal_id = ?"),
		tenantID, journalID).Scan(&maxSeq)
	return maxSeq, err
}
