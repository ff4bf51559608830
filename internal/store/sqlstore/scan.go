package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/piecebook/internal/model"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	model.DateLayout,
}

// timeScanner accepts native times (postgres) and text columns (sqlite).
type timeScanner struct {
	dst *time.Time
}

func (s timeScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.dst = time.Time{}
		return nil
	case time.Time:
		*s.dst = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	}
	return fmt.Errorf("sqlstore: cannot scan %T into time", src)
}

func (s timeScanner) parse(v string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			*s.dst = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("sqlstore: unrecognized time %q", v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const tenantColumns = "id, organization_id, company_name, fiscal_year, start_date, end_date, currency"

func scanTenant(row rowScanner) (*model.Tenant, error) {
	var t model.Tenant
	if err := row.Scan(&t.ID, &t.OrganizationID, &t.CompanyName, &t.FiscalYear,
		timeScanner{&t.StartDate}, timeScanner{&t.EndDate}, &t.Currency); err != nil {
		return nil, err
	}
	t.StartDate = model.TruncateDate(t.StartDate)
	t.EndDate = model.TruncateDate(t.EndDate)
	return &t, nil
}

const journalColumns = "id, tenant_id, code, label, nature, principal_account"

func scanJournal(row rowScanner) (*model.Journal, error) {
	var j model.Journal
	var nature string
	if err := row.Scan(&j.ID, &j.TenantID, &j.Code, &j.Label, &nature, &j.PrincipalAccount); err != nil {
		return nil, err
	}
	j.Nature = model.JournalNature(nature)
	return &j, nil
}

const accountColumns = "id, tenant_id, code, label, class, type, is_auxiliary_required"

func scanAccount(row rowScanner) (*model.Account, error) {
	var a model.Account
	var typ string
	if err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Label, &a.Class, &typ, &a.IsAuxiliaryRequired); err != nil {
		return nil, err
	}
	a.Type = model.AccountType(typ)
	return &a, nil
}

const auxiliaryColumns = "id, tenant_id, code, label, type"

func scanAuxiliary(row rowScanner) (*model.Auxiliary, error) {
	var a model.Auxiliary
	var typ string
	if err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Label, &typ); err != nil {
		return nil, err
	}
	a.Type = model.AuxiliaryType(typ)
	return &a, nil
}

const pieceColumns = "id, tenant_id, journal_id, piece_number, date, reference, created_at, updated_at"

func scanPiece(row rowScanner) (*model.Piece, error) {
	var p model.Piece
	var ref sql.NullString
	if err := row.Scan(&p.ID, &p.TenantID, &p.JournalID, &p.PieceNumber,
		timeScanner{&p.Date}, &ref, timeScanner{&p.CreatedAt}, timeScanner{&p.UpdatedAt}); err != nil {
		return nil, err
	}
	p.Date = model.TruncateDate(p.Date)
	p.Reference = ref.String
	return &p, nil
}

const lineColumns = "id, piece_id, tenant_id, line_number, account_id, account_code, auxiliary_id, cost_center_id, label, debit, credit, " +
	"is_export_product, is_deductible_charge, is_non_deductible_charge, is_fiscal_depreciation, is_accounting_depreciation, is_investment"

func scanLine(row rowScanner) (*model.Line, error) {
	var l model.Line
	var aux, cc sql.NullString
	var debit, credit decimal.Decimal
	tags := &l.FiscalTags
	if err := row.Scan(&l.ID, &l.PieceID, &l.TenantID, &l.LineNumber, &l.AccountID, &l.AccountCode,
		&aux, &cc, &l.Label, &debit, &credit,
		&tags.IsExportProduct, &tags.IsDeductibleCharge, &tags.IsNonDeductibleCharge,
		&tags.IsFiscalDepreciation, &tags.IsAccountingDepreciation, &tags.IsInvestment); err != nil {
		return nil, err
	}
	amount, err := model.AmountFromColumns(debit, credit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: line %s: %w", l.ID, err)
	}
	l.Amount = amount
	l.AuxiliaryID = aux.String
	l.CostCenterID = cc.String
	return &l, nil
}

const activityColumns = "id, tenant_id, type, description, user_id, entity_type, entity_id, created_at"

func scanActivity(row rowScanner) (*model.ActivityLog, error) {
	var a model.ActivityLog
	var typ string
	if err := row.Scan(&a.ID, &a.TenantID, &typ, &a.Description, &a.ActorID, &a.EntityType, &a.EntityID,
		timeScanner{&a.CreatedAt}); err != nil {
		return nil, err
	}
	a.Type = model.ActivityType(typ)
	return &a, nil
}
