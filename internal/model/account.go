package model

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Account is one row of a tenant's chart of accounts.
type Account struct {
	ID                  string
	TenantID            string
	Code                string // e.g. "401000"
	Label               string
	Class               int // first digit of the code in the SCF chart
	Type                AccountType
	IsAuxiliaryRequired bool // lines on this account must name an Auxiliary
}

// AuxiliaryType distinguishes sub-ledger parties.
type AuxiliaryType string

const (
	AuxiliaryTypeCustomer AuxiliaryType = "customer"
	AuxiliaryTypeSupplier AuxiliaryType = "supplier"
)

// Auxiliary is a sub-ledger party (customer or supplier) of a tenant.
type Auxiliary struct {
	ID       string
	TenantID string
	Code     string
	Label    string
	Type     AuxiliaryType
}
