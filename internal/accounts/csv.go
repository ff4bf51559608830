package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cleared-dev/piecebook/internal/model"
)

// Header is the CSV header of a chart of accounts.
const Header = "code,label,class,type,auxiliary_required"

const (
	numFields    = 5
	colCode      = 0
	colLabel     = 1
	colClass     = 2
	colType      = 3
	colAuxiliary = 4
)

// ReadAccounts reads a chart of accounts CSV.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes a chart of accounts CSV.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colCode] = acct.Code
	row[colLabel] = acct.Label
	row[colClass] = strconv.Itoa(acct.Class)
	row[colType] = string(acct.Type)
	row[colAuxiliary] = strconv.FormatBool(acct.IsAuxiliaryRequired)
	return row
}

// UnmarshalAccount converts a CSV row to an Account. The class defaults to
// the first digit of the code.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	code := strings.TrimSpace(record[colCode])
	if code == "" {
		return model.Account{}, fmt.Errorf("missing code")
	}
	// The first digit of a code is its class.
	if code[0] < '0' || code[0] > '9' {
		return model.Account{}, fmt.Errorf("code %q must start with its class digit", code)
	}

	var class int
	var err error
	if record[colClass] != "" {
		if class, err = strconv.Atoi(record[colClass]); err != nil {
			return model.Account{}, fmt.Errorf("parsing class %q: %w", record[colClass], err)
		}
	} else {
		class = int(code[0] - '0')
	}

	typ := model.AccountType(record[colType])
	if !typ.Valid() {
		return model.Account{}, fmt.Errorf("unknown account type %q", record[colType])
	}

	var auxRequired bool
	if record[colAuxiliary] != "" {
		if auxRequired, err = strconv.ParseBool(record[colAuxiliary]); err != nil {
			return model.Account{}, fmt.Errorf("parsing auxiliary_required %q: %w", record[colAuxiliary], err)
		}
	}

	return model.Account{
		Code:                code,
		Label:               record[colLabel],
		Class:               class,
		Type:                typ,
		IsAuxiliaryRequired: auxRequired,
	}, nil
}
