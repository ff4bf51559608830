package accounts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/piecebook/internal/model"
)

func TestRoundTrip(t *testing.T) {
	chart := DefaultChart()

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, chart))
	assert.True(t, strings.HasPrefix(buf.String(), Header+"\n"))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	assert.Equal(t, chart, got)
}

func TestUnmarshalAccount_DefaultsClass(t *testing.T) {
	acct, err := UnmarshalAccount([]string{"512100", "Banque 2", "", "asset", ""})
	require.NoError(t, err)
	assert.Equal(t, 5, acct.Class)
	assert.False(t, acct.IsAuxiliaryRequired)
}

func TestUnmarshalAccount_Errors(t *testing.T) {
	tests := []struct {
		name   string
		record []string
		want   string
	}{
		{"short row", []string{"401000"}, "expected 5 fields"},
		{"missing code", []string{"", "x", "4", "asset", ""}, "missing code"},
		{"non-numeric code", []string{"ABC100", "x", "", "asset", ""}, `code "ABC100" must start with its class digit`},
		{"non-numeric code with class", []string{"A41000", "x", "4", "asset", ""}, "must start with its class digit"},
		{"bad class", []string{"401000", "x", "four", "asset", ""}, "parsing class"},
		{"bad type", []string{"401000", "x", "4", "debt", ""}, "unknown account type"},
		{"bad flag", []string{"401000", "x", "4", "liability", "maybe"}, "parsing auxiliary_required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalAccount(tt.record)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestReadAccounts_Empty(t *testing.T) {
	got, err := ReadAccounts(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMarshalAccount(t *testing.T) {
	row := MarshalAccount(model.Account{Code: "411000", Label: "Clients", Class: 4, Type: model.AccountTypeAsset, IsAuxiliaryRequired: true})
	assert.Equal(t, []string{"411000", "Clients", "4", "asset", "true"}, row)
}
