package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAmountFromColumns(t *testing.T) {
	tests := []struct {
		debit, credit string
		wantSide      Side
		wantErr       error
	}{
		{"100.00", "0", SideDebit, nil},
		{"0", "42.5", SideCredit, nil},
		{"50", "20", "", ErrAmountBothSides},
		{"0", "0", "", ErrAmountNoSide},
		{"-5", "0", "", ErrAmountNoSide},
	}
	for _, tt := range tests {
		a, err := AmountFromColumns(dec(tt.debit), dec(tt.credit))
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, "debit=%s credit=%s", tt.debit, tt.credit)
			assert.Equal(t, Amount{}, a)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.wantSide, a.Side())
	}
}

func TestAmountColumnsRoundTrip(t *testing.T) {
	a, err := Credit(dec("12.345"))
	require.NoError(t, err)

	debit, credit := a.Columns()
	assert.True(t, debit.IsZero())
	assert.True(t, credit.Equal(dec("12.345")))

	back, err := AmountFromColumns(debit, credit)
	require.NoError(t, err)
	assert.Equal(t, SideCredit, back.Side())
	assert.True(t, back.Value().Equal(a.Value()))
}

func TestDebitRejectsZero(t *testing.T) {
	_, err := Debit(decimal.Zero)
	assert.ErrorIs(t, err, ErrAmountNoSide)
}

func TestTenantInFiscalYear(t *testing.T) {
	tenant := Tenant{
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, tenant.InFiscalYear(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, tenant.InFiscalYear(time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, tenant.InFiscalYear(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, tenant.InFiscalYear(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-01-05")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-05", Piece{Date: d}.DateString())

	_, err = ParseDate("05/01/2026")
	assert.Error(t, err)
}
