package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/piecebook/internal/journal"
)

const standardCSV = `date,label,amount
2026-01-03,SONELGAZ FACTURE 0112,-4520.00
2026-01-10,VIREMENT CLIENT ALPHA,119000.00
2026-01-07,FRAIS DE TENUE DE COMPTE,-350.00
`

const chaseCSV = `Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
DEBIT,01/03/2025,GITHUB *PRO SUBSCRIPTION,-4.00,ACH_DEBIT,1000.00,
CREDIT,01/15/2025,ACME CONSULTING INVOICE 1042,3500.00,ACH_CREDIT,4496.00,
`

func TestStandard_Parse(t *testing.T) {
	txns, err := Standard.Parse(strings.NewReader(standardCSV))
	require.NoError(t, err)
	require.Len(t, txns, 3)

	assert.Equal(t, "SONELGAZ FACTURE 0112", txns[0].Label)
	assert.Equal(t, "-4520.00", txns[0].Amount.StringFixed(2))
	assert.Equal(t, "2026-01-03", txns[0].Date.Format("2006-01-02"))
	assert.Equal(t, "bnq_20260103_SONELGAZFA", txns[0].Reference)
	assert.True(t, txns[1].Amount.IsPositive())
}

func TestChase_Parse(t *testing.T) {
	txns, err := Chase.Parse(strings.NewReader(chaseCSV))
	require.NoError(t, err)
	require.Len(t, txns, 2)

	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", txns[0].Label)
	assert.Equal(t, 2025, txns[0].Date.Year())
	assert.Equal(t, 3, txns[0].Date.Day())
	assert.Equal(t, "chase_20250103_GITHUBPROS", txns[0].Reference)
	assert.Equal(t, "3500.00", txns[1].Amount.StringFixed(2))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{"bad date", "date,label,amount\n03/01/2026,X,1\n", "parsing date"},
		{"bad amount", "date,label,amount\n2026-01-03,X,abc\n", "parsing amount"},
		{"zero amount", "date,label,amount\n2026-01-03,X,0.00\n", "amount is zero"},
		{"wrong width", "date,label,amount\n2026-01-03,X\n", "reading standard CSV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Standard.Parse(strings.NewReader(tt.csv))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParse_HeaderOnly(t *testing.T) {
	txns, err := Standard.Parse(strings.NewReader("date,label,amount\n"))
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestPieces(t *testing.T) {
	txns, err := Standard.Parse(strings.NewReader(standardCSV))
	require.NoError(t, err)

	pieces := Pieces(txns, Posting{JournalCode: "BNQ", BankAccount: "512000", CounterpartAccount: "581000"})
	require.Len(t, pieces, 3)

	// Sorted by date: 01-03, 01-07, 01-10.
	assert.Equal(t, "bnq_20260103_SONELGAZFA", pieces[0].Key)
	assert.Equal(t, "2026-01-07", pieces[1].Proposal.Date.Format("2006-01-02"))
	assert.Equal(t, "BNQ", pieces[2].JournalCode)

	paid := pieces[0].Proposal.Lines
	assert.Equal(t, "512000", paid[0].AccountCode)
	assert.True(t, paid[0].Credit.Equal(txns[0].Amount.Abs()))
	assert.True(t, paid[0].Debit.IsZero())
	assert.True(t, paid[1].Debit.Equal(txns[0].Amount.Abs()))

	received := pieces[2].Proposal.Lines
	assert.True(t, received[0].Debit.Equal(txns[1].Amount))
	assert.True(t, received[1].Credit.Equal(txns[1].Amount))

	for _, p := range pieces {
		require.NoError(t, journal.ValidateRequest(withJournal(p.Proposal)))
		require.NoError(t, journal.ValidateBalance(p.Proposal.Lines, journal.DefaultBalanceTolerance))
	}
}

func withJournal(p journal.Proposal) journal.Proposal {
	p.JournalID = "bnq"
	return p
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Same(t, Standard, r.Get("STANDARD"))
	assert.Same(t, Chase, r.Get("chase"))
	assert.Nil(t, r.Get("ofx"))
	assert.Equal(t, []string{"chase", "standard"}, r.Formats())
	assert.Panics(t, func() { r.Register(Standard) })
}
