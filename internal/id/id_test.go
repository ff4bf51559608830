package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPieceNumber(t *testing.T) {
	tests := []struct {
		seq  int
		want string
	}{
		{1, "00001"},
		{42, "00042"},
		{99999, "99999"},
		{100000, "100000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPieceNumber(tt.seq), "FormatPieceNumber(%d)", tt.seq)
	}
}

func TestFormatPieceNumberWidth(t *testing.T) {
	assert.Equal(t, "007", FormatPieceNumberWidth(7, 3))
	assert.Equal(t, "00000007", FormatPieceNumberWidth(7, 8))
}

func TestParsePieceNumber(t *testing.T) {
	seq, err := ParsePieceNumber("00042")
	require.NoError(t, err)
	assert.Equal(t, 42, seq)

	seq, err = ParsePieceNumber("123456")
	require.NoError(t, err)
	assert.Equal(t, 123456, seq)
}

func TestParsePieceNumber_Invalid(t *testing.T) {
	for _, s := range []string{"", "abc", "00-1", "+0001", "00000", " "} {
		_, err := ParsePieceNumber(s)
		assert.Error(t, err, "ParsePieceNumber(%q) should fail", s)
	}
}

func TestNextPieceNumber(t *testing.T) {
	assert.Equal(t, "00001", NextPieceNumber(0, PieceNumberWidth))
	assert.Equal(t, "00011", NextPieceNumber(10, PieceNumberWidth))
}

func TestRoundTrip(t *testing.T) {
	for _, seq := range []int{1, 9, 10, 999, 12345} {
		got, err := ParsePieceNumber(FormatPieceNumber(seq))
		require.NoError(t, err)
		assert.Equal(t, seq, got)
	}
}

func TestNew(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
