package id

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// PieceNumberWidth is the default zero-padded width of piece numbers.
const PieceNumberWidth = 5

// New returns a new time-ordered entity ID.
func New() string {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return u.String()
}

// FormatPieceNumber returns a piece number like "00042".
func FormatPieceNumber(seq int) string {
	return FormatPieceNumberWidth(seq, PieceNumberWidth)
}

// FormatPieceNumberWidth zero-pads seq to width digits. Wider sequences are not truncated.
func FormatPieceNumberWidth(seq, width int) string {
	return fmt.Sprintf("%0*d", width, seq)
}

// ParsePieceNumber parses "00042" into 42.
func ParsePieceNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("invalid piece number: empty")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid piece number %q: not a decimal string", s)
		}
	}
	seq, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid piece number %q: %w", s, err)
	}
	if seq <= 0 {
		return 0, fmt.Errorf("invalid piece number %q: must be positive", s)
	}
	return seq, nil
}

// NextPieceNumber returns the number following maxSeq (0 when the journal is empty).
func NextPieceNumber(maxSeq, width int) string {
	return FormatPieceNumberWidth(maxSeq+1, width)
}
