package sqlstore

import (
	"strconv"
	"strings"
	"time"
)

// Dialect captures what differs between the SQL backends.
type Dialect struct {
	Name string
	// Positional rewrites "?" placeholders to "$1", "$2", ...
	Positional bool
	// LockSuffix is appended to the journal lookup to take a row lock ("FOR UPDATE").
	LockSuffix string
	// Schema is run statement by statement on Migrate. Every statement must be idempotent.
	Schema []string
	// IsUniqueViolation reports whether err is a unique-constraint failure.
	IsUniqueViolation func(err error) bool
	// DateValue and TimeValue convert Go times into driver arguments.
	DateValue func(t time.Time) any
	TimeValue func(t time.Time) any
}

func (d *Dialect) rebind(query string) string {
	if !d.Positional {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
