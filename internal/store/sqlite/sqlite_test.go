package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/piecebook/internal/store"
	"github.com/cleared-dev/piecebook/internal/store/storetest"
)

func openTemp(t *testing.T) store.Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "piecebook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, openTemp)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTemp(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestDSN(t *testing.T) {
	got := dsn("/tmp/books.db")
	assert.Contains(t, got, "file:/tmp/books.db?")
	assert.Contains(t, got, "_txlock=immediate")
	assert.Contains(t, got, "_pragma=foreign_keys%281%29")
}
