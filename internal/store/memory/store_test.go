package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/store"
	"github.com/cleared-dev/piecebook/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestClosedStore(t *testing.T) {
	s := New()
	assert.NoError(t, s.Close())

	ctx := context.Background()
	assert.ErrorIs(t, s.Ping(ctx), store.ErrClosed)
	_, err := s.GetTenant(ctx, "t1")
	assert.ErrorIs(t, err, store.ErrClosed)
	err = s.WithTx(ctx, func(context.Context, store.Tx) error { return nil })
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestWithTxCanceledContextDiscardsWork(t *testing.T) {
	s := New()
	f := storetest.Seed(t, s, "t1")
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cancel()
		return tx.AppendActivity(ctx, &model.ActivityLog{ID: "a1", TenantID: f.Tenant.ID, Type: model.ActivityPieceCreated})
	})
	assert.ErrorIs(t, err, context.Canceled)

	activity, err := s.ListActivity(context.Background(), f.Tenant.ID)
	assert.NoError(t, err)
	assert.Empty(t, activity)
}
