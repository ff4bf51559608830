package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/store/memory"
)

var january = func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) }

func newGate(t *testing.T, sub *model.Subscription) (*PlanGate, *memory.Store) {
	t.Helper()
	st := memory.New()
	if sub != nil {
		require.NoError(t, st.PutSubscription(context.Background(), sub))
	}
	return NewPlanGate(st, WithClock(january)), st
}

func TestCanPerformAction_NoSubscription(t *testing.T) {
	g, _ := newGate(t, nil)
	d, err := g.CanPerformAction(context.Background(), "org-1", ActionCreateTransaction)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "No active subscription", d.Reason)
	assert.False(t, d.UpgradeRequired)
}

func TestCanPerformAction_InactiveStatus(t *testing.T) {
	for _, status := range []model.SubscriptionStatus{model.SubscriptionPastDue, model.SubscriptionCanceled} {
		t.Run(string(status), func(t *testing.T) {
			g, _ := newGate(t, &model.Subscription{OrganizationID: "org-1", Plan: model.PlanStarter, Status: status})
			d, err := g.CanPerformAction(context.Background(), "org-1", ActionCreateTransaction)
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Contains(t, d.Reason, "not active")
		})
	}
}

func TestCanPerformAction_LimitReached(t *testing.T) {
	ctx := context.Background()
	g, st := newGate(t, &model.Subscription{OrganizationID: "org-1", Plan: model.PlanStarter,
		Status: model.SubscriptionTrial, MaxTransactionsPerMonth: 2})

	for range 2 {
		d, err := g.CanPerformAction(ctx, "org-1", ActionCreateTransaction)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.NoError(t, g.IncrementUsage(ctx, "org-1", MetricTransaction))
	}

	d, err := g.CanPerformAction(ctx, "org-1", ActionCreateTransaction)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.UpgradeRequired)
	assert.Equal(t, "You have reached the limit of 2 transactions this month.", d.Reason)

	used, err := st.Usage(ctx, "org-1", MetricTransaction, "2026-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), used)
}

func TestCanPerformAction_PlanDefaultLimit(t *testing.T) {
	ctx := context.Background()
	g, st := newGate(t, &model.Subscription{OrganizationID: "org-1", Plan: model.PlanStarter, Status: model.SubscriptionActive})
	for range 200 {
		require.NoError(t, st.IncrementUsage(ctx, "org-1", MetricTransaction, "2026-01"))
	}
	// Usage of other organizations does not count.
	require.NoError(t, st.IncrementUsage(ctx, "org-2", MetricTransaction, "2026-01"))

	d, err := g.CanPerformAction(ctx, "org-1", ActionCreateTransaction)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	g.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }
	d, err = g.CanPerformAction(ctx, "org-1", ActionCreateTransaction)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestPlanLimit(t *testing.T) {
	assert.Equal(t, int64(200), PlanLimit(model.PlanStarter))
	assert.Equal(t, int64(1000), PlanLimit(model.PlanProfessional))
	assert.Equal(t, int64(999999), PlanLimit(model.PlanCabinet))
	assert.Zero(t, PlanLimit("GOLD"))
}

func TestUnlimited(t *testing.T) {
	var g Gate = Unlimited{}
	d, err := g.CanPerformAction(context.Background(), "", ActionCreateTransaction)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.NoError(t, g.IncrementUsage(context.Background(), "", MetricTransaction))
}
