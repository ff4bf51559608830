// Package quota decides whether an organization's subscription allows an
// action and records usage against the monthly limits.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/store"
)

// Actions and metrics understood by the gates.
const (
	ActionCreateTransaction = "CREATE_TRANSACTION"
	MetricTransaction       = "TRANSACTION"
)

// periodLayout keys usage counters by calendar month.
const periodLayout = "2006-01"

// Decision is the answer to CanPerformAction.
type Decision struct {
	Allowed         bool
	Reason          string
	UpgradeRequired bool
}

// Gate authorizes actions against subscription limits and records usage.
type Gate interface {
	CanPerformAction(ctx context.Context, organizationID, action string) (Decision, error)
	IncrementUsage(ctx context.Context, organizationID, metric string) error
}

// Unlimited allows everything and records nothing.
type Unlimited struct{}

func (Unlimited) CanPerformAction(context.Context, string, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

func (Unlimited) IncrementUsage(context.Context, string, string) error { return nil }

// PlanLimit returns the monthly transaction limit of a plan, 0 for unknown plans.
func PlanLimit(plan model.Plan) int64 {
	switch plan {
	case model.PlanStarter:
		return 200
	case model.PlanProfessional:
		return 1000
	case model.PlanCabinet, model.PlanCustom:
		return 999999
	}
	return 0
}

// Option configures a PlanGate.
type Option func(*PlanGate)

// WithLogger sets the gate's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *PlanGate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock replaces time.Now when computing the usage period.
func WithClock(now func() time.Time) Option {
	return func(g *PlanGate) {
		if now != nil {
			g.now = now
		}
	}
}

// PlanGate enforces plan limits stored in a store.Subscriptions.
type PlanGate struct {
	subs   store.Subscriptions
	logger *zap.Logger
	now    func() time.Time
}

// NewPlanGate returns a gate reading subscriptions and usage from subs.
func NewPlanGate(subs store.Subscriptions, opts ...Option) *PlanGate {
	g := &PlanGate{subs: subs, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *PlanGate) period() string {
	return g.now().UTC().Format(periodLayout)
}

// CanPerformAction checks the subscription status and, for transactions, the
// current month's usage against the plan limit.
func (g *PlanGate) CanPerformAction(ctx context.Context, organizationID, action string) (Decision, error) {
	sub, err := g.subs.GetSubscription(ctx, organizationID)
	if errors.Is(err, store.ErrNotFound) {
		return Decision{Reason: "No active subscription"}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("loading subscription %s: %w", organizationID, err)
	}

	if sub.Status != model.SubscriptionActive && sub.Status != model.SubscriptionTrial {
		return Decision{Reason: "Subscription is not active. Please update your payment method."}, nil
	}

	if action != ActionCreateTransaction {
		return Decision{Allowed: true}, nil
	}

	limit := sub.MaxTransactionsPerMonth
	if limit <= 0 {
		limit = PlanLimit(sub.Plan)
	}
	if limit <= 0 {
		return Decision{Reason: "Subscription limits not configured"}, nil
	}

	used, err := g.subs.Usage(ctx, organizationID, MetricTransaction, g.period())
	if err != nil {
		return Decision{}, fmt.Errorf("loading usage %s: %w", organizationID, err)
	}
	if used >= limit {
		g.logger.Info("transaction limit reached",
			zap.String("organization", organizationID), zap.Int64("used", used), zap.Int64("limit", limit))
		return Decision{
			Reason:          fmt.Sprintf("You have reached the limit of %d transactions this month.", limit),
			UpgradeRequired: true,
		}, nil
	}
	return Decision{Allowed: true}, nil
}

// IncrementUsage adds one to the metric's counter for the current month.
func (g *PlanGate) IncrementUsage(ctx context.Context, organizationID, metric string) error {
	if err := g.subs.IncrementUsage(ctx, organizationID, metric, g.period()); err != nil {
		return fmt.Errorf("incrementing %s usage for %s: %w", metric, organizationID, err)
	}
	return nil
}
