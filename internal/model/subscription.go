package model

// Plan is a pricing plan of an organization.
type Plan string

const (
	PlanStarter      Plan = "STARTER"
	PlanProfessional Plan = "PROFESSIONAL"
	PlanCabinet      Plan = "CABINET"
	PlanCustom       Plan = "CUSTOM"
)

// SubscriptionStatus is the billing state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionTrial    SubscriptionStatus = "TRIAL"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
)

// Subscription is the quota state of an organization.
type Subscription struct {
	OrganizationID string
	Plan           Plan
	Status         SubscriptionStatus
	// MaxTransactionsPerMonth overrides the plan limit when positive (negotiated CUSTOM plans).
	MaxTransactionsPerMonth int64
}
