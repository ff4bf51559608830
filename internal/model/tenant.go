package model

import "time"

// Tenant is one bookkeeping entity (company and fiscal year).
type Tenant struct {
	ID             string
	OrganizationID string
	CompanyName    string
	FiscalYear     int
	StartDate      time.Time
	EndDate        time.Time
	Currency       string
}

// InFiscalYear reports whether d falls within [StartDate, EndDate].
func (t Tenant) InFiscalYear(d time.Time) bool {
	d = TruncateDate(d)
	return !d.Before(TruncateDate(t.StartDate)) && !d.After(TruncateDate(t.EndDate))
}

// Actor is the authenticated caller, supplied by the auth subsystem and trusted as-is.
type Actor struct {
	ActorID        string
	TenantID       string
	OrganizationID string
}

// ActivityType is the kind of mutation an activity record describes.
type ActivityType string

const (
	ActivityPieceCreated ActivityType = "PIECE_CREATED"
	ActivityPieceUpdated ActivityType = "PIECE_UPDATED"
	ActivityPieceDeleted ActivityType = "PIECE_DELETED"
)

// EntityPiece is the entity type recorded for piece mutations.
const EntityPiece = "PIECE"

// ActivityLog is an append-only audit record. It is never updated or deleted.
type ActivityLog struct {
	ID          string
	TenantID    string
	Type        ActivityType
	Description string
	ActorID     string
	EntityType  string
	EntityID    string
	CreatedAt   time.Time
}
