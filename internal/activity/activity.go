// Package activity records the immutable audit trail of piece mutations.
package activity

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cleared-dev/piecebook/internal/id"
	"github.com/cleared-dev/piecebook/internal/model"
)

// Header is the CSV header of an activity export.
const Header = "created_at,type,description,actor_id,entity_type,entity_id"

const (
	numFields     = 6
	colCreatedAt  = 0
	colType       = 1
	colDesc       = 2
	colActorID    = 3
	colEntityType = 4
	colEntityID   = 5
)

// Appender persists one activity record. store.Tx satisfies it, so the record
// commits or rolls back with the mutation it describes.
type Appender interface {
	AppendActivity(ctx context.Context, a *model.ActivityLog) error
}

// Recorder builds and appends activity records.
type Recorder struct {
	now func() time.Time
}

// NewRecorder returns a Recorder stamping records with now (time.Now when nil).
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// RecordPiece appends one record for a mutation of p by actor.
func (r *Recorder) RecordPiece(ctx context.Context, dst Appender, actor model.Actor, typ model.ActivityType, p model.Piece) (*model.ActivityLog, error) {
	entry := &model.ActivityLog{
		ID:          id.New(),
		TenantID:    actor.TenantID,
		Type:        typ,
		Description: Describe(typ, p.PieceNumber),
		ActorID:     actor.ActorID,
		EntityType:  model.EntityPiece,
		EntityID:    p.ID,
		CreatedAt:   r.now().UTC(),
	}
	if err := dst.AppendActivity(ctx, entry); err != nil {
		return nil, fmt.Errorf("recording %s: %w", typ, err)
	}
	return entry, nil
}

// Describe returns the human-readable description of a piece mutation.
func Describe(typ model.ActivityType, pieceNumber string) string {
	switch typ {
	case model.ActivityPieceCreated:
		return "Created piece " + pieceNumber
	case model.ActivityPieceUpdated:
		return "Updated piece " + pieceNumber
	case model.ActivityPieceDeleted:
		return "Deleted piece " + pieceNumber
	}
	return string(typ) + " " + pieceNumber
}

// MarshalEntry converts an activity record to a CSV row.
func MarshalEntry(a model.ActivityLog) []string {
	row := make([]string, numFields)
	row[colCreatedAt] = a.CreatedAt.UTC().Format(time.RFC3339)
	row[colType] = string(a.Type)
	row[colDesc] = a.Description
	row[colActorID] = a.ActorID
	row[colEntityType] = a.EntityType
	row[colEntityID] = a.EntityID
	return row
}

// WriteCSV writes a header and one row per record.
func WriteCSV(w io.Writer, entries []model.ActivityLog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
