package server

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/piecebook/internal/journal"
	"github.com/cleared-dev/piecebook/internal/model"
)

type lineRequest struct {
	LineNumber   int              `json:"lineNumber"`
	AccountCode  string           `json:"accountCode"`
	AuxiliaryID  string           `json:"auxiliaryId,omitempty"`
	CostCenterID string           `json:"costCenterId,omitempty"`
	Label        string           `json:"label,omitempty"`
	Debit        *decimal.Decimal `json:"debit,omitempty"`
	Credit       *decimal.Decimal `json:"credit,omitempty"`
	FiscalTags   model.FiscalTags `json:"fiscalTags"`
}

type pieceRequest struct {
	JournalID string        `json:"journalId,omitempty"`
	Date      string        `json:"date"`
	Reference string        `json:"reference,omitempty"`
	Lines     []lineRequest `json:"lines"`
}

// proposal converts the request body. journalID overrides the body's journal
// when the route carries one.
func (req pieceRequest) proposal(journalID string) (journal.Proposal, error) {
	p := journal.Proposal{JournalID: req.JournalID, Reference: req.Reference}
	if journalID != "" {
		p.JournalID = journalID
	}
	if req.Date != "" {
		d, err := model.ParseDate(req.Date)
		if err != nil {
			return journal.Proposal{}, journal.ValidationError{Field: "date", Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", req.Date)}
		}
		p.Date = d
	}
	for _, l := range req.Lines {
		in := journal.LineInput{
			LineNumber:   l.LineNumber,
			AccountCode:  l.AccountCode,
			AuxiliaryID:  l.AuxiliaryID,
			CostCenterID: l.CostCenterID,
			Label:        l.Label,
			FiscalTags:   l.FiscalTags,
		}
		if l.Debit != nil {
			in.Debit = *l.Debit
		}
		if l.Credit != nil {
			in.Credit = *l.Credit
		}
		p.Lines = append(p.Lines, in)
	}
	return p, nil
}

type lineResponse struct {
	ID           string           `json:"id"`
	LineNumber   int              `json:"lineNumber"`
	AccountCode  string           `json:"accountCode"`
	AuxiliaryID  string           `json:"auxiliaryId,omitempty"`
	CostCenterID string           `json:"costCenterId,omitempty"`
	Label        string           `json:"label,omitempty"`
	Debit        decimal.Decimal  `json:"debit"`
	Credit       decimal.Decimal  `json:"credit"`
	FiscalTags   model.FiscalTags `json:"fiscalTags"`
}

type pieceResponse struct {
	ID          string         `json:"id"`
	JournalID   string         `json:"journalId"`
	PieceNumber string         `json:"pieceNumber"`
	Date        string         `json:"date"`
	Reference   string         `json:"reference,omitempty"`
	CreatedAt   string         `json:"createdAt"`
	UpdatedAt   string         `json:"updatedAt"`
	Lines       []lineResponse `json:"lines,omitempty"`
}

const timestampLayout = "2006-01-02T15:04:05Z07:00"

func newPieceResponse(p model.Piece, lines []model.Line) pieceResponse {
	resp := pieceResponse{
		ID:          p.ID,
		JournalID:   p.JournalID,
		PieceNumber: p.PieceNumber,
		Date:        p.DateString(),
		Reference:   p.Reference,
		CreatedAt:   p.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:   p.UpdatedAt.UTC().Format(timestampLayout),
	}
	for _, l := range lines {
		debit, credit := l.Amount.Columns()
		resp.Lines = append(resp.Lines, lineResponse{
			ID:           l.ID,
			LineNumber:   l.LineNumber,
			AccountCode:  l.AccountCode,
			AuxiliaryID:  l.AuxiliaryID,
			CostCenterID: l.CostCenterID,
			Label:        l.Label,
			Debit:        debit,
			Credit:       credit,
			FiscalTags:   l.FiscalTags,
		})
	}
	return resp
}

type activityResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	ActorID     string `json:"actorId"`
	EntityType  string `json:"entityType"`
	EntityID    string `json:"entityId"`
	CreatedAt   string `json:"createdAt"`
}

func newActivityResponse(a model.ActivityLog) activityResponse {
	return activityResponse{
		ID:          a.ID,
		Type:        string(a.Type),
		Description: a.Description,
		ActorID:     a.ActorID,
		EntityType:  a.EntityType,
		EntityID:    a.EntityID,
		CreatedAt:   a.CreatedAt.UTC().Format(timestampLayout),
	}
}
