package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cleared-dev/piecebook/internal/journal"
	"github.com/cleared-dev/piecebook/internal/model"
)

type errorResponse struct {
	Error   string         `json:"error"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details,omitempty"`
}

func statusFor(kind string) int {
	switch kind {
	case journal.KindValidation, journal.KindLineAmount:
		return http.StatusBadRequest
	case journal.KindUnauthorized:
		return http.StatusUnauthorized
	case journal.KindQuotaExceeded:
		return http.StatusPaymentRequired
	case journal.KindPieceNotFound, journal.KindJournalNotFound:
		return http.StatusNotFound
	case journal.KindChronology, journal.KindPersistenceConflict:
		return http.StatusConflict
	case journal.KindUnbalancedEntry, journal.KindAccountNotFound, journal.KindMissingAuxiliary:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// details exposes the structured fields of a rejection.
func details(err error) map[string]any {
	var (
		validation journal.ValidationError
		unbalanced journal.UnbalancedEntryError
		lineAmount journal.LineAmountError
		account    journal.AccountNotFoundError
		missingAux journal.MissingAuxiliaryError
		chrono     journal.ChronologyViolationError
		quota      journal.QuotaExceededError
		conflict   journal.PersistenceConflictError
	)
	switch {
	case errors.As(err, &validation):
		return map[string]any{"field": validation.Field}
	case errors.As(err, &unbalanced):
		return map[string]any{
			"totalDebit":  unbalanced.TotalDebit.String(),
			"totalCredit": unbalanced.TotalCredit.String(),
			"difference":  unbalanced.Difference.String(),
		}
	case errors.As(err, &lineAmount):
		return map[string]any{"lineNumber": lineAmount.LineNumber}
	case errors.As(err, &account):
		return map[string]any{"lineNumber": account.LineNumber, "accountCode": account.AccountCode}
	case errors.As(err, &missingAux):
		return map[string]any{"lineNumber": missingAux.LineNumber, "accountCode": missingAux.AccountCode}
	case errors.As(err, &chrono):
		return map[string]any{
			"date":              chrono.Date.Format(model.DateLayout),
			"conflictingNumber": chrono.ConflictingNumber,
			"conflictingDate":   chrono.ConflictingDate.Format(model.DateLayout),
		}
	case errors.As(err, &quota):
		return map[string]any{"upgradeRequired": quota.UpgradeRequired}
	case errors.As(err, &conflict):
		return map[string]any{"journalId": conflict.JournalID, "attempts": conflict.Attempts}
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := journal.Kind(err)
	status := statusFor(kind)
	body := errorResponse{Error: err.Error(), Kind: kind, Details: details(err)}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
