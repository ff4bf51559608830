package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/piecebook/internal/activity"
	"github.com/cleared-dev/piecebook/internal/id"
	"github.com/cleared-dev/piecebook/internal/metrics"
	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/quota"
	"github.com/cleared-dev/piecebook/internal/store"
)

// Actions reported to logs and metrics.
const (
	ActionPost   = "post"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const (
	defaultAllocationAttempts = 3
	defaultRetryInterval      = 10 * time.Millisecond
)

// Option configures a Service.
type Option func(*Service)

// WithGate sets the quota gate. The default allows everything.
func WithGate(g quota.Gate) Option {
	return func(s *Service) {
		if g != nil {
			s.gate = g
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the pipeline instruments.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBalanceTolerance overrides DefaultBalanceTolerance.
func WithBalanceTolerance(t decimal.Decimal) Option {
	return func(s *Service) {
		if t.IsPositive() {
			s.tolerance = t
		}
	}
}

// WithSequenceWidth sets the zero-padded width of piece numbers.
func WithSequenceWidth(w int) Option {
	return func(s *Service) {
		if w > 0 {
			s.width = w
		}
	}
}

// WithAllocationAttempts bounds how many times a post is retried after a
// piece-number collision.
func WithAllocationAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithRetryInterval sets the first backoff delay between allocation attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryInterval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service posts, updates and deletes pieces.
type Service struct {
	store         store.Store
	gate          quota.Gate
	recorder      *activity.Recorder
	metrics       *metrics.Pipeline
	logger        *zap.Logger
	tolerance     decimal.Decimal
	width         int
	attempts      int
	retryInterval time.Duration
	now           func() time.Time
}

// NewService creates a journal Service over st.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:         st,
		gate:          quota.Unlimited{},
		logger:        zap.NewNop(),
		tolerance:     DefaultBalanceTolerance,
		width:         id.PieceNumberWidth,
		attempts:      defaultAllocationAttempts,
		retryInterval: defaultRetryInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = activity.NewRecorder(s.now)
	return s
}

// Post validates a proposal and persists it as a new piece with the next
// number of its journal.
func (s *Service) Post(ctx context.Context, actor model.Actor, p Proposal) (*model.PieceWithLines, error) {
	start := s.now()
	out, err := s.post(ctx, actor, p)
	s.observe(ActionPost, actor, start, out, err)
	return out, err
}

func (s *Service) post(ctx context.Context, actor model.Actor, p Proposal) (*model.PieceWithLines, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if err := ValidateRequest(p); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	if err := ValidateBalance(p.Lines, s.tolerance); err != nil {
		return nil, err
	}
	amounts, err := ValidateLineAmounts(p.Lines)
	if err != nil {
		return nil, err
	}
	journal, err := s.scope(ctx, actor, p.JournalID, p.Date)
	if err != nil {
		return nil, err
	}

	latest, err := s.latestPiece(ctx, s.store, actor.TenantID, journal.ID)
	if err != nil {
		return nil, err
	}
	if err := ValidateChronology(p.Date, latest); err != nil {
		return nil, err
	}
	resolved, err := s.resolveLines(ctx, actor.TenantID, p.Lines, amounts)
	if err != nil {
		return nil, err
	}

	var out *model.PieceWithLines
	err = s.withAllocationRetry(ctx, journal.ID, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.LockJournal(ctx, actor.TenantID, journal.ID); err != nil {
			return journalErr(err)
		}
		// Authoritative check: the pre-filter above ran without the journal lock.
		latest, err := s.latestPiece(ctx, tx, actor.TenantID, journal.ID)
		if err != nil {
			return err
		}
		if err := ValidateChronology(p.Date, latest); err != nil {
			return err
		}
		maxSeq, err := tx.MaxPieceNumber(ctx, actor.TenantID, journal.ID)
		if err != nil {
			return fmt.Errorf("reading last piece number: %w", err)
		}

		now := s.now().UTC()
		piece := model.Piece{
			ID:          id.New(),
			TenantID:    actor.TenantID,
			JournalID:   journal.ID,
			PieceNumber: id.NextPieceNumber(maxSeq, s.width),
			Date:        model.TruncateDate(p.Date),
			Reference:   strings.TrimSpace(p.Reference),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertPiece(ctx, &piece); err != nil {
			return err
		}
		lines := bindLines(resolved, piece)
		if err := tx.InsertLines(ctx, lines); err != nil {
			return fmt.Errorf("inserting lines of piece %s: %w", piece.PieceNumber, err)
		}
		if _, err := s.recorder.RecordPiece(ctx, tx, actor, model.ActivityPieceCreated, piece); err != nil {
			return err
		}
		out = &model.PieceWithLines{Piece: piece, Lines: lines}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.incrementUsage(ctx, actor)
	return out, nil
}

// Update replaces the date, reference and complete line set of a piece. The
// piece keeps its identity, journal and number. An empty JournalID in p means
// the piece's own journal.
func (s *Service) Update(ctx context.Context, actor model.Actor, pieceID string, p Proposal) (*model.PieceWithLines, error) {
	start := s.now()
	out, err := s.update(ctx, actor, pieceID, p)
	s.observe(ActionUpdate, actor, start, out, err)
	return out, err
}

func (s *Service) update(ctx context.Context, actor model.Actor, pieceID string, p Proposal) (*model.PieceWithLines, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	existing, err := s.store.GetPiece(ctx, actor.TenantID, pieceID)
	if err != nil {
		return nil, pieceErr(err)
	}
	if p.JournalID == "" {
		p.JournalID = existing.JournalID
	}
	if err := ValidateRequest(p); err != nil {
		return nil, err
	}
	if p.JournalID != existing.JournalID {
		return nil, ValidationError{Field: "journalId", Message: "a piece cannot move to another journal"}
	}
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	if err := ValidateBalance(p.Lines, s.tolerance); err != nil {
		return nil, err
	}
	amounts, err := ValidateLineAmounts(p.Lines)
	if err != nil {
		return nil, err
	}
	journal, err := s.scope(ctx, actor, p.JournalID, p.Date)
	if err != nil {
		return nil, err
	}

	siblings, err := s.store.ListPieces(ctx, actor.TenantID, journal.ID)
	if err != nil {
		return nil, fmt.Errorf("listing pieces: %w", err)
	}
	if err := ValidateUpdateChronology(p.Date, existing.PieceNumber, siblings); err != nil {
		return nil, err
	}
	resolved, err := s.resolveLines(ctx, actor.TenantID, p.Lines, amounts)
	if err != nil {
		return nil, err
	}

	var out *model.PieceWithLines
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.LockJournal(ctx, actor.TenantID, journal.ID); err != nil {
			return journalErr(err)
		}
		piece, err := tx.GetPiece(ctx, actor.TenantID, pieceID)
		if err != nil {
			return pieceErr(err)
		}
		siblings, err := tx.ListPieces(ctx, actor.TenantID, journal.ID)
		if err != nil {
			return fmt.Errorf("listing pieces: %w", err)
		}
		if err := ValidateUpdateChronology(p.Date, piece.PieceNumber, siblings); err != nil {
			return err
		}

		piece.Date = model.TruncateDate(p.Date)
		piece.Reference = strings.TrimSpace(p.Reference)
		piece.UpdatedAt = s.now().UTC()
		if err := tx.DeleteLines(ctx, actor.TenantID, piece.ID); err != nil {
			return fmt.Errorf("removing lines of piece %s: %w", piece.PieceNumber, err)
		}
		if err := tx.UpdatePiece(ctx, piece); err != nil {
			return pieceErr(err)
		}
		lines := bindLines(resolved, *piece)
		if err := tx.InsertLines(ctx, lines); err != nil {
			return fmt.Errorf("inserting lines of piece %s: %w", piece.PieceNumber, err)
		}
		if _, err := s.recorder.RecordPiece(ctx, tx, actor, model.ActivityPieceUpdated, *piece); err != nil {
			return err
		}
		out = &model.PieceWithLines{Piece: *piece, Lines: lines}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a piece and its lines. The journal's later pieces keep their numbers.
func (s *Service) Delete(ctx context.Context, actor model.Actor, pieceID string) error {
	start := s.now()
	var deleted *model.PieceWithLines
	err := s.delete(ctx, actor, pieceID, &deleted)
	s.observe(ActionDelete, actor, start, deleted, err)
	return err
}

func (s *Service) delete(ctx context.Context, actor model.Actor, pieceID string, deleted **model.PieceWithLines) error {
	if err := checkActor(actor); err != nil {
		return err
	}
	existing, err := s.store.GetPiece(ctx, actor.TenantID, pieceID)
	if err != nil {
		return pieceErr(err)
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.LockJournal(ctx, actor.TenantID, existing.JournalID); err != nil {
			return journalErr(err)
		}
		piece, err := tx.GetPiece(ctx, actor.TenantID, pieceID)
		if err != nil {
			return pieceErr(err)
		}
		if err := tx.DeletePiece(ctx, actor.TenantID, piece.ID); err != nil {
			return pieceErr(err)
		}
		if _, err := s.recorder.RecordPiece(ctx, tx, actor, model.ActivityPieceDeleted, *piece); err != nil {
			return err
		}
		*deleted = &model.PieceWithLines{Piece: *piece}
		return nil
	})
}

// GetPiece returns a piece with its lines.
func (s *Service) GetPiece(ctx context.Context, actor model.Actor, pieceID string) (*model.PieceWithLines, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	piece, err := s.store.GetPiece(ctx, actor.TenantID, pieceID)
	if err != nil {
		return nil, pieceErr(err)
	}
	lines, err := s.store.ListLines(ctx, actor.TenantID, pieceID)
	if err != nil {
		return nil, pieceErr(err)
	}
	return &model.PieceWithLines{Piece: *piece, Lines: lines}, nil
}

// ListPieces returns a journal's pieces in number order.
func (s *Service) ListPieces(ctx context.Context, actor model.Actor, journalID string) ([]model.Piece, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if _, err := s.store.GetJournal(ctx, actor.TenantID, journalID); err != nil {
		return nil, journalErr(err)
	}
	return s.store.ListPieces(ctx, actor.TenantID, journalID)
}

// ListActivity returns the tenant's audit trail, oldest first.
func (s *Service) ListActivity(ctx context.Context, actor model.Actor) ([]model.ActivityLog, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.store.ListActivity(ctx, actor.TenantID)
}

func checkActor(actor model.Actor) error {
	switch {
	case strings.TrimSpace(actor.ActorID) == "":
		return UnauthorizedError{Reason: "missing actor"}
	case strings.TrimSpace(actor.TenantID) == "":
		return UnauthorizedError{Reason: "missing tenant scope"}
	}
	return nil
}

// authorize consults the quota gate. Actors without an organization are not metered.
func (s *Service) authorize(ctx context.Context, actor model.Actor) error {
	if actor.OrganizationID == "" {
		return nil
	}
	d, err := s.gate.CanPerformAction(ctx, actor.OrganizationID, quota.ActionCreateTransaction)
	if err != nil {
		return fmt.Errorf("checking quota: %w", err)
	}
	if !d.Allowed {
		return QuotaExceededError{Reason: d.Reason, UpgradeRequired: d.UpgradeRequired}
	}
	return nil
}

// incrementUsage runs after commit; a failure cannot undo the piece and is only logged.
func (s *Service) incrementUsage(ctx context.Context, actor model.Actor) {
	if actor.OrganizationID == "" {
		return
	}
	if err := s.gate.IncrementUsage(ctx, actor.OrganizationID, quota.MetricTransaction); err != nil {
		s.logger.Error("usage increment failed",
			zap.String("organization", actor.OrganizationID), zap.Error(err))
	}
}

// scope resolves the tenant and journal and checks the date against the fiscal year.
func (s *Service) scope(ctx context.Context, actor model.Actor, journalID string, date time.Time) (*model.Journal, error) {
	tenant, err := s.store.GetTenant(ctx, actor.TenantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, UnauthorizedError{Reason: "unknown tenant " + actor.TenantID}
	}
	if err != nil {
		return nil, fmt.Errorf("loading tenant: %w", err)
	}
	journal, err := s.store.GetJournal(ctx, actor.TenantID, journalID)
	if err != nil {
		return nil, journalErr(err)
	}
	if err := ValidateFiscalPeriod(tenant, date); err != nil {
		return nil, err
	}
	return journal, nil
}

func (s *Service) latestPiece(ctx context.Context, r store.Reader, tenantID, journalID string) (*model.Piece, error) {
	latest, err := r.LatestPiece(ctx, tenantID, journalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading latest piece: %w", err)
	}
	return latest, nil
}

// resolveLines checks accounts and auxiliaries and returns unbound lines.
func (s *Service) resolveLines(ctx context.Context, tenantID string, in []LineInput, amounts []model.Amount) ([]model.Line, error) {
	out := make([]model.Line, len(in))
	for i, l := range in {
		acct, err := ValidateAuxiliaryRequirement(ctx, s.store, tenantID, l)
		if err != nil {
			return nil, err
		}
		auxID := strings.TrimSpace(l.AuxiliaryID)
		if auxID != "" {
			if _, err := s.store.GetAuxiliary(ctx, tenantID, auxID); errors.Is(err, store.ErrNotFound) {
				return nil, ValidationError{Field: fmt.Sprintf("lines[%d].auxiliaryId", i), Message: "auxiliary " + auxID + " not found"}
			} else if err != nil {
				return nil, fmt.Errorf("looking up auxiliary %s: %w", auxID, err)
			}
		}
		out[i] = model.Line{
			TenantID:     tenantID,
			LineNumber:   l.LineNumber,
			AccountID:    acct.ID,
			AccountCode:  acct.Code,
			AuxiliaryID:  auxID,
			CostCenterID: strings.TrimSpace(l.CostCenterID),
			Label:        strings.TrimSpace(l.Label),
			Amount:       amounts[i],
			FiscalTags:   l.FiscalTags,
		}
	}
	return out, nil
}

// bindLines attaches resolved lines to piece with fresh IDs.
func bindLines(resolved []model.Line, piece model.Piece) []model.Line {
	lines := make([]model.Line, len(resolved))
	for i, l := range resolved {
		l.ID = id.New()
		l.PieceID = piece.ID
		l.TenantID = piece.TenantID
		lines[i] = l
	}
	return lines
}

// withAllocationRetry runs fn as one unit of work, retrying only when the
// allocated piece number collided with a concurrent commit.
func (s *Service) withAllocationRetry(ctx context.Context, journalID string, fn func(ctx context.Context, tx store.Tx) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval
	b.MaxInterval = 20 * s.retryInterval

	attempts := 0
	var conflict error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := s.store.WithTx(ctx, fn)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, store.ErrDuplicatePieceNumber):
			conflict = err
			s.metrics.Conflict()
			s.logger.Debug("piece number collision, retrying",
				zap.String("journal", journalID), zap.Int("attempt", attempts))
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(s.attempts)))
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	if errors.Is(err, store.ErrDuplicatePieceNumber) {
		return PersistenceConflictError{JournalID: journalID, Attempts: attempts, Err: conflict}
	}
	return err
}

func (s *Service) observe(action string, actor model.Actor, start time.Time, out *model.PieceWithLines, err error) {
	elapsed := s.now().Sub(start)
	if err != nil {
		kind := Kind(err)
		s.metrics.Rejected(action, kind, elapsed)
		level := s.logger.Warn
		if kind == KindInternal {
			level = s.logger.Error
		}
		level("piece "+action+" rejected",
			zap.String("tenant", actor.TenantID), zap.String("kind", kind), zap.Error(err))
		return
	}
	s.metrics.Committed(action, elapsed)
	fields := []zap.Field{zap.String("tenant", actor.TenantID), zap.String("actor", actor.ActorID)}
	if out != nil {
		fields = append(fields,
			zap.String("journal", out.JournalID),
			zap.String("piece", out.PieceNumber),
			zap.String("piece_id", out.ID))
	}
	s.logger.Info("piece "+action+" committed", fields...)
}

func journalErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrJournalNotFound
	}
	return err
}

func pieceErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrPieceNotFound
	}
	return err
}
