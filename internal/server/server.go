// Package server exposes the posting pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cleared-dev/piecebook/internal/buildinfo"
	"github.com/cleared-dev/piecebook/internal/journal"
	"github.com/cleared-dev/piecebook/internal/metrics"
	"github.com/cleared-dev/piecebook/internal/model"
)

// Headers carrying the caller identity. They are set by the authenticating
// proxy in front of the API and trusted as-is.
const (
	HeaderActorID        = "X-Actor-ID"
	HeaderTenantID       = "X-Tenant-ID"
	HeaderOrganizationID = "X-Organization-ID"
)

const maxBodyBytes = 1 << 20

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server routes HTTP requests to a journal.Service.
type Server struct {
	svc     *journal.Service
	health  Pinger
	metrics *metrics.Pipeline
	logger  *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics mounts the pipeline's registry at /metrics.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth makes /healthz ping p.
func WithHealth(p Pinger) Option {
	return func(s *Server) { s.health = p }
}

// New creates a Server over svc.
func New(svc *journal.Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.healthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/journals/{journalID}/pieces", func(r chi.Router) {
			r.Post("/", s.postPiece)
			r.Get("/", s.listPieces)
		})
		r.Route("/pieces/{pieceID}", func(r chi.Router) {
			r.Get("/", s.getPiece)
			r.Put("/", s.updatePiece)
			r.Delete("/", s.deletePiece)
		})
		r.Get("/activity", s.listActivity)
	})
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then drains for up to
// five seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func actorFrom(r *http.Request) model.Actor {
	return model.Actor{
		ActorID:        r.Header.Get(HeaderActorID),
		TenantID:       r.Header.Get(HeaderTenantID),
		OrganizationID: r.Header.Get(HeaderOrganizationID),
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

func (s *Server) postPiece(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProposal(w, r, chi.URLParam(r, "journalID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.svc.Post(r.Context(), actorFrom(r), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/pieces/"+out.ID)
	writeJSON(w, http.StatusCreated, newPieceResponse(out.Piece, out.Lines))
}

func (s *Server) listPieces(w http.ResponseWriter, r *http.Request) {
	pieces, err := s.svc.ListPieces(r.Context(), actorFrom(r), chi.URLParam(r, "journalID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]pieceResponse, 0, len(pieces))
	for _, p := range pieces {
		items = append(items, newPieceResponse(p, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) getPiece(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.GetPiece(r.Context(), actorFrom(r), chi.URLParam(r, "pieceID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPieceResponse(out.Piece, out.Lines))
}

func (s *Server) updatePiece(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProposal(w, r, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.svc.Update(r.Context(), actorFrom(r), chi.URLParam(r, "pieceID"), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPieceResponse(out.Piece, out.Lines))
}

func (s *Server) deletePiece(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "pieceID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.ListActivity(r.Context(), actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]activityResponse, 0, len(entries))
	for _, a := range entries {
		items = append(items, newActivityResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func decodeProposal(w http.ResponseWriter, r *http.Request, journalID string) (journal.Proposal, error) {
	var req pieceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return journal.Proposal{}, journal.ValidationError{Message: "invalid JSON body: " + err.Error()}
	}
	return req.proposal(journalID)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
