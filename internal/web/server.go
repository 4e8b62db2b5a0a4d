// Package web serves the JSON API behind the single-page chat widget.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"nambo/internal/completion"
	"nambo/internal/domain"
	"nambo/internal/session"
)

const (
	maxRequestBodyBytes = 64 << 10
	readHeaderTimeout   = 10 * time.Second
	shutdownTimeout     = 10 * time.Second
)

type Server struct {
	sessions *session.Registry
	log      *slog.Logger
	newID    func() string
}

type createSessionResponse struct {
	ID string `json:"id"`
}

type submitTurnRequest struct {
	Text string `json:"text"`
}

type sessionResponse struct {
	Summary string            `json:"summary"`
	Busy    bool              `json:"busy"`
	History []domain.Exchange `json:"history"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(sessions *session.Registry, log *slog.Logger) *Server {
	return &Server{
		sessions: sessions,
		log:      log,
		newID:    uuid.NewString,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/turns", s.handleSubmitTurn)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.handleReset)

	return mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.newID()
	s.sessions.Get(id)

	s.log.DebugContext(r.Context(), "Session is created",
		"sessionID", id)

	s.writeJSON(r.Context(), w, http.StatusCreated, createSessionResponse{ID: id})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	controller, ok := s.lookup(w, r)
	if !ok {
		return
	}

	s.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{
		Summary: controller.Summary(),
		Busy:    controller.Busy(),
		History: controller.History(),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if !s.sessions.Remove(id) {
		s.writeError(r.Context(), w, http.StatusNotFound, "session not found")
		return
	}

	s.log.DebugContext(r.Context(), "Session is deleted",
		"sessionID", id)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	controller, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req submitTurnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		s.writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	exchange, err := controller.Submit(ctx, req.Text)
	switch {
	case err == nil:
		s.writeJSON(ctx, w, http.StatusOK, exchange)
	case errors.Is(err, session.ErrEmptyInput):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, session.ErrBusy):
		s.writeError(ctx, w, http.StatusConflict, "session is busy")
	case errors.Is(err, session.ErrDiscarded):
		s.writeError(ctx, w, http.StatusConflict, "session was reset")
	case completion.IsUpstream(err):
		s.log.ErrorContext(ctx, "Failed to complete turn",
			"error", err,
			"sessionID", r.PathValue("id"))

		s.writeError(ctx, w, http.StatusBadGateway, "completion service failed, please retry")
	default:
		s.log.ErrorContext(ctx, "Failed to submit turn",
			"error", err,
			"sessionID", r.PathValue("id"))

		s.writeError(ctx, w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	controller, ok := s.lookup(w, r)
	if !ok {
		return
	}

	controller.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	id := r.PathValue("id")

	controller, ok := s.sessions.Lookup(id)
	if !ok {
		s.writeError(r.Context(), w, http.StatusNotFound, "session not found")
		return nil, false
	}

	return controller, true
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	s.writeJSON(ctx, w, status, errorResponse{Error: message})
}

func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WarnContext(ctx, "Failed to write response",
			"error", err,
			"status", status)
	}
}
