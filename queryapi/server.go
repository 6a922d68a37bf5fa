// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queryapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bureau-foundation/catchup/lib/netutil"
	"github.com/bureau-foundation/catchup/lib/ref"
	"github.com/bureau-foundation/catchup/monitor"
	"github.com/bureau-foundation/catchup/readstate"
	"github.com/bureau-foundation/catchup/timeline"
)

// Backend answers the queries. *monitor.Monitor implements it.
type Backend interface {
	ScanWindow(ctx context.Context, room ref.RoomID, spec monitor.WindowSpec) monitor.WindowReport
	ReadPosition(ctx context.Context, room ref.RoomID, user ref.UserID) (*readstate.Position, error)
	UnreadBetween(ctx context.Context, room ref.RoomID, from ref.EventID, mode timeline.Mode) (*timeline.Tally, error)
	OptIn(ctx context.Context, feature string, user ref.UserID) error
	OptOut(ctx context.Context, feature string, user ref.UserID) error
}

var _ Backend = (*monitor.Monitor)(nil)

// Server routes HTTP requests to a Backend.
type Server struct {
	backend Backend
	logger  *slog.Logger
	router  chi.Router
}

// New creates a Server. A nil logger discards request logs.
func New(backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{backend: backend, logger: logger}

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)
	router.Use(s.logRequests)

	router.Get("/healthz", s.health)
	router.Route("/v1", func(r chi.Router) {
		r.Route("/rooms/{room}", func(r chi.Router) {
			r.Get("/window", s.window)
			r.Get("/export", s.export)
			r.Get("/read/{user}", s.readPosition)
			r.Get("/unread", s.unread)
		})
		r.Put("/features/{feature}/users/{user}", s.optIn)
		r.Delete("/features/{feature}/users/{user}", s.optOut)
	})
	s.router = router
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		wrapped := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.Status(),
			"bytes", wrapped.BytesWritten(),
			"duration", time.Since(started),
			"request_id", chiMiddleware.GetReqID(r.Context()),
		)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	if err := netutil.WriteJSON(w, status, v); err != nil {
		s.logger.Debug("writing response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps backend errors to HTTP statuses.
func statusFor(err error) int {
	var transportErr *timeline.TransportError
	switch {
	case errors.Is(err, monitor.ErrRoomNotWatched),
		errors.Is(err, timeline.ErrAnchorNotFound),
		errors.Is(err, errUnknownFeature):
		return http.StatusNotFound
	case errors.Is(err, monitor.ErrInvalidWindow), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathParam returns a URL parameter with percent-escapes decoded.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func roomParam(r *http.Request) (ref.RoomID, error) {
	room, err := ref.ParseRoomID(pathParam(r, "room"))
	if err != nil {
		return ref.RoomID{}, badRequest("room: %v", err)
	}
	return room, nil
}

func userParam(r *http.Request) (ref.UserID, error) {
	user, err := ref.ParseUserID(pathParam(r, "user"))
	if err != nil {
		return ref.UserID{}, badRequest("user: %v", err)
	}
	return user, nil
}
