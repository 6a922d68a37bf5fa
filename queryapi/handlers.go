// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queryapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bureau-foundation/catchup/lib/ref"
	"github.com/bureau-foundation/catchup/lib/transcript"
	"github.com/bureau-foundation/catchup/monitor"
	"github.com/bureau-foundation/catchup/timeline"
)

type windowResponse struct {
	monitor.WindowReport
	Error string `json:"error,omitempty"`
}

func (s *Server) window(w http.ResponseWriter, r *http.Request) {
	room, err := roomParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	spec, err := parseWindowSpec(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	report := s.backend.ScanWindow(r.Context(), room, spec)
	if report.Outcome == timeline.Cancelled || r.Context().Err() != nil {
		return
	}
	response := windowResponse{WindowReport: report}
	status := http.StatusOK
	if report.Err != nil {
		response.Error = report.Err.Error()
		// A partial transcript is still useful; hard failures are not.
		if report.Outcome != timeline.PartialDueToError {
			status = statusFor(report.Err)
		}
	}
	s.writeJSON(w, status, response)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	room, err := roomParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	query := r.URL.Query()
	compression, err := transcript.ParseCompression(query.Get("compression"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, badRequest("%v", err))
		return
	}
	spec, err := parseWindowSpec(query)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	report := s.backend.ScanWindow(r.Context(), room, spec)
	if report.Outcome == timeline.Cancelled || r.Context().Err() != nil {
		return
	}
	if report.Err != nil && report.Outcome != timeline.PartialDueToError {
		s.writeError(w, statusFor(report.Err), report.Err)
		return
	}

	filename := fmt.Sprintf("%s-%s%s", sanitizeFilename(room.String()), time.Now().UTC().Format("20060102T150405Z"), compression.Extension())
	header := w.Header()
	header.Set("Content-Type", compression.ContentType())
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	header.Set("X-Catchup-Outcome", report.Outcome.String())
	if !report.FirstEventID.IsZero() {
		header.Set("X-Catchup-First-Event", report.FirstEventID.String())
		header.Set("X-Catchup-Last-Event", report.LastEventID.String())
	}
	if report.NextCursor != "" {
		header.Set("X-Catchup-Next-Cursor", report.NextCursor)
	}
	w.WriteHeader(http.StatusOK)

	writer, err := transcript.NewWriter(w, compression)
	if err != nil {
		s.logger.Error("starting export stream failed", "room_id", room, "error", err)
		return
	}
	if err := writer.WriteLines(report.Lines); err != nil {
		s.logger.Warn("export interrupted", "room_id", room, "error", err)
		return
	}
	if err := writer.Close(); err != nil {
		s.logger.Warn("finishing export failed", "room_id", room, "error", err)
		return
	}
	s.logger.Info("transcript exported",
		"room_id", room,
		"lines", writer.Lines(),
		"bytes", writer.UncompressedBytes(),
		"compression", compression.String(),
		"outcome", report.Outcome,
	)
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}

type positionResponse struct {
	Room     ref.RoomID     `json:"room_id"`
	User     ref.UserID     `json:"user_id"`
	Position *positionEntry `json:"position"`
}

type positionEntry struct {
	EventID   ref.EventID `json:"event_id"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
	Channel   string      `json:"channel"`
}

func (s *Server) readPosition(w http.ResponseWriter, r *http.Request) {
	room, err := roomParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := userParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	position, err := s.backend.ReadPosition(r.Context(), room, user)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	response := positionResponse{Room: room, User: user}
	if position != nil {
		entry := &positionEntry{EventID: position.EventID, Channel: position.Channel.String()}
		if !position.Timestamp.IsZero() {
			timestamp := position.Timestamp
			entry.Timestamp = &timestamp
		}
		response.Position = entry
	}
	s.writeJSON(w, http.StatusOK, response)
}

type unreadResponse struct {
	Room       ref.RoomID  `json:"room_id"`
	From       ref.EventID `json:"from_event_id"`
	Count      int         `json:"count"`
	LowerBound bool        `json:"lower_bound"`
	Lines      []string    `json:"lines,omitempty"`
	Error      string      `json:"error,omitempty"`
}

func (s *Server) unread(w http.ResponseWriter, r *http.Request) {
	room, err := roomParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	query := r.URL.Query()
	from, err := ref.ParseEventID(query.Get("from"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, badRequest("from: %v", err))
		return
	}
	mode, err := timeline.ParseMode(query.Get("mode"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, badRequest("%v", err))
		return
	}

	tally, err := s.backend.UnreadBetween(r.Context(), room, from, mode)
	if r.Context().Err() != nil {
		return
	}
	if tally == nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	response := unreadResponse{
		Room:       room,
		From:       from,
		Count:      tally.Count,
		LowerBound: tally.LowerBound,
		Lines:      tally.Lines,
	}
	if err != nil {
		response.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) optIn(w http.ResponseWriter, r *http.Request) {
	s.changeOptIn(w, r, true)
}

func (s *Server) optOut(w http.ResponseWriter, r *http.Request) {
	s.changeOptIn(w, r, false)
}

func (s *Server) changeOptIn(w http.ResponseWriter, r *http.Request, enable bool) {
	feature := pathParam(r, "feature")
	user, err := userParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	change := s.backend.OptOut
	if enable {
		change = s.backend.OptIn
	}
	if err := change(r.Context(), feature, user); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.logger.Info("opt-in changed",
		"feature", feature,
		"user_id", user,
		"enabled", enable,
		"request_id", chiMiddleware.GetReqID(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}
