// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bureau-foundation/catchup/lib/ref"
	"github.com/bureau-foundation/catchup/messaging"
	"github.com/bureau-foundation/catchup/readstate"
	"github.com/bureau-foundation/catchup/timeline"
)

// MatrixSource implements timeline.Source with /messages and /context.
type MatrixSource struct {
	session messaging.Session
}

// NewMatrixSource wraps session.
func NewMatrixSource(session messaging.Session) *MatrixSource {
	return &MatrixSource{session: session}
}

// FetchPage requests one page of /messages.
func (s *MatrixSource) FetchPage(ctx context.Context, room ref.RoomID, cursor string, direction timeline.Direction, limit int) (timeline.Page, error) {
	dir := "b"
	if direction == timeline.Forward {
		dir = "f"
	}
	response, err := s.session.RoomMessages(ctx, room, messaging.RoomMessagesOptions{
		From:      cursor,
		Direction: dir,
		Limit:     limit,
	})
	if err != nil {
		return timeline.Page{}, err
	}

	page := timeline.Page{
		Events: make([]timeline.Event, 0, len(response.Chunk)),
		Start:  response.Start,
		Next:   response.End,
	}
	for _, event := range response.Chunk {
		page.Events = append(page.Events, convertEvent(event))
	}
	return page, nil
}

// ResolveAnchor looks up event with /context?limit=0.
func (s *MatrixSource) ResolveAnchor(ctx context.Context, room ref.RoomID, event ref.EventID) (timeline.Anchor, error) {
	response, err := s.session.RoomContext(ctx, room, event)
	if err != nil {
		return timeline.Anchor{}, err
	}
	if response.Event.EventID != event {
		return timeline.Anchor{}, fmt.Errorf("monitor: context for %s returned event %s", event, response.Event.EventID)
	}
	return timeline.Anchor{
		Event:    convertEvent(response.Event),
		Backward: response.Start,
		Forward:  response.End,
	}, nil
}

func convertEvent(event messaging.Event) timeline.Event {
	converted := timeline.Event{
		ID:     event.EventID,
		Sender: event.Sender,
		Kind:   event.Type,
	}
	if event.OriginServerTS > 0 {
		converted.Timestamp = time.UnixMilli(event.OriginServerTS).UTC()
	}
	// State events never carry a chat message, even when a bridge
	// gives one a message type.
	if event.StateKey == nil {
		converted.Body = event.ContentString("body")
		converted.MsgType = event.ContentString("msgtype")
	}
	return converted
}

var _ timeline.Source = (*MatrixSource)(nil)

// MatrixMarkers implements readstate.DurableSource with the
// m.fully_read room account data event.
type MatrixMarkers struct {
	session    messaging.Session
	appService bool
}

// NewMatrixMarkers wraps session. Without an application service
// token only the session's own marker is readable; other users then
// have no durable channel and resolve from receipts alone.
func NewMatrixMarkers(session messaging.Session, appService bool) *MatrixMarkers {
	return &MatrixMarkers{session: session, appService: appService}
}

// DurableMarker fetches user's m.fully_read marker in room.
func (m *MatrixMarkers) DurableMarker(ctx context.Context, room ref.RoomID, user ref.UserID) (*readstate.DurableMarker, error) {
	if !m.appService && user != m.session.UserID() {
		return nil, nil
	}
	raw, err := m.session.RoomAccountData(ctx, user, room, messaging.EventTypeFullyRead)
	if messaging.IsMatrixError(err, messaging.ErrCodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var content messaging.FullyReadContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("monitor: decoding %s for %s in %s: %w", messaging.EventTypeFullyRead, user, room, err)
	}
	if content.EventID.IsZero() {
		return nil, nil
	}
	return &readstate.DurableMarker{EventID: content.EventID, RawTimestamp: content.Timestamp}, nil
}

var _ readstate.DurableSource = (*MatrixMarkers)(nil)
