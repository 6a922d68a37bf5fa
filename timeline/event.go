// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"time"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// KindMessage is the event kind of chat messages. Only message-kind
// events with a non-empty body count toward windows and unread totals.
const KindMessage = "m.room.message"

// MsgTypeEmote is the message type rendered as an action line.
const MsgTypeEmote = "m.emote"

// Event is one room event as seen by the scanner.
type Event struct {
	ID        ref.EventID
	Sender    ref.UserID
	Body      string
	Kind      string
	MsgType   string
	Timestamp time.Time
}

// IsMessage reports whether the event is a chat message with content.
// Redacted messages have no body and do not count.
func (e Event) IsMessage() bool {
	return e.Kind == KindMessage && e.Body != ""
}

// Direction is the order in which a scan walks history.
type Direction int

const (
	// Backward walks from newer to older events.
	Backward Direction = iota
	// Forward walks from older to newer events.
	Forward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Page is one batch of events from a Source, in the order the scan
// walks them (newest first for Backward). Start is a cursor that
// fetches this same page again. Next is the cursor for the following
// page in the same direction, empty at the end of history.
type Page struct {
	Events []Event
	Start  string
	Next   string
}

// Anchor is a resolved anchor event with cursors on either side of it.
// Backward continues with the events before the anchor and Forward
// with the events after it.
type Anchor struct {
	Event    Event
	Backward string
	Forward  string
}

// Source is the remote event stream. Implementations are thin wrappers
// around the chat server API; they do no filtering.
type Source interface {
	// FetchPage returns the page starting at cursor. An empty cursor
	// means the room head for Backward and the earliest visible event
	// for Forward.
	FetchPage(ctx context.Context, room ref.RoomID, cursor string, direction Direction, limit int) (Page, error)

	// ResolveAnchor looks up an event and the cursors bracketing it.
	ResolveAnchor(ctx context.Context, room ref.RoomID, event ref.EventID) (Anchor, error)
}
