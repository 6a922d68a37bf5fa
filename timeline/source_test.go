// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/catchup/lib/ref"
)

var (
	testRoom  = ref.MustParseRoomID("!room:local")
	alice     = ref.MustParseUserID("@alice:local")
	bob       = ref.MustParseUserID("@bob:local")
	botUser   = ref.MustParseUserID("@catchup:local")
	epoch     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	errRemote = errors.New("remote unavailable")
)

// fakeSource serves one room whose history is held in ascending order.
// Cursors are positions between events: "N" sits just before
// events[N]. A backward page from N returns events[N-1] down; a forward
// page from N returns events[N] up.
type fakeSource struct {
	mu     sync.Mutex
	events []Event

	// failAfter fails every FetchPage call after that many succeed.
	// Negative disables failures.
	failAfter int

	// onFetch runs before each FetchPage returns.
	onFetch func(call int)

	fetches int
	anchors int
}

func newFakeSource(events []Event) *fakeSource {
	return &fakeSource{events: events, failAfter: -1}
}

func (s *fakeSource) FetchPage(ctx context.Context, room ref.RoomID, cursor string, direction Direction, limit int) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.onFetch != nil {
		s.onFetch(s.fetches)
	}
	if s.failAfter >= 0 && s.fetches > s.failAfter {
		return Page{}, errRemote
	}
	if room != testRoom {
		return Page{}, fmt.Errorf("unknown room %s", room)
	}

	position := 0
	if cursor == "" {
		if direction == Backward {
			position = len(s.events)
		}
	} else {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return Page{}, fmt.Errorf("bad cursor %q", cursor)
		}
		position = parsed
	}

	page := Page{Start: strconv.Itoa(position)}
	if direction == Backward {
		low := max(position-limit, 0)
		for i := position - 1; i >= low; i-- {
			page.Events = append(page.Events, s.events[i])
		}
		if low > 0 {
			page.Next = strconv.Itoa(low)
		}
		return page, nil
	}
	high := min(position+limit, len(s.events))
	page.Events = append(page.Events, s.events[position:high]...)
	if high < len(s.events) {
		page.Next = strconv.Itoa(high)
	}
	return page, nil
}

func (s *fakeSource) ResolveAnchor(ctx context.Context, room ref.RoomID, event ref.EventID) (Anchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors++
	for i, candidate := range s.events {
		if candidate.ID == event {
			anchor := Anchor{Event: candidate, Forward: strconv.Itoa(i + 1)}
			if i > 0 {
				anchor.Backward = strconv.Itoa(i)
			}
			return anchor, nil
		}
	}
	return Anchor{}, fmt.Errorf("M_NOT_FOUND: %s", event)
}

func (s *fakeSource) calls() (fetches, anchors int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches, s.anchors
}

// messages builds count messages from alice, one minute apart,
// starting at epoch, with IDs $m1..$mN.
func messages(count int) []Event {
	events := make([]Event, count)
	for i := range events {
		events[i] = message(i+1, alice, fmt.Sprintf("message %d", i+1))
	}
	return events
}

func message(n int, sender ref.UserID, body string) Event {
	return Event{
		ID:        ref.MustParseEventID(fmt.Sprintf("$m%d", n)),
		Sender:    sender,
		Body:      body,
		Kind:      KindMessage,
		MsgType:   "m.text",
		Timestamp: epoch.Add(time.Duration(n) * time.Minute),
	}
}

func newTestFetcher(t *testing.T, source Source, pageSize int) *Fetcher {
	t.Helper()
	fetcher, err := NewFetcher(Config{
		Source:        source,
		PageSize:      pageSize,
		IgnoreSenders: []ref.UserID{botUser},
	})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	return fetcher
}

func eventIDs(events []Event) []string {
	ids := make([]string, len(events))
	for i, event := range events {
		ids[i] = event.ID.String()
	}
	return ids
}

func assertAscending(t *testing.T, events []Event) {
	t.Helper()
	for i := 1; i < len(events); i++ {
		if !events[i].Timestamp.After(events[i-1].Timestamp) {
			t.Fatalf("events not strictly ascending at %d: %s then %s", i, events[i-1].Timestamp, events[i].Timestamp)
		}
	}
}
