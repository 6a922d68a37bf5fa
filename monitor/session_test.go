// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/catchup/lib/ref"
	"github.com/bureau-foundation/catchup/messaging"
)

var (
	watchedRoom = ref.MustParseRoomID("!general:local")
	otherRoom   = ref.MustParseRoomID("!elsewhere:local")
	agent       = ref.MustParseUserID("@catchup:local")
	alice       = ref.MustParseUserID("@alice:local")
	bob         = ref.MustParseUserID("@bob:local")
	epoch       = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func eventID(n int) ref.EventID {
	return ref.MustParseEventID(fmt.Sprintf("$E%d", n))
}

// history returns n messages $E1..$En from alternating senders, one
// minute apart.
func history(n int) []messaging.Event {
	events := make([]messaging.Event, n)
	for i := range events {
		sender := alice
		if i%2 == 1 {
			sender = bob
		}
		events[i] = messaging.Event{
			EventID:        eventID(i + 1),
			Type:           messaging.EventTypeMessage,
			Sender:         sender,
			OriginServerTS: epoch.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Content:        map[string]any{"msgtype": messaging.MsgTypeText, "body": fmt.Sprintf("message %d", i+1)},
		}
	}
	return events
}

// fakeSession is an in-memory homeserver for one room. Pagination
// tokens are "tN", the position just before events[N].
type fakeSession struct {
	mu          sync.Mutex
	events      []messaging.Event
	accountData map[string]json.RawMessage
	joined      []ref.RoomID

	// syncs are returned in order; once exhausted Sync blocks until
	// the context ends.
	syncs       []syncReply
	syncCalls   int
	syncOptions []messaging.SyncOptions
	syncCalled  chan int

	messageCalls []messaging.RoomMessagesOptions
	dataCalls    int
	messagesErr  error
	sent         []messaging.MessageContent

	// unreachable rooms fail /messages and /context with a 502.
	unreachable map[ref.RoomID]bool
}

type syncReply struct {
	response *messaging.SyncResponse
	err      error
}

func newFakeSession(events []messaging.Event) *fakeSession {
	return &fakeSession{
		events:      events,
		accountData: make(map[string]json.RawMessage),
		joined:      []ref.RoomID{watchedRoom},
		syncCalled:  make(chan int, 64),
	}
}

func accountDataKey(user ref.UserID, room ref.RoomID, eventType string) string {
	return user.String() + "|" + room.String() + "|" + eventType
}

func (s *fakeSession) setFullyRead(user ref.UserID, event ref.EventID, ts int64) {
	content, _ := json.Marshal(messaging.FullyReadContent{EventID: event, Timestamp: ts})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountData[accountDataKey(user, watchedRoom, messaging.EventTypeFullyRead)] = content
}

func (s *fakeSession) UserID() ref.UserID { return agent }

func (s *fakeSession) WhoAmI(context.Context) (ref.UserID, error) { return agent, nil }

func (s *fakeSession) JoinedRooms(context.Context) ([]ref.RoomID, error) {
	return s.joined, nil
}

func (s *fakeSession) Sync(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error) {
	s.mu.Lock()
	call := s.syncCalls
	s.syncCalls++
	s.syncOptions = append(s.syncOptions, options)
	var reply *syncReply
	if call < len(s.syncs) {
		reply = &s.syncs[call]
	}
	s.mu.Unlock()
	s.syncCalled <- call

	if reply == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return reply.response, reply.err
}

func (s *fakeSession) position(token string, direction string) (int, error) {
	if token == "" {
		if direction == "b" {
			return len(s.events), nil
		}
		return 0, nil
	}
	position, err := strconv.Atoi(strings.TrimPrefix(token, "t"))
	if err != nil || position < 0 || position > len(s.events) {
		return 0, fmt.Errorf("bad token %q", token)
	}
	return position, nil
}

func (s *fakeSession) RoomMessages(_ context.Context, room ref.RoomID, options messaging.RoomMessagesOptions) (*messaging.RoomMessagesResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageCalls = append(s.messageCalls, options)
	if s.messagesErr != nil {
		return nil, s.messagesErr
	}
	if s.unreachable[room] {
		return nil, &messaging.MatrixError{Code: messaging.ErrCodeUnknown, StatusCode: 502}
	}
	if room != watchedRoom {
		return nil, &messaging.MatrixError{Code: messaging.ErrCodeForbidden, StatusCode: 403}
	}
	position, err := s.position(options.From, options.Direction)
	if err != nil {
		return nil, err
	}

	response := &messaging.RoomMessagesResponse{Start: "t" + strconv.Itoa(position), Chunk: []messaging.Event{}}
	if options.Direction == "b" {
		low := max(position-options.Limit, 0)
		for i := position - 1; i >= low; i-- {
			response.Chunk = append(response.Chunk, s.events[i])
		}
		if low > 0 {
			response.End = "t" + strconv.Itoa(low)
		}
	} else {
		high := min(position+options.Limit, len(s.events))
		response.Chunk = append(response.Chunk, s.events[position:high]...)
		if high < len(s.events) {
			response.End = "t" + strconv.Itoa(high)
		}
	}
	return response, nil
}

func (s *fakeSession) RoomContext(_ context.Context, room ref.RoomID, event ref.EventID) (*messaging.ContextResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreachable[room] {
		return nil, &messaging.MatrixError{Code: messaging.ErrCodeUnknown, StatusCode: 502}
	}
	for i, candidate := range s.events {
		if candidate.EventID == event {
			return &messaging.ContextResponse{
				Start: "t" + strconv.Itoa(i),
				End:   "t" + strconv.Itoa(i+1),
				Event: candidate,
			}, nil
		}
	}
	return nil, &messaging.MatrixError{Code: messaging.ErrCodeNotFound, StatusCode: 404}
}

func (s *fakeSession) RoomAccountData(_ context.Context, user ref.UserID, room ref.RoomID, eventType string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataCalls++
	content, ok := s.accountData[accountDataKey(user, room, eventType)]
	if !ok {
		return nil, &messaging.MatrixError{Code: messaging.ErrCodeNotFound, StatusCode: 404}
	}
	return content, nil
}

func (s *fakeSession) SendMessage(_ context.Context, _ ref.RoomID, content messaging.MessageContent) (ref.EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, content)
	return ref.MustParseEventID("$notice" + strconv.Itoa(len(s.sent))), nil
}

var errHomeserverDown = errors.New("homeserver down")

var _ messaging.Session = (*fakeSession)(nil)

// receiptSync builds a sync response carrying one m.receipt event.
func receiptSync(batch string, room ref.RoomID, receipts map[ref.UserID]int) *messaging.SyncResponse {
	content := map[string]map[string]map[string]map[string]int64{}
	for user, n := range receipts {
		event := eventID(n).String()
		if content[event] == nil {
			content[event] = map[string]map[string]map[string]int64{messaging.ReceiptTypeRead: {}}
		}
		content[event][messaging.ReceiptTypeRead][user.String()] = map[string]int64{
			"ts": epoch.Add(time.Duration(n) * time.Minute).UnixMilli(),
		}
	}
	raw, _ := json.Marshal(content)
	return &messaging.SyncResponse{
		NextBatch: batch,
		Rooms: messaging.RoomsSection{Join: map[ref.RoomID]messaging.JoinedRoom{
			room: {Ephemeral: messaging.EphemeralSection{Events: []messaging.RawEvent{
				{Type: messaging.EventTypeReceipt, Content: raw},
			}}},
		}},
	}
}

// threadReceiptSync builds a sync response carrying one receipt by user
// on event n inside the thread rooted at thread.
func threadReceiptSync(batch string, room ref.RoomID, user ref.UserID, n int, thread string, ts time.Time) *messaging.SyncResponse {
	content := map[string]map[string]map[string]map[string]any{
		eventID(n).String(): {messaging.ReceiptTypeRead: {user.String(): {"ts": ts.UnixMilli(), "thread_id": thread}}},
	}
	raw, _ := json.Marshal(content)
	return &messaging.SyncResponse{
		NextBatch: batch,
		Rooms: messaging.RoomsSection{Join: map[ref.RoomID]messaging.JoinedRoom{
			room: {Ephemeral: messaging.EphemeralSection{Events: []messaging.RawEvent{
				{Type: messaging.EventTypeReceipt, Content: raw},
			}}},
		}},
	}
}

// mergeSyncs combines the joined rooms of several responses.
func mergeSyncs(batch string, responses ...*messaging.SyncResponse) *messaging.SyncResponse {
	merged := &messaging.SyncResponse{
		NextBatch: batch,
		Rooms:     messaging.RoomsSection{Join: map[ref.RoomID]messaging.JoinedRoom{}},
	}
	for _, response := range responses {
		for room, joined := range response.Rooms.Join {
			merged.Rooms.Join[room] = joined
		}
	}
	return merged
}
