// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/catchup/lib/codec"
	"github.com/bureau-foundation/catchup/lib/ref"
	"github.com/bureau-foundation/catchup/messaging"
	"github.com/bureau-foundation/catchup/trigger"
)

var (
	roomGeneral = ref.MustParseRoomID("!general:local")
	roomNotices = ref.MustParseRoomID("!notices:local")
	alice       = ref.MustParseUserID("@alice:local")
)

func testFiring() trigger.Firing {
	return trigger.Firing{
		Room:    roomGeneral,
		User:    alice,
		Feature: "digest",
		Count:   80,
		From:    ref.MustParseEventID("$E1"),
		To:      ref.MustParseEventID("$E81"),
		FiredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

type sentMessage struct {
	room    ref.RoomID
	content messaging.MessageContent
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) SendMessage(_ context.Context, room ref.RoomID, content messaging.MessageContent) (ref.EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return ref.EventID{}, s.err
	}
	s.sent = append(s.sent, sentMessage{room: room, content: content})
	return ref.MustParseEventID("$sent"), nil
}

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     string
	}{
		{"inline", "**80** new messages", "<strong>80</strong> new messages"},
		{"escapes raw html", "hi <script>x</script>", "hi <!-- raw HTML omitted -->x<!-- raw HTML omitted -->"},
		{"keeps paragraphs", "one\n\ntwo", "<p>one</p>\n<p>two</p>"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := RenderHTML(test.markdown)
			if err != nil {
				t.Fatalf("RenderHTML: %v", err)
			}
			if got != test.want {
				t.Errorf("RenderHTML(%q) = %q, want %q", test.markdown, got, test.want)
			}
		})
	}
}

func TestMessagesRender(t *testing.T) {
	messages, err := ParseMessages(map[string]string{
		"digest":   "{{.Count}} to catch up on in {{.Room}}",
		"mentions": "   ",
	})
	if err != nil {
		t.Fatalf("ParseMessages: %v", err)
	}

	got, err := messages.Render(testFiring())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "80 to catch up on in !general:local" {
		t.Errorf("digest message = %q", got)
	}

	firing := testFiring()
	firing.Feature = "mentions"
	firing.LowerBound = true
	got, err = messages.Render(firing)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "**80+**") || !strings.Contains(got, "@alice:local") {
		t.Errorf("default message = %q", got)
	}
}

func TestParseMessagesRejectsBadTemplate(t *testing.T) {
	if _, err := ParseMessages(map[string]string{"digest": "{{.Count"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMatrixNotifierSendsNotice(t *testing.T) {
	sender := &recordingSender{}
	notifier, err := NewMatrixNotifier(MatrixConfig{Sender: sender})
	if err != nil {
		t.Fatalf("NewMatrixNotifier: %v", err)
	}
	if err := notifier.Notify(context.Background(), testFiring()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	message := sender.sent[0]
	if message.room != roomGeneral {
		t.Errorf("room = %s, want the firing's room", message.room)
	}
	if message.content.MsgType != messaging.MsgTypeNotice || message.content.Format != messaging.FormatHTML {
		t.Errorf("content = %+v", message.content)
	}
	if !strings.Contains(message.content.FormattedBody, "<strong>80</strong>") {
		t.Errorf("formatted body = %q", message.content.FormattedBody)
	}
	if message.content.Mentions == nil {
		t.Fatal("missing m.mentions")
	}
	if diff := cmp.Diff([]string{"@alice:local"}, []string{message.content.Mentions.UserIDs[0].String()}); diff != "" {
		t.Errorf("mentions mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrixNotifierFixedRoom(t *testing.T) {
	sender := &recordingSender{}
	notifier, err := NewMatrixNotifier(MatrixConfig{Sender: sender, Room: roomNotices})
	if err != nil {
		t.Fatalf("NewMatrixNotifier: %v", err)
	}
	if err := notifier.Notify(context.Background(), testFiring()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sender.sent[0].room != roomNotices {
		t.Errorf("room = %s, want %s", sender.sent[0].room, roomNotices)
	}
}

func TestMatrixNotifierPropagatesSendError(t *testing.T) {
	sender := &recordingSender{err: &messaging.MatrixError{Code: messaging.ErrCodeForbidden, StatusCode: 403}}
	notifier, err := NewMatrixNotifier(MatrixConfig{Sender: sender})
	if err != nil {
		t.Fatalf("NewMatrixNotifier: %v", err)
	}
	err = notifier.Notify(context.Background(), testFiring())
	if !messaging.IsMatrixError(err, messaging.ErrCodeForbidden) {
		t.Fatalf("error = %v, want M_FORBIDDEN", err)
	}
}

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	flushErr error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *fakePublisher) FlushWithContext(context.Context) error { return p.flushErr }

func TestNATSNotifierPublishesCBOR(t *testing.T) {
	publisher := &fakePublisher{}
	notifier := NewNATSNotifier(publisher, "catchup.firing.", nil)

	if err := notifier.Notify(context.Background(), testFiring()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if diff := cmp.Diff([]string{"catchup.firing.digest"}, publisher.subjects); diff != "" {
		t.Errorf("subjects mismatch (-want +got):\n%s", diff)
	}

	var decoded trigger.Firing
	if err := codec.Unmarshal(publisher.payloads[0], &decoded); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if decoded.User != alice || decoded.Count != 80 || decoded.To.String() != "$E81" {
		t.Errorf("decoded = %+v", decoded)
	}
	if !decoded.FiredAt.Equal(testFiring().FiredAt) {
		t.Errorf("fired_at = %s", decoded.FiredAt)
	}
}

func TestNATSNotifierFlushError(t *testing.T) {
	publisher := &fakePublisher{flushErr: context.DeadlineExceeded}
	notifier := NewNATSNotifier(publisher, "catchup.firing", nil)
	if err := notifier.Notify(context.Background(), testFiring()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
}

func TestFanoutCallsEveryNotifier(t *testing.T) {
	var calls []string
	failing := trigger.NotifierFunc(func(context.Context, trigger.Firing) error {
		calls = append(calls, "failing")
		return errors.New("down")
	})
	working := trigger.NotifierFunc(func(context.Context, trigger.Firing) error {
		calls = append(calls, "working")
		return nil
	})

	err := Fanout{failing, working}.Notify(context.Background(), testFiring())
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Errorf("error = %v, want joined failure", err)
	}
	if diff := cmp.Diff([]string{"failing", "working"}, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}
