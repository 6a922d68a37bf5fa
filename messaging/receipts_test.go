// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/catchup/lib/ref"
)

func TestParseReceipts(t *testing.T) {
	content := json.RawMessage(`{
		"$e2": {
			"m.read": {"@bob:local": {"ts": 2000, "thread_id": "main"}, "not-a-user": {"ts": 5}},
			"m.read.private": {"@alice:local": {"ts": 2500}}
		},
		"$e1": {"m.read": {"@alice:local": {}}},
		"bogus": {"m.read": {"@carol:local": {"ts": 1}}},
		"$e3": {"m.fully_read.unknown": {"@dave:local": {"ts": 9}}}
	}`)

	receipts, err := ParseReceipts(content)
	if err != nil {
		t.Fatalf("ParseReceipts: %v", err)
	}

	want := []Receipt{
		{EventID: ref.MustParseEventID("$e1"), UserID: ref.MustParseUserID("@alice:local"), Type: ReceiptTypeRead},
		{EventID: ref.MustParseEventID("$e2"), UserID: ref.MustParseUserID("@alice:local"), Type: ReceiptTypeReadPrivate, Timestamp: 2500},
		{EventID: ref.MustParseEventID("$e2"), UserID: ref.MustParseUserID("@bob:local"), Type: ReceiptTypeRead, Timestamp: 2000, ThreadID: "main"},
	}
	if diff := cmp.Diff(want, receipts, cmp.AllowUnexported(ref.EventID{}, ref.UserID{})); diff != "" {
		t.Errorf("receipts mismatch (-want +got):\n%s", diff)
	}
}

func TestParseReceiptsMalformed(t *testing.T) {
	if _, err := ParseReceipts(json.RawMessage(`[1, 2]`)); err == nil {
		t.Fatal("expected error for non-object content")
	}
}

func TestBuildSyncFilter(t *testing.T) {
	filter := BuildSyncFilter([]ref.RoomID{testRoom})

	var decoded struct {
		Room struct {
			Rooms     []string `json:"rooms"`
			Ephemeral struct {
				Types []string `json:"types"`
			} `json:"ephemeral"`
			Timeline struct {
				Limit int `json:"limit"`
			} `json:"timeline"`
		} `json:"room"`
		Presence struct {
			Types []string `json:"types"`
		} `json:"presence"`
	}
	if err := json.Unmarshal([]byte(filter), &decoded); err != nil {
		t.Fatalf("filter is not valid JSON: %v", err)
	}
	if len(decoded.Room.Rooms) != 1 || decoded.Room.Rooms[0] != testRoom.String() {
		t.Errorf("unexpected rooms: %v", decoded.Room.Rooms)
	}
	if len(decoded.Room.Ephemeral.Types) != 1 || decoded.Room.Ephemeral.Types[0] != EventTypeReceipt {
		t.Errorf("unexpected ephemeral types: %v", decoded.Room.Ephemeral.Types)
	}
	if decoded.Room.Timeline.Limit != 1 {
		t.Errorf("unexpected timeline limit: %d", decoded.Room.Timeline.Limit)
	}
	if decoded.Presence.Types == nil || len(decoded.Presence.Types) != 0 {
		t.Errorf("presence should be excluded with an empty type list, got %v", decoded.Presence.Types)
	}
}

func TestReceiptMainTimeline(t *testing.T) {
	tests := []struct {
		thread string
		want   bool
	}{
		{"", true},
		{ThreadMain, true},
		{"$root", false},
	}
	for _, test := range tests {
		receipt := Receipt{ThreadID: test.thread}
		if got := receipt.MainTimeline(); got != test.want {
			t.Errorf("MainTimeline() with thread %q = %v, want %v", test.thread, got, test.want)
		}
	}
}
