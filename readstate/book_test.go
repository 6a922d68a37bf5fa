// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package readstate

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/catchup/lib/ref"
)

var (
	testRoom = ref.MustParseRoomID("!room:local")
	alice    = ref.MustParseUserID("@alice:local")
	bob      = ref.MustParseUserID("@bob:local")
)

func receipt(user ref.UserID, event string, ms int64) Receipt {
	r := Receipt{EventID: ref.MustParseEventID(event), UserID: user}
	if ms != 0 {
		r.Timestamp = time.UnixMilli(ms)
	}
	return r
}

func TestReceiptBookBounded(t *testing.T) {
	book := NewReceiptBook(3)
	for i := 1; i <= 5; i++ {
		book.Record(testRoom, receipt(alice, fmt.Sprintf("$e%d", i), int64(i)))
	}

	got := book.UserReceipts(testRoom, alice)
	if len(got) != 3 {
		t.Fatalf("kept %d receipts, want 3", len(got))
	}
	for i, want := range []string{"$e3", "$e4", "$e5"} {
		if got[i].EventID.String() != want {
			t.Errorf("receipt %d = %s, want %s", i, got[i].EventID, want)
		}
		if got[i].Channel != ChannelLive {
			t.Errorf("receipt %d channel = %s", i, got[i].Channel)
		}
	}
}

func TestReceiptBookReplacesSameEvent(t *testing.T) {
	book := NewReceiptBook(0)
	book.Record(testRoom, receipt(alice, "$e1", 100))
	book.Record(testRoom, receipt(alice, "$e2", 200))
	book.Record(testRoom, receipt(alice, "$e1", 300))

	got := book.UserReceipts(testRoom, alice)
	if len(got) != 2 {
		t.Fatalf("kept %d receipts, want 2", len(got))
	}
	if got[1].EventID.String() != "$e1" || got[1].Timestamp.UnixMilli() != 300 {
		t.Errorf("latest receipt = %+v", got[1])
	}
}

func TestReceiptBookIsolatesRoomsAndUsers(t *testing.T) {
	book := NewReceiptBook(0)
	other := ref.MustParseRoomID("!other:local")
	book.Record(testRoom, receipt(alice, "$a", 1))
	book.Record(testRoom, receipt(bob, "$b", 2))
	book.Record(other, receipt(alice, "$c", 3))

	if got := len(book.LiveReceipts(testRoom)); got != 2 {
		t.Errorf("room has %d receipts, want 2", got)
	}
	if got := book.UserReceipts(other, bob); got != nil {
		t.Errorf("unexpected receipts for bob in other room: %v", got)
	}

	book.Forget(testRoom)
	if got := book.LiveReceipts(testRoom); len(got) != 0 {
		t.Errorf("forgotten room still has %d receipts", len(got))
	}
	if got := len(book.LiveReceipts(other)); got != 1 {
		t.Errorf("other room lost receipts: %d", got)
	}
}

func TestReceiptBookConcurrent(t *testing.T) {
	book := NewReceiptBook(4)
	var wg sync.WaitGroup
	for worker := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := ref.MustParseUserID(fmt.Sprintf("@user%d:local", worker))
			for i := range 100 {
				book.Record(testRoom, receipt(user, fmt.Sprintf("$e%d", i), int64(i+1)))
				book.LiveReceipts(testRoom)
			}
		}()
	}
	wg.Wait()

	if got := len(book.LiveReceipts(testRoom)); got != 8*4 {
		t.Errorf("got %d receipts, want %d", got, 8*4)
	}
}
