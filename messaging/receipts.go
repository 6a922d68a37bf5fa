// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// Receipt is one (event, user, receipt type) entry from an m.receipt
// ephemeral event. Timestamp is milliseconds since the epoch and zero
// when the server did not include one.
type Receipt struct {
	EventID   ref.EventID
	UserID    ref.UserID
	Type      string
	Timestamp int64
	ThreadID  string
}

// ThreadMain is the thread_id of a threaded receipt on the main
// timeline.
const ThreadMain = "main"

// MainTimeline reports whether the receipt covers the room's main
// timeline: unthreaded, or threaded with ThreadMain. A receipt inside a
// thread says nothing about how far the main timeline has been read.
func (r Receipt) MainTimeline() bool {
	return r.ThreadID == "" || r.ThreadID == ThreadMain
}

// receiptContent mirrors the m.receipt content shape:
//
//	{"$event": {"m.read": {"@user:server": {"ts": 1661384801651, "thread_id": "main"}}}}
//
// Keys are decoded as plain strings so that one malformed ID from a
// misbehaving server does not discard the whole event.
type receiptContent map[string]map[string]map[string]struct {
	Timestamp int64  `json:"ts"`
	ThreadID  string `json:"thread_id,omitempty"`
}

// ParseReceipts flattens the content of an m.receipt event. Entries
// with unparseable event or user IDs are skipped. Both public and
// private read receipts are returned; other receipt types are ignored.
// The result is sorted by event ID, user, and type so that callers see
// a deterministic order regardless of JSON map iteration.
func ParseReceipts(content json.RawMessage) ([]Receipt, error) {
	var parsed receiptContent
	if err := json.Unmarshal(content, &parsed); err != nil {
		return nil, fmt.Errorf("messaging: parsing m.receipt content: %w", err)
	}

	var receipts []Receipt
	for rawEventID, byType := range parsed {
		eventID, err := ref.ParseEventID(rawEventID)
		if err != nil {
			continue
		}
		for receiptType, byUser := range byType {
			if receiptType != ReceiptTypeRead && receiptType != ReceiptTypeReadPrivate {
				continue
			}
			for rawUserID, entry := range byUser {
				userID, err := ref.ParseUserID(rawUserID)
				if err != nil {
					continue
				}
				receipts = append(receipts, Receipt{
					EventID:   eventID,
					UserID:    userID,
					Type:      receiptType,
					Timestamp: entry.Timestamp,
					ThreadID:  entry.ThreadID,
				})
			}
		}
	}

	sort.Slice(receipts, func(i, j int) bool {
		a, b := receipts[i], receipts[j]
		if a.EventID != b.EventID {
			return a.EventID.String() < b.EventID.String()
		}
		if a.UserID != b.UserID {
			return a.UserID.String() < b.UserID.String()
		}
		return a.Type < b.Type
	})
	return receipts, nil
}
