// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package readstate

import (
	"sync"
	"time"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// Channel identifies where a receipt came from.
type Channel int

const (
	// ChannelLive is a read receipt seen on /sync.
	ChannelLive Channel = iota
	// ChannelDurable is the server-stored read marker.
	ChannelDurable
)

func (c Channel) String() string {
	if c == ChannelDurable {
		return "durable"
	}
	return "live"
}

// MarshalText implements encoding.TextMarshaler.
func (c Channel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Receipt is one read signal. A zero Timestamp means the signal
// carried none.
type Receipt struct {
	EventID   ref.EventID
	UserID    ref.UserID
	Timestamp time.Time
	Channel   Channel
}

// DefaultReceiptsPerUser is how many live receipts a ReceiptBook keeps
// per (room, user).
const DefaultReceiptsPerUser = 8

// ReceiptBook accumulates live receipts across sync cycles. For each
// (room, user) it keeps the most recently recorded receipts, one per
// event, up to a fixed bound. It is safe for concurrent use.
type ReceiptBook struct {
	perUser int

	mu    sync.Mutex
	rooms map[ref.RoomID]map[ref.UserID][]Receipt
}

// NewReceiptBook creates a ReceiptBook keeping perUser receipts per
// user. Zero or negative uses DefaultReceiptsPerUser.
func NewReceiptBook(perUser int) *ReceiptBook {
	if perUser <= 0 {
		perUser = DefaultReceiptsPerUser
	}
	return &ReceiptBook{
		perUser: perUser,
		rooms:   make(map[ref.RoomID]map[ref.UserID][]Receipt),
	}
}

// Record adds a receipt. A receipt for an event already recorded for
// that user replaces the earlier one.
func (b *ReceiptBook) Record(room ref.RoomID, receipt Receipt) {
	receipt.Channel = ChannelLive

	b.mu.Lock()
	defer b.mu.Unlock()

	users := b.rooms[room]
	if users == nil {
		users = make(map[ref.UserID][]Receipt)
		b.rooms[room] = users
	}
	log := users[receipt.UserID]
	for i, existing := range log {
		if existing.EventID == receipt.EventID {
			log = append(log[:i], log[i+1:]...)
			break
		}
	}
	log = append(log, receipt)
	if len(log) > b.perUser {
		log = append(log[:0:0], log[len(log)-b.perUser:]...)
	}
	users[receipt.UserID] = log
}

// LiveReceipts returns a copy of every receipt recorded for room.
func (b *ReceiptBook) LiveReceipts(room ref.RoomID) []Receipt {
	b.mu.Lock()
	defer b.mu.Unlock()

	var receipts []Receipt
	for _, log := range b.rooms[room] {
		receipts = append(receipts, log...)
	}
	return receipts
}

// UserReceipts returns a copy of the receipts recorded for one user,
// oldest first.
func (b *ReceiptBook) UserReceipts(room ref.RoomID, user ref.UserID) []Receipt {
	b.mu.Lock()
	defer b.mu.Unlock()

	log := b.rooms[room][user]
	if len(log) == 0 {
		return nil
	}
	return append([]Receipt(nil), log...)
}

// Forget drops everything recorded for room.
func (b *ReceiptBook) Forget(room ref.RoomID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms, room)
}
