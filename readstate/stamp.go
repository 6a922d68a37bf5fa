// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package readstate

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// Stamp orders receipts. It is either a genuine server timestamp or,
// for receipts that arrived without one, an order hint derived from
// the event ID. Hints sort below every timestamp and are never
// reported as a time.
type Stamp struct {
	timestamped bool
	time        time.Time
	hint        uint64
}

// Timestamped returns a stamp carrying a genuine timestamp.
func Timestamped(ts time.Time) Stamp {
	return Stamp{timestamped: true, time: ts}
}

// Untimestamped returns a stamp carrying only an order hint.
func Untimestamped(hint uint64) Stamp {
	return Stamp{hint: hint}
}

// StampFor returns Timestamped(ts), or Untimestamped with the event's
// order hint when ts is zero.
func StampFor(event ref.EventID, ts time.Time) Stamp {
	if ts.IsZero() {
		return Untimestamped(OrderHint(event))
	}
	return Timestamped(ts)
}

// Time returns the timestamp, and false for untimestamped stamps.
func (s Stamp) Time() (time.Time, bool) {
	if !s.timestamped {
		return time.Time{}, false
	}
	return s.time, true
}

// Less reports whether s orders before other.
func (s Stamp) Less(other Stamp) bool {
	switch {
	case s.timestamped && other.timestamped:
		return s.time.Before(other.time)
	case s.timestamped != other.timestamped:
		return other.timestamped
	default:
		return s.hint < other.hint
	}
}

func (s Stamp) String() string {
	if s.timestamped {
		return s.time.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("untimestamped(%016x)", s.hint)
}

// orderHintKey is the BLAKE3 key for order hints: the ASCII domain
// name zero-padded to 32 bytes. Changing it reorders untimestamped
// receipts relative to each other.
var orderHintKey = [32]byte{
	'c', 'a', 't', 'c', 'h', 'u', 'p', '.', 'r', 'e', 'a', 'd', 's', 't', 'a', 't',
	'e', '.', 'o', 'r', 'd', 'e', 'r', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// OrderHint derives a stable ordering key from an event ID. The same
// ID yields the same hint in every process.
func OrderHint(event ref.EventID) uint64 {
	hasher, err := blake3.NewKeyed(orderHintKey[:])
	if err != nil {
		panic("readstate: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(event.String()))
	return binary.BigEndian.Uint64(hasher.Sum(nil)[:8])
}
