// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// Origin is where a scan starts. The zero value is the room head for a
// backward scan and the earliest visible event for a forward scan.
// At most one of Cursor and Anchor may be set.
type Origin struct {
	// Cursor resumes a previous scan (ScanResult.NextCursor).
	Cursor string
	// Anchor starts the scan at an event. The anchor event itself is
	// offered to the window first, then the scan continues away from
	// it in the window's direction.
	Anchor ref.EventID
}

// Window is a scan's stop condition. Exactly one of the time range
// (Start and End), Span, MaxMessages, or MaxChars must be set.
type Window struct {
	Direction Direction

	// Start and End bound a time range, both inclusive.
	Start, End time.Time

	// Span is a range relative to the anchor's timestamp:
	// [anchor-Span, anchor] backward, [anchor, anchor+Span] forward.
	// Requires Origin.Anchor.
	Span time.Duration

	// MaxMessages caps the number of messages returned.
	MaxMessages int

	// MaxChars caps the transcript size in characters, counting one
	// newline per line (see LineCost).
	MaxChars int
}

// Validate checks that the window has exactly one usable stop
// condition.
func (w Window) Validate() error {
	conditions := 0
	hasRange := !w.Start.IsZero() || !w.End.IsZero()
	if hasRange {
		conditions++
		if w.Start.IsZero() || w.End.IsZero() {
			return errors.New("timeline: time range needs both start and end")
		}
		if w.End.Before(w.Start) {
			return fmt.Errorf("timeline: time range ends (%s) before it starts (%s)", w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
		}
	}
	if w.Span != 0 {
		conditions++
		if w.Span < 0 {
			return fmt.Errorf("timeline: span must be positive, got %s", w.Span)
		}
	}
	if w.MaxMessages != 0 {
		conditions++
		if w.MaxMessages < 0 {
			return fmt.Errorf("timeline: message cap must be positive, got %d", w.MaxMessages)
		}
	}
	if w.MaxChars != 0 {
		conditions++
		if w.MaxChars < 0 {
			return fmt.Errorf("timeline: character budget must be positive, got %d", w.MaxChars)
		}
	}
	switch {
	case conditions == 0:
		return errors.New("timeline: window has no stop condition")
	case conditions > 1:
		return errors.New("timeline: window has more than one stop condition")
	}
	if w.Direction != Backward && w.Direction != Forward {
		return fmt.Errorf("timeline: invalid direction %d", int(w.Direction))
	}
	return nil
}

// ValidateFor checks the window together with the origin it will scan
// from.
func (w Window) ValidateFor(origin Origin) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if origin.Cursor != "" && !origin.Anchor.IsZero() {
		return errors.New("timeline: origin has both a cursor and an anchor")
	}
	if w.Span != 0 && origin.Anchor.IsZero() {
		return errors.New("timeline: span window requires an anchor")
	}
	return nil
}

// policy builds the stop policy. anchorTime is only used by span
// windows.
func (w Window) policy(anchorTime time.Time) Policy {
	switch {
	case w.Span != 0:
		if w.Direction == Backward {
			return &timeRangePolicy{start: anchorTime.Add(-w.Span), end: anchorTime, direction: w.Direction}
		}
		return &timeRangePolicy{start: anchorTime, end: anchorTime.Add(w.Span), direction: w.Direction}
	case w.MaxMessages != 0:
		return &countPolicy{remaining: w.MaxMessages}
	case w.MaxChars != 0:
		return &charBudgetPolicy{remaining: w.MaxChars}
	default:
		return &timeRangePolicy{start: w.Start, end: w.End, direction: w.Direction}
	}
}
