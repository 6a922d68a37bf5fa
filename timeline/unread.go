// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// DefaultUnreadScanCap bounds how many events Between walks.
const DefaultUnreadScanCap = 500

// Mode selects what Between returns.
type Mode int

const (
	// CountOnly returns only the count.
	CountOnly Mode = iota
	// CollectLines also returns the transcript lines, ascending.
	CollectLines
)

// ParseMode parses "count" or "lines".
func ParseMode(raw string) (Mode, error) {
	switch raw {
	case "", "count":
		return CountOnly, nil
	case "lines":
		return CollectLines, nil
	default:
		return CountOnly, fmt.Errorf("timeline: unknown mode %q (want count or lines)", raw)
	}
}

// Tally is the result of Between.
type Tally struct {
	// Count is the number of qualifying messages after from, up to and
	// including to.
	Count int
	// Lines holds the messages in CollectLines mode, ascending.
	Lines []string
	// LowerBound means Count may be short: the scan cap was reached,
	// history ran out, or from was never seen.
	LowerBound bool
}

// unreadPolicy sees every event. It counts qualifying messages until it
// meets from or walks cap events.
type unreadPolicy struct {
	from      ref.EventID
	qualifies func(Event) bool
	limit     int
	walked    int
	found     bool
}

func (p *unreadPolicy) Offer(event Event, _ string) Decision {
	if event.ID == p.from {
		p.found = true
		return Stop
	}
	p.walked++
	decision := Skip
	if p.qualifies(event) {
		decision = Accept
	}
	if p.walked >= p.limit {
		if decision == Accept {
			return AcceptAndStop
		}
		return Stop
	}
	return decision
}

// Between counts (or collects) the qualifying messages in room after
// from, up to and including to. A zero to means the room head. The
// scan walks backward from to and stops at from; it walks at most the
// configured unread scan cap.
//
// When the scan fails part way, the partial tally is returned with
// LowerBound set, together with the error.
func (f *Fetcher) Between(ctx context.Context, room ref.RoomID, from, to ref.EventID, mode Mode) (*Tally, error) {
	if from.IsZero() {
		return nil, errors.New("timeline: between requires a from event")
	}
	if from == to {
		return &Tally{}, nil
	}

	var anchor *Anchor
	if !to.IsZero() {
		resolved, _, err := f.resolveAnchor(ctx, room, to)
		if err != nil {
			return nil, err
		}
		anchor = resolved
	}

	policy := &unreadPolicy{from: from, qualifies: f.Qualifies, limit: f.unreadScanCap}
	// The policy sees non-message events too: they count toward the
	// scan cap, and from may itself be a non-message.
	result, err := f.walk(ctx, room, "", anchor, Backward, policy, false)
	if result == nil || result.Outcome == Cancelled {
		return nil, err
	}

	tally := &Tally{
		Count:      len(result.Events),
		LowerBound: !policy.found,
	}
	if mode == CollectLines {
		tally.Lines = result.Lines
	}
	return tally, err
}
