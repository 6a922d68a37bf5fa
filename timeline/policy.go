// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"fmt"
	"time"
)

// Decision is a policy's verdict on one event.
type Decision int

const (
	// Skip leaves the event out and continues.
	Skip Decision = iota
	// Accept keeps the event and continues.
	Accept
	// Stop ends the scan without keeping the event.
	Stop
	// AcceptAndStop keeps the event and ends the scan.
	AcceptAndStop
)

func (d Decision) String() string {
	switch d {
	case Skip:
		return "skip"
	case Accept:
		return "accept"
	case Stop:
		return "stop"
	case AcceptAndStop:
		return "accept-and-stop"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Policy is consulted for every event a scan walks, in walk order.
// line is the event's formatted transcript line. Policies are
// stateful and belong to a single scan.
type Policy interface {
	Offer(event Event, line string) Decision
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(event Event, line string) Decision

// Offer calls f.
func (f PolicyFunc) Offer(event Event, line string) Decision { return f(event, line) }

// timeRangePolicy keeps events inside [start, end]. Events on the near
// side of the range are skipped; the first event past the far side
// ends the scan.
type timeRangePolicy struct {
	start, end time.Time
	direction  Direction
}

func (p *timeRangePolicy) Offer(event Event, _ string) Decision {
	ts := event.Timestamp
	if p.direction == Backward {
		if ts.Before(p.start) {
			return Stop
		}
		if ts.After(p.end) {
			return Skip
		}
		return Accept
	}
	if ts.After(p.end) {
		return Stop
	}
	if ts.Before(p.start) {
		return Skip
	}
	return Accept
}

type countPolicy struct {
	remaining int
}

func (p *countPolicy) Offer(Event, string) Decision {
	p.remaining--
	if p.remaining <= 0 {
		return AcceptAndStop
	}
	return Accept
}

// charBudgetPolicy refuses the first line that does not fit in what is
// left of the budget, so the transcript never exceeds it.
type charBudgetPolicy struct {
	remaining int
}

func (p *charBudgetPolicy) Offer(_ Event, line string) Decision {
	cost := LineCost(line)
	if cost > p.remaining {
		return Stop
	}
	p.remaining -= cost
	if p.remaining == 0 {
		return AcceptAndStop
	}
	return Accept
}
