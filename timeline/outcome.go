// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// Outcome reports how a scan ended.
type Outcome int

const (
	// Exhausted means history ran out before any stop condition.
	Exhausted Outcome = iota
	// StoppedByPolicy means the window's boundary or cap was reached.
	StoppedByPolicy
	// PartialDueToError means a page fetch failed. The events gathered
	// before the failure are returned alongside a *TransportError.
	PartialDueToError
	// AnchorNotFound means the anchor event could not be resolved. No
	// events are returned.
	AnchorNotFound
	// Cancelled means the caller's context ended. Gathered events are
	// discarded.
	Cancelled
)

var outcomeNames = [...]string{
	Exhausted:         "exhausted",
	StoppedByPolicy:   "stopped_by_policy",
	PartialDueToError: "partial_due_to_error",
	AnchorNotFound:    "anchor_not_found",
	Cancelled:         "cancelled",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ErrAnchorNotFound is wrapped by the error returned when an anchor
// event cannot be resolved.
var ErrAnchorNotFound = errors.New("anchor event not found")

// TransportError is a failed call to the Source.
type TransportError struct {
	Room ref.RoomID
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("timeline: %s in %s: %v", e.Op, e.Room, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ScanResult is what a scan gathered, in ascending timestamp order.
// Events and Lines are parallel slices.
type ScanResult struct {
	Events  []Event
	Lines   []string
	Outcome Outcome

	// NextCursor resumes the scan in the same direction. When the scan
	// stopped part way through a page it points at that page, so a
	// resumed scan may see some events again. Empty when history is
	// exhausted.
	NextCursor string

	// Anchor is set when the scan started from an anchor event.
	Anchor *Anchor

	// Scanned counts every event the scan walked, kept or not.
	Scanned int
}

// FirstEventID returns the earliest returned event.
func (r *ScanResult) FirstEventID() (ref.EventID, bool) {
	if len(r.Events) == 0 {
		return ref.EventID{}, false
	}
	return r.Events[0].ID, true
}

// LastEventID returns the latest returned event.
func (r *ScanResult) LastEventID() (ref.EventID, bool) {
	if len(r.Events) == 0 {
		return ref.EventID{}, false
	}
	return r.Events[len(r.Events)-1].ID, true
}

// Transcript joins the lines, each terminated by a newline.
func (r *ScanResult) Transcript() string {
	var builder strings.Builder
	for _, line := range r.Lines {
		builder.WriteString(line)
		builder.WriteByte('\n')
	}
	return builder.String()
}
