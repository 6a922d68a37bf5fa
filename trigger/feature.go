// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// DeltaMode selects which backlog a feature's threshold is compared to.
type DeltaMode int

const (
	// Consecutive compares against the messages between the previous
	// observation and this one.
	Consecutive DeltaMode = iota
	// Cumulative compares against the messages since the observation
	// at which the feature last fired, or since the first observation
	// if it never has.
	Cumulative
)

// ParseDeltaMode parses "consecutive" (or empty) and "cumulative".
func ParseDeltaMode(raw string) (DeltaMode, error) {
	switch raw {
	case "", "consecutive":
		return Consecutive, nil
	case "cumulative":
		return Cumulative, nil
	default:
		return Consecutive, fmt.Errorf("trigger: unknown delta mode %q", raw)
	}
}

func (m DeltaMode) String() string {
	if m == Cumulative {
		return "cumulative"
	}
	return "consecutive"
}

// Feature is a notification users can opt into.
type Feature struct {
	Name        string
	MinDelta    int
	MinInterval time.Duration
	DeltaMode   DeltaMode
}

// Validate checks the feature's settings.
func (f Feature) Validate() error {
	if f.Name == "" {
		return errors.New("trigger: feature name is required")
	}
	if f.MinDelta <= 0 {
		return fmt.Errorf("trigger: feature %q: min delta must be positive, got %d", f.Name, f.MinDelta)
	}
	if f.MinInterval < 0 {
		return fmt.Errorf("trigger: feature %q: min interval must not be negative", f.Name)
	}
	if f.DeltaMode != Consecutive && f.DeltaMode != Cumulative {
		return fmt.Errorf("trigger: feature %q: invalid delta mode %d", f.Name, int(f.DeltaMode))
	}
	return nil
}

// Firing describes one fired feature.
type Firing struct {
	Room    ref.RoomID `json:"room_id"`
	User    ref.UserID `json:"user_id"`
	Feature string     `json:"feature"`

	// Count is the backlog that met the threshold. LowerBound marks a
	// count that stopped at the scan cap.
	Count      int  `json:"count"`
	LowerBound bool `json:"lower_bound,omitempty"`

	// From and To are the read positions the backlog lies between.
	From ref.EventID `json:"from_event_id"`
	To   ref.EventID `json:"to_event_id"`

	FiredAt time.Time `json:"fired_at"`
}

// Notifier delivers firings. Delivery is best effort: errors are
// logged by the Debouncer and never retried.
type Notifier interface {
	Notify(ctx context.Context, firing Firing) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, firing Firing) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, firing Firing) error { return f(ctx, firing) }
