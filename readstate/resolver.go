// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package readstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/catchup/lib/clock"
	"github.com/bureau-foundation/catchup/lib/ref"
)

// LiveSource supplies the live receipts for a room. *ReceiptBook is
// the production implementation.
type LiveSource interface {
	LiveReceipts(room ref.RoomID) []Receipt
}

// DurableMarker is a user's server-stored read marker. RawTimestamp is
// whatever the marker carried, in milliseconds, zero when absent; it
// is not trusted until checked.
type DurableMarker struct {
	EventID      ref.EventID
	RawTimestamp int64
}

// DurableSource fetches durable markers. A user with no marker yields
// (nil, nil). Any other failure must be returned as an error, never as
// a nil marker.
type DurableSource interface {
	DurableMarker(ctx context.Context, room ref.RoomID, user ref.UserID) (*DurableMarker, error)
}

// Position is a resolved read position. A zero Timestamp means the
// time is unknown.
type Position struct {
	EventID   ref.EventID
	Timestamp time.Time
	// Channel is the channel that supplied EventID.
	Channel Channel
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	Live    LiveSource
	Durable DurableSource

	// Clock bounds plausible durable timestamps. Nil uses the real clock.
	Clock clock.Clock

	// Logger receives debug output about channel disagreements. Nil
	// discards it.
	Logger *slog.Logger
}

// Resolver merges the live and durable channels. It keeps no state of
// its own; every call reads both channels afresh.
type Resolver struct {
	live    LiveSource
	durable DurableSource
	clock   clock.Clock
	logger  *slog.Logger
}

// NewResolver creates a Resolver. Live is required; without Durable
// only live receipts are considered.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	if config.Live == nil {
		return nil, errors.New("readstate: Live source is required")
	}
	resolverClock := config.Clock
	if resolverClock == nil {
		resolverClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		live:    config.Live,
		durable: config.Durable,
		clock:   resolverClock,
		logger:  logger,
	}, nil
}

// earliestPlausible is the lower bound for durable timestamps.
var earliestPlausible = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Resolve returns where user has read up to in room, or nil when the
// user has never read it. Durable fetch failures are returned as
// errors.
//
// The live receipt with the greatest Stamp is the live candidate. When
// the durable marker names a different event, the marker wins, and its
// own timestamp is reported only if it is plausible epoch milliseconds.
// When both name the same event, the live receipt's genuine timestamp
// is reported.
func (r *Resolver) Resolve(ctx context.Context, room ref.RoomID, user ref.UserID) (*Position, error) {
	live, liveStamp, haveLive := r.latestLive(room, user)

	var marker *DurableMarker
	if r.durable != nil {
		var err error
		marker, err = r.durable.DurableMarker(ctx, room, user)
		if err != nil {
			return nil, fmt.Errorf("readstate: durable marker for %s in %s: %w", user, room, err)
		}
	}

	switch {
	case !haveLive && marker == nil:
		return nil, nil

	case marker == nil:
		position := &Position{EventID: live.EventID, Channel: ChannelLive}
		if ts, ok := liveStamp.Time(); ok {
			position.Timestamp = ts
		}
		return position, nil

	case haveLive && marker.EventID == live.EventID:
		position := &Position{EventID: live.EventID, Channel: ChannelLive}
		if ts, ok := liveStamp.Time(); ok {
			position.Timestamp = ts
		} else {
			position.Timestamp = r.plausible(marker.RawTimestamp)
		}
		return position, nil

	default:
		if haveLive {
			r.logger.Debug("read channels disagree, using durable marker",
				"room_id", room,
				"user_id", user,
				"live_event_id", live.EventID,
				"live_stamp", liveStamp,
				"event_id", marker.EventID,
			)
		}
		return &Position{
			EventID:   marker.EventID,
			Timestamp: r.plausible(marker.RawTimestamp),
			Channel:   ChannelDurable,
		}, nil
	}
}

func (r *Resolver) latestLive(room ref.RoomID, user ref.UserID) (Receipt, Stamp, bool) {
	var (
		best      Receipt
		bestStamp Stamp
		found     bool
	)
	for _, receipt := range r.live.LiveReceipts(room) {
		if receipt.UserID != user {
			continue
		}
		stamp := StampFor(receipt.EventID, receipt.Timestamp)
		if !found || bestStamp.Less(stamp) {
			best, bestStamp, found = receipt, stamp, true
		}
	}
	return best, bestStamp, found
}

// plausible converts raw epoch milliseconds to a time, or returns the
// zero time when the value is outside [2000-01-01, now+24h].
func (r *Resolver) plausible(raw int64) time.Time {
	if raw <= 0 {
		return time.Time{}
	}
	ts := time.UnixMilli(raw).UTC()
	if ts.Before(earliestPlausible) || ts.After(r.clock.Now().Add(24*time.Hour)) {
		return time.Time{}
	}
	return ts
}
