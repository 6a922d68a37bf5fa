// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bureau-foundation/catchup/lib/clock"
	"github.com/bureau-foundation/catchup/lib/ref"
	"github.com/bureau-foundation/catchup/messaging"
	"github.com/bureau-foundation/catchup/readstate"
	"github.com/bureau-foundation/catchup/timeline"
	"github.com/bureau-foundation/catchup/trigger"
)

// Config wires a Monitor to its components.
type Config struct {
	Session messaging.Session

	// Rooms are the watched rooms. Receipts from other rooms are
	// ignored and queries against them are refused.
	Rooms []ref.RoomID

	// IgnoreUsers are never observed (the agent itself and other bots).
	IgnoreUsers []ref.UserID

	Fetcher   *timeline.Fetcher
	Receipts  *readstate.ReceiptBook
	Resolver  *readstate.Resolver
	Debouncer *trigger.Debouncer

	Sync SyncConfig

	// Clock drives sync backoff. Nil uses the real clock.
	Clock clock.Clock

	// Logger receives sync and per-room errors. Nil uses slog.Default().
	Logger *slog.Logger
}

// Monitor owns the sync loop and the query operations.
type Monitor struct {
	session   messaging.Session
	rooms     []ref.RoomID
	watched   map[ref.RoomID]struct{}
	ignore    map[ref.UserID]struct{}
	fetcher   *timeline.Fetcher
	receipts  *readstate.ReceiptBook
	resolver  *readstate.Resolver
	debouncer *trigger.Debouncer
	sync      SyncConfig
	clock     clock.Clock
	logger    *slog.Logger
}

var (
	// ErrRoomNotWatched is returned by queries against rooms outside
	// the configured set.
	ErrRoomNotWatched = errors.New("monitor: room is not watched")

	// ErrInvalidWindow wraps window validation failures.
	ErrInvalidWindow = errors.New("monitor: invalid window")
)

// New validates the config and creates a Monitor.
func New(config Config) (*Monitor, error) {
	switch {
	case config.Session == nil:
		return nil, errors.New("monitor: Session is required")
	case config.Fetcher == nil:
		return nil, errors.New("monitor: Fetcher is required")
	case config.Receipts == nil:
		return nil, errors.New("monitor: Receipts is required")
	case config.Resolver == nil:
		return nil, errors.New("monitor: Resolver is required")
	case config.Debouncer == nil:
		return nil, errors.New("monitor: Debouncer is required")
	case len(config.Rooms) == 0:
		return nil, errors.New("monitor: at least one room is required")
	}

	watched := make(map[ref.RoomID]struct{}, len(config.Rooms))
	for _, room := range config.Rooms {
		watched[room] = struct{}{}
	}
	ignore := make(map[ref.UserID]struct{}, len(config.IgnoreUsers)+1)
	ignore[config.Session.UserID()] = struct{}{}
	for _, user := range config.IgnoreUsers {
		ignore[user] = struct{}{}
	}

	monitorClock := config.Clock
	if monitorClock == nil {
		monitorClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rooms := slices.Clone(config.Rooms)
	slices.SortFunc(rooms, func(a, b ref.RoomID) int { return strings.Compare(a.String(), b.String()) })

	return &Monitor{
		session:   config.Session,
		rooms:     rooms,
		watched:   watched,
		ignore:    ignore,
		fetcher:   config.Fetcher,
		receipts:  config.Receipts,
		resolver:  config.Resolver,
		debouncer: config.Debouncer,
		sync:      config.Sync.withDefaults(),
		clock:     monitorClock,
		logger:    logger,
	}, nil
}

// Rooms returns the watched rooms, sorted.
func (m *Monitor) Rooms() []ref.RoomID {
	return slices.Clone(m.rooms)
}

// Watching reports whether room is watched.
func (m *Monitor) Watching(room ref.RoomID) bool {
	_, ok := m.watched[room]
	return ok
}

func (m *Monitor) checkRoom(room ref.RoomID) error {
	if !m.Watching(room) {
		return fmt.Errorf("%w: %s", ErrRoomNotWatched, room)
	}
	return nil
}

// CheckMembership warns about watched rooms the account has not
// joined. Receipts for those rooms never arrive.
func (m *Monitor) CheckMembership(ctx context.Context) error {
	joined, err := m.session.JoinedRooms(ctx)
	if err != nil {
		return fmt.Errorf("monitor: listing joined rooms: %w", err)
	}
	for _, room := range m.rooms {
		if !slices.Contains(joined, room) {
			m.logger.Warn("watched room is not joined; no receipts will arrive", "room_id", room)
		}
	}
	return nil
}

// WindowSpec selects a scan: where it starts and when it stops.
type WindowSpec struct {
	Origin timeline.Origin
	Window timeline.Window
}

// WindowReport is the result of ScanWindow. FirstEventID and
// LastEventID are zero when no lines were gathered. Err is set for
// every outcome other than Exhausted and StoppedByPolicy.
type WindowReport struct {
	Lines        []string         `json:"lines"`
	FirstEventID ref.EventID      `json:"first_event_id,omitzero"`
	LastEventID  ref.EventID      `json:"last_event_id,omitzero"`
	Outcome      timeline.Outcome `json:"outcome"`
	NextCursor   string           `json:"next_cursor,omitempty"`
	Scanned      int              `json:"scanned"`
	Err          error            `json:"-"`
}

// ScanWindow gathers the transcript lines a window selects. Unwatched
// rooms and invalid windows are reported through Err (wrapping
// ErrRoomNotWatched or ErrInvalidWindow) without any remote call.
func (m *Monitor) ScanWindow(ctx context.Context, room ref.RoomID, spec WindowSpec) WindowReport {
	if err := m.checkRoom(room); err != nil {
		return WindowReport{Lines: []string{}, Err: err}
	}
	if err := spec.Window.ValidateFor(spec.Origin); err != nil {
		return WindowReport{Lines: []string{}, Err: fmt.Errorf("%w: %w", ErrInvalidWindow, err)}
	}
	result, err := m.fetcher.Scan(ctx, room, spec.Origin, spec.Window)
	if result == nil {
		return WindowReport{Lines: []string{}, Outcome: timeline.PartialDueToError, Err: err}
	}

	report := WindowReport{
		Lines:      result.Lines,
		Outcome:    result.Outcome,
		NextCursor: result.NextCursor,
		Scanned:    result.Scanned,
		Err:        err,
	}
	if report.Lines == nil {
		report.Lines = []string{}
	}
	if first, ok := result.FirstEventID(); ok {
		report.FirstEventID = first
	}
	if last, ok := result.LastEventID(); ok {
		report.LastEventID = last
	}
	if err != nil {
		m.logger.Warn("window scan incomplete",
			"room_id", room,
			"outcome", result.Outcome,
			"error", err,
		)
	}
	return report
}

// ReadPosition resolves where user has read up to in room. A nil
// position means the user has never read the room.
func (m *Monitor) ReadPosition(ctx context.Context, room ref.RoomID, user ref.UserID) (*readstate.Position, error) {
	if err := m.checkRoom(room); err != nil {
		return nil, err
	}
	return m.resolver.Resolve(ctx, room, user)
}

// UnreadBetween counts the messages after from up to the room head.
func (m *Monitor) UnreadBetween(ctx context.Context, room ref.RoomID, from ref.EventID, mode timeline.Mode) (*timeline.Tally, error) {
	if err := m.checkRoom(room); err != nil {
		return nil, err
	}
	return m.fetcher.Between(ctx, room, from, ref.EventID{}, mode)
}

// Observe feeds a read position to the debouncer and returns the
// names of the features that fired. Run calls it for every receipt
// update; it is exported for tools that replay positions.
func (m *Monitor) Observe(ctx context.Context, room ref.RoomID, user ref.UserID, event ref.EventID, timestamp time.Time) []string {
	return m.debouncer.Observe(ctx, room, user, event, timestamp)
}

// OptIn enables feature for user.
func (m *Monitor) OptIn(ctx context.Context, feature string, user ref.UserID) error {
	return m.debouncer.OptIn(ctx, feature, user)
}

// OptOut disables feature for user and forgets its firing history.
func (m *Monitor) OptOut(ctx context.Context, feature string, user ref.UserID) error {
	return m.debouncer.OptOut(ctx, feature, user)
}
