// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/catchup/lib/clock"
	"github.com/bureau-foundation/catchup/lib/ref"
	"github.com/bureau-foundation/catchup/timeline"
)

// Counter counts the messages between two read positions.
// *timeline.Fetcher implements it.
type Counter interface {
	Between(ctx context.Context, room ref.RoomID, from, to ref.EventID, mode timeline.Mode) (*timeline.Tally, error)
}

// Default dispatch settings.
const (
	DefaultConcurrency   = 8
	DefaultNotifyTimeout = 30 * time.Second
)

// DebouncerConfig configures a Debouncer.
type DebouncerConfig struct {
	Registry *Registry
	Counter  Counter
	Notifier Notifier

	// Clock is the source of firing times. Nil uses the real clock.
	Clock clock.Clock

	// Concurrency bounds in-flight notifications. When that many are
	// running, further firings are logged and dropped. Zero uses
	// DefaultConcurrency.
	Concurrency int

	// NotifyTimeout bounds each notification. Zero uses
	// DefaultNotifyTimeout.
	NotifyTimeout time.Duration

	Logger *slog.Logger
}

type roomUser struct {
	room ref.RoomID
	user ref.UserID
}

type firingKey struct {
	room    ref.RoomID
	user    ref.UserID
	feature string
}

// observation is the last position seen for a (room, user). first is
// the position of the very first observation, the cumulative baseline
// for features that have not fired yet.
type observation struct {
	event     ref.EventID
	timestamp time.Time
	first     ref.EventID
}

// firing is the state of one feature for one (room, user).
type firing struct {
	lastFiredAt time.Time
	// baseline is the position at which the feature last fired.
	baseline ref.EventID
}

// Debouncer evaluates observations against the opted-in features.
type Debouncer struct {
	registry      *Registry
	counter       Counter
	notifier      Notifier
	clock         clock.Clock
	notifyTimeout time.Duration
	logger        *slog.Logger

	observations *table[roomUser, observation]
	firings      *table[firingKey, firing]

	dispatch errgroup.Group
}

// NewDebouncer creates a Debouncer.
func NewDebouncer(config DebouncerConfig) (*Debouncer, error) {
	if config.Registry == nil || config.Counter == nil || config.Notifier == nil {
		return nil, errors.New("trigger: Registry, Counter, and Notifier are required")
	}
	debouncerClock := config.Clock
	if debouncerClock == nil {
		debouncerClock = clock.Real()
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	notifyTimeout := config.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = DefaultNotifyTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	debouncer := &Debouncer{
		registry:      config.Registry,
		counter:       config.Counter,
		notifier:      config.Notifier,
		clock:         debouncerClock,
		notifyTimeout: notifyTimeout,
		logger:        logger,
		observations:  newTable[roomUser, observation](),
		firings:       newTable[firingKey, firing](),
	}
	debouncer.dispatch.SetLimit(concurrency)
	return debouncer, nil
}

// Observe records that user has read room up to event and fires any
// opted-in feature whose threshold the new backlog meets. It returns
// the names of the features fired. Notifications run in the
// background; Observe only blocks on the message counts.
func (d *Debouncer) Observe(ctx context.Context, room ref.RoomID, user ref.UserID, event ref.EventID, timestamp time.Time) []string {
	key := roomUser{room: room, user: user}
	previous, seen := d.observations.get(key)
	if !seen {
		d.observations.set(key, observation{event: event, timestamp: timestamp, first: event})
		return nil
	}
	if previous.event == event {
		return nil
	}
	// Counting from a later position to an earlier one never meets the
	// later one and reports the whole scan as backlog.
	if !timestamp.IsZero() && !previous.timestamp.IsZero() && timestamp.Before(previous.timestamp) {
		d.logger.Debug("read position moved backward, not evaluated",
			"room_id", room,
			"user_id", user,
			"from_event_id", previous.event,
			"event_id", event,
		)
		d.observations.set(key, observation{event: event, timestamp: timestamp, first: previous.first})
		return nil
	}

	fired := d.evaluate(ctx, room, user, previous, event)

	d.observations.set(key, observation{event: event, timestamp: timestamp, first: previous.first})
	return fired
}

func (d *Debouncer) evaluate(ctx context.Context, room ref.RoomID, user ref.UserID, previous observation, event ref.EventID) []string {
	features := d.registry.FeaturesFor(user)
	if len(features) == 0 {
		return nil
	}

	// One count per distinct starting point: every consecutive-mode
	// feature shares the count from the previous observation.
	tallies := make(map[ref.EventID]*timeline.Tally)
	failed := make(map[ref.EventID]bool)
	count := func(from ref.EventID) *timeline.Tally {
		if tally, ok := tallies[from]; ok || failed[from] {
			return tally
		}
		tally, err := d.counter.Between(ctx, room, from, event, timeline.CountOnly)
		if err != nil {
			d.logger.Warn("counting unread messages failed",
				"room_id", room,
				"user_id", user,
				"from_event_id", from,
				"event_id", event,
				"error", err,
			)
			failed[from] = true
			return nil
		}
		tallies[from] = tally
		return tally
	}

	var fired []string
	for _, feature := range features {
		key := firingKey{room: room, user: user, feature: feature.Name}
		state, hasFired := d.firings.get(key)

		from := previous.event
		if feature.DeltaMode == Cumulative {
			from = previous.first
			if hasFired {
				from = state.baseline
			}
		}
		tally := count(from)
		if tally == nil || tally.Count < feature.MinDelta {
			continue
		}

		now := d.clock.Now()
		if hasFired && now.Sub(state.lastFiredAt) < feature.MinInterval {
			d.logger.Debug("feature threshold met within min interval",
				"room_id", room,
				"user_id", user,
				"feature", feature.Name,
				"count", tally.Count,
			)
			continue
		}

		d.firings.set(key, firing{lastFiredAt: now, baseline: event})
		fired = append(fired, feature.Name)
		d.dispatchNotification(ctx, Firing{
			Room:       room,
			User:       user,
			Feature:    feature.Name,
			Count:      tally.Count,
			LowerBound: tally.LowerBound,
			From:       from,
			To:         event,
			FiredAt:    now,
		})
	}
	return fired
}

// dispatchNotification runs the notifier in the background. The
// notification outlives the caller's context but is bounded by the
// notify timeout.
func (d *Debouncer) dispatchNotification(ctx context.Context, notification Firing) {
	notifyCtx := context.WithoutCancel(ctx)
	started := d.dispatch.TryGo(func() error {
		callCtx, cancel := context.WithTimeout(notifyCtx, d.notifyTimeout)
		defer cancel()
		if err := d.notifier.Notify(callCtx, notification); err != nil {
			d.logger.Warn("notification failed",
				"room_id", notification.Room,
				"user_id", notification.User,
				"feature", notification.Feature,
				"error", err,
			)
			return nil
		}
		d.logger.Info("notification sent",
			"room_id", notification.Room,
			"user_id", notification.User,
			"feature", notification.Feature,
			"count", notification.Count,
		)
		return nil
	})
	if !started {
		d.logger.Warn("notification dropped, dispatch saturated",
			"room_id", notification.Room,
			"user_id", notification.User,
			"feature", notification.Feature,
		)
	}
}

// OptOut removes user from feature and forgets when the feature last
// fired for that user, in every room.
func (d *Debouncer) OptOut(ctx context.Context, feature string, user ref.UserID) error {
	if err := d.registry.OptOut(ctx, feature, user); err != nil {
		return err
	}
	removed := d.firings.deleteWhere(func(key firingKey) bool {
		return key.user == user && key.feature == feature
	})
	d.logger.Info("user opted out",
		"user_id", user,
		"feature", feature,
		"rooms_cleared", removed,
	)
	return nil
}

// OptIn adds user to feature.
func (d *Debouncer) OptIn(ctx context.Context, feature string, user ref.UserID) error {
	return d.registry.OptIn(ctx, feature, user)
}

// LastObserved returns the last observation for (room, user).
func (d *Debouncer) LastObserved(room ref.RoomID, user ref.UserID) (ref.EventID, time.Time, bool) {
	state, ok := d.observations.get(roomUser{room: room, user: user})
	return state.event, state.timestamp, ok
}

// LastFired returns when feature last fired for (room, user).
func (d *Debouncer) LastFired(room ref.RoomID, user ref.UserID, feature string) (time.Time, bool) {
	state, ok := d.firings.get(firingKey{room: room, user: user, feature: feature})
	return state.lastFiredAt, ok
}

// Wait blocks until every dispatched notification has finished.
func (d *Debouncer) Wait() {
	// Dispatched notifications log their own failures and return nil.
	_ = d.dispatch.Wait()
}
