// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bureau-foundation/catchup/lib/ref"
	"github.com/bureau-foundation/catchup/messaging"
	"github.com/bureau-foundation/catchup/readstate"
)

// SyncConfig configures the /sync long-poll loop.
type SyncConfig struct {
	// Timeout is how long the homeserver holds a poll open when
	// nothing happened. Default: 30 seconds.
	Timeout time.Duration

	// MaxBackoff caps the delay between retries after a failed poll.
	// The delay starts at one second and doubles. Default: 30 seconds.
	MaxBackoff time.Duration
}

func (c SyncConfig) withDefaults() SyncConfig {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	return c
}

// Run performs the initial sync, then polls until ctx is cancelled.
// Only a failed initial sync is returned as an error; later failures
// are logged and retried with backoff.
func (m *Monitor) Run(ctx context.Context) error {
	filter := messaging.BuildSyncFilter(m.rooms)

	response, err := m.session.Sync(ctx, messaging.SyncOptions{Filter: filter})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("monitor: initial sync: %w", err)
	}
	m.logger.Info("initial sync complete", "rooms", len(response.Rooms.Join))
	m.HandleSync(ctx, response)

	m.pollLoop(ctx, filter, response.NextBatch)
	return nil
}

type idleCloser interface {
	CloseIdleConnections()
}

func (m *Monitor) pollLoop(ctx context.Context, filter, sinceToken string) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		response, err := m.session.Sync(ctx, messaging.SyncOptions{
			Since:      sinceToken,
			Timeout:    int(m.sync.Timeout.Milliseconds()),
			SetTimeout: true,
			Filter:     filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Error("sync failed, retrying", "error", err, "backoff", backoff)
			// A timed-out long-poll can leave a dead pooled connection.
			if closer, ok := m.session.(idleCloser); ok {
				closer.CloseIdleConnections()
			}
			select {
			case <-ctx.Done():
				return
			case <-m.clock.After(backoff):
			}
			backoff = min(backoff*2, m.sync.MaxBackoff)
			continue
		}

		backoff = time.Second
		sinceToken = response.NextBatch
		m.HandleSync(ctx, response)
	}
}

// HandleSync processes one /sync response. Rooms are handled in a
// stable order and independently: one room's failures never stop the
// others.
func (m *Monitor) HandleSync(ctx context.Context, response *messaging.SyncResponse) {
	rooms := make([]ref.RoomID, 0, len(response.Rooms.Join))
	for room := range response.Rooms.Join {
		if m.Watching(room) {
			rooms = append(rooms, room)
		}
	}
	slices.SortFunc(rooms, func(a, b ref.RoomID) int { return strings.Compare(a.String(), b.String()) })

	for _, room := range rooms {
		if ctx.Err() != nil {
			return
		}
		m.handleRoom(ctx, room, response.Rooms.Join[room])
	}
}

func (m *Monitor) handleRoom(ctx context.Context, room ref.RoomID, joined messaging.JoinedRoom) {
	changed := make(map[ref.UserID]struct{})
	for _, event := range joined.Ephemeral.Events {
		if event.Type != messaging.EventTypeReceipt {
			continue
		}
		receipts, err := messaging.ParseReceipts(event.Content)
		if err != nil {
			m.logger.Warn("discarding malformed receipt event", "room_id", room, "error", err)
			continue
		}
		for _, receipt := range receipts {
			if !receipt.MainTimeline() {
				continue
			}
			var timestamp time.Time
			if receipt.Timestamp > 0 {
				timestamp = time.UnixMilli(receipt.Timestamp).UTC()
			}
			m.receipts.Record(room, readstate.Receipt{
				EventID:   receipt.EventID,
				UserID:    receipt.UserID,
				Timestamp: timestamp,
				Channel:   readstate.ChannelLive,
			})
			if _, ignored := m.ignore[receipt.UserID]; !ignored {
				changed[receipt.UserID] = struct{}{}
			}
		}
	}

	users := make([]ref.UserID, 0, len(changed))
	for user := range changed {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b ref.UserID) int { return strings.Compare(a.String(), b.String()) })

	for _, user := range users {
		position, err := m.resolver.Resolve(ctx, room, user)
		if err != nil {
			m.logger.Warn("resolving read position failed",
				"room_id", room,
				"user_id", user,
				"error", err,
			)
			continue
		}
		if position == nil {
			continue
		}
		fired := m.debouncer.Observe(ctx, room, user, position.EventID, position.Timestamp)
		if len(fired) > 0 {
			m.logger.Info("features fired",
				"room_id", room,
				"user_id", user,
				"event_id", position.EventID,
				"features", fired,
			)
		}
	}
}
