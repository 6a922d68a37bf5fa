// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/catchup/lib/ref"
	"github.com/bureau-foundation/catchup/messaging"
	"github.com/bureau-foundation/catchup/trigger"
)

// Sender is the part of messaging.Session the Matrix notifier needs.
type Sender interface {
	SendMessage(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) (ref.EventID, error)
}

// MatrixConfig configures a MatrixNotifier.
type MatrixConfig struct {
	Sender   Sender
	Messages *Messages

	// Room receives every notice. The zero value sends each notice to
	// the room the firing came from.
	Room ref.RoomID

	Logger *slog.Logger
}

// MatrixNotifier sends firings as m.notice events.
type MatrixNotifier struct {
	sender   Sender
	messages *Messages
	room     ref.RoomID
	logger   *slog.Logger
}

// NewMatrixNotifier validates the config.
func NewMatrixNotifier(config MatrixConfig) (*MatrixNotifier, error) {
	if config.Sender == nil {
		return nil, errors.New("notify: Sender is required")
	}
	messages := config.Messages
	if messages == nil {
		var err error
		if messages, err = ParseMessages(nil); err != nil {
			return nil, err
		}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MatrixNotifier{sender: config.Sender, messages: messages, room: config.Room, logger: logger}, nil
}

// Notify renders and sends one notice.
func (n *MatrixNotifier) Notify(ctx context.Context, firing trigger.Firing) error {
	markdown, err := n.messages.Render(firing)
	if err != nil {
		return err
	}
	html, err := RenderHTML(markdown)
	if err != nil {
		return err
	}

	content := messaging.NewNotice(markdown, html)
	content.Mentions = &messaging.Mentions{UserIDs: []ref.UserID{firing.User}}

	room := n.room
	if room.IsZero() {
		room = firing.Room
	}
	eventID, err := n.sender.SendMessage(ctx, room, content)
	if err != nil {
		return fmt.Errorf("notify: sending notice to %s: %w", room, err)
	}
	n.logger.Debug("notice sent",
		"room_id", room,
		"user_id", firing.User,
		"feature", firing.Feature,
		"event_id", eventID,
	)
	return nil
}

var _ trigger.Notifier = (*MatrixNotifier)(nil)
