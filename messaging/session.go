// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// Session is the Matrix surface catchup uses. *DirectSession is the
// production implementation; tests substitute in-memory fakes.
type Session interface {
	// UserID returns the Matrix user ID this session acts as.
	UserID() ref.UserID

	WhoAmI(ctx context.Context) (ref.UserID, error)
	JoinedRooms(ctx context.Context) ([]ref.RoomID, error)
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)
	RoomMessages(ctx context.Context, roomID ref.RoomID, options RoomMessagesOptions) (*RoomMessagesResponse, error)
	RoomContext(ctx context.Context, roomID ref.RoomID, eventID ref.EventID) (*ContextResponse, error)

	// RoomAccountData returns the raw content of a per-room account
	// data event for userID. A missing event is a *MatrixError with
	// ErrCodeNotFound.
	RoomAccountData(ctx context.Context, userID ref.UserID, roomID ref.RoomID, eventType string) (json.RawMessage, error)

	SendMessage(ctx context.Context, roomID ref.RoomID, content MessageContent) (ref.EventID, error)
}

var _ Session = (*DirectSession)(nil)
