// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// Event types and message types catchup reads or writes.
const (
	EventTypeMessage   = "m.room.message"
	EventTypeReceipt   = "m.receipt"
	EventTypeFullyRead = "m.fully_read"

	MsgTypeText   = "m.text"
	MsgTypeNotice = "m.notice"
	MsgTypeEmote  = "m.emote"

	// ReceiptTypeRead is the public read receipt.
	ReceiptTypeRead = "m.read"
	// ReceiptTypeReadPrivate is only ever visible to its owner.
	ReceiptTypeReadPrivate = "m.read.private"

	// FormatHTML is the only formatted_body format in the Matrix spec.
	FormatHTML = "org.matrix.custom.html"
)

// Event is a room event as returned by /messages, /context, and /sync.
type Event struct {
	EventID        ref.EventID    `json:"event_id"`
	Type           string         `json:"type"`
	Sender         ref.UserID     `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        map[string]any `json:"content"`
	StateKey       *string        `json:"state_key,omitempty"`
}

// ContentString returns a string field from the event content, or ""
// when the field is missing or not a string.
func (e Event) ContentString(key string) string {
	value, _ := e.Content[key].(string)
	return value
}

// MessageContent is the content of an m.room.message event.
type MessageContent struct {
	MsgType       string    `json:"msgtype"`
	Body          string    `json:"body"`
	Format        string    `json:"format,omitempty"`
	FormattedBody string    `json:"formatted_body,omitempty"`
	Mentions      *Mentions `json:"m.mentions,omitempty"`
}

// Mentions lists users a message is addressed to (m.mentions).
type Mentions struct {
	UserIDs []ref.UserID `json:"user_ids,omitempty"`
}

// NewNotice creates an m.notice with a plain body and an optional HTML
// rendering. Bots send notices so that other bots do not answer them.
func NewNotice(body, html string) MessageContent {
	content := MessageContent{MsgType: MsgTypeNotice, Body: body}
	if html != "" {
		content.Format = FormatHTML
		content.FormattedBody = html
	}
	return content
}

// RoomMessagesOptions controls /messages pagination.
type RoomMessagesOptions struct {
	From      string // pagination token; empty means the room head (dir=b) or the room start (dir=f)
	Direction string // "b" (older) or "f" (newer)
	Limit     int    // max events; 0 uses the server default
}

// RoomMessagesResponse is returned by RoomMessages. End is absent when
// there are no more events in the requested direction.
type RoomMessagesResponse struct {
	Start string  `json:"start"`
	End   string  `json:"end,omitempty"`
	Chunk []Event `json:"chunk"`
}

// ContextResponse is returned by RoomContext. With limit=0, Start is a
// token positioned just before Event and End just after it.
type ContextResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Event Event  `json:"event"`
}

// FullyReadContent is the content of the m.fully_read room account
// data event. Some clients and bridges also write a timestamp; it is
// not part of the Matrix spec and is not trusted blindly.
type FullyReadContent struct {
	EventID   ref.EventID `json:"event_id"`
	Timestamp int64       `json:"ts,omitempty"`
}

// SyncOptions controls /sync.
type SyncOptions struct {
	Since      string // next_batch from the previous sync; empty for initial sync
	Timeout    int    // long-poll hold in milliseconds
	SetTimeout bool   // send the timeout parameter (distinguishes "unset" from 0)
	Filter     string // filter ID or inline JSON filter
}

// SyncResponse is the top-level /sync response.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection holds per-room sync data for joined rooms. Invites and
// left rooms are filtered out server-side.
type RoomsSection struct {
	Join map[ref.RoomID]JoinedRoom `json:"join,omitempty"`
}

// JoinedRoom contains sync data for one joined room.
type JoinedRoom struct {
	Timeline    TimelineSection    `json:"timeline"`
	Ephemeral   EphemeralSection   `json:"ephemeral"`
	AccountData AccountDataSection `json:"account_data"`
}

// TimelineSection contains timeline events from a sync response.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

// EphemeralSection contains typing notifications and receipts.
type EphemeralSection struct {
	Events []RawEvent `json:"events"`
}

// AccountDataSection contains room account data for the syncing user.
type AccountDataSection struct {
	Events []RawEvent `json:"events"`
}

// RawEvent is an event whose content is decoded on demand, by type.
type RawEvent struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// SendEventResponse is returned by SendMessage.
type SendEventResponse struct {
	EventID ref.EventID `json:"event_id"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id,omitempty"`
}

// JoinedRoomsResponse is returned by JoinedRooms.
type JoinedRoomsResponse struct {
	JoinedRooms []ref.RoomID `json:"joined_rooms"`
}
