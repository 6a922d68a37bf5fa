// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// BuildSyncFilter returns an inline JSON filter for /sync that limits
// the response to the given rooms and to the data a read-position
// monitor needs: m.receipt ephemeral events plus the most recent
// timeline event (so the room shows up when it moves). State, presence,
// and account data are excluded.
//
// An empty room list does not restrict rooms; the server then reports
// every joined room.
func BuildSyncFilter(rooms []ref.RoomID) string {
	roomFilter := map[string]any{
		"timeline":     map[string]any{"limit": 1},
		"ephemeral":    map[string]any{"types": []string{EventTypeReceipt}},
		"state":        map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}
	if len(rooms) > 0 {
		roomStrings := make([]string, len(rooms))
		for i, room := range rooms {
			roomStrings[i] = room.String()
		}
		roomFilter["rooms"] = roomStrings
	}

	top := map[string]any{
		"room":         roomFilter,
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}

	data, _ := json.Marshal(top)
	return string(data)
}
