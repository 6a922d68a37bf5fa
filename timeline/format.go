// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultLineLayout is the time layout used in transcript lines.
const DefaultLineLayout = "2006-01-02 15:04"

// Formatter renders events as single transcript lines:
//
//	[2026-03-01 14:05] @alice:example.org: hello
//	[2026-03-01 14:06] * @bob:example.org waves
//
// Multi-line bodies are flattened so that one event is one line.
type Formatter struct {
	// Layout is the time.Format layout. Empty uses DefaultLineLayout.
	Layout string
	// Location is the zone timestamps are shown in. Nil means UTC.
	Location *time.Location
}

// Line formats one event.
func (f Formatter) Line(event Event) string {
	layout := f.Layout
	if layout == "" {
		layout = DefaultLineLayout
	}
	location := f.Location
	if location == nil {
		location = time.UTC
	}

	var builder strings.Builder
	builder.WriteByte('[')
	builder.WriteString(event.Timestamp.In(location).Format(layout))
	builder.WriteString("] ")
	body := flatten(event.Body)
	if event.MsgType == MsgTypeEmote {
		builder.WriteString("* ")
		builder.WriteString(event.Sender.String())
		builder.WriteByte(' ')
		builder.WriteString(body)
	} else {
		builder.WriteString(event.Sender.String())
		builder.WriteString(": ")
		builder.WriteString(body)
	}
	return builder.String()
}

// LineCost is what a line consumes from a character budget: its rune
// count plus the newline that terminates it in a transcript.
func LineCost(line string) int {
	return utf8.RuneCountInString(line) + 1
}

func flatten(body string) string {
	if !strings.ContainsAny(body, "\r\n") {
		return body
	}
	var parts []string
	for _, part := range strings.FieldsFunc(body, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}
