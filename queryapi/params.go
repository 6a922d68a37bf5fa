// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queryapi

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/bureau-foundation/catchup/lib/ref"
	"github.com/bureau-foundation/catchup/monitor"
	"github.com/bureau-foundation/catchup/timeline"
	"github.com/bureau-foundation/catchup/trigger"
)

var (
	errBadRequest     = errors.New("bad request")
	errUnknownFeature = trigger.ErrUnknownFeature
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// parseWindowSpec reads a window from query parameters. Exactly one of
// limit, chars, since+until, or span must be given; Window.Validate
// enforces that.
func parseWindowSpec(query url.Values) (monitor.WindowSpec, error) {
	var spec monitor.WindowSpec

	switch query.Get("dir") {
	case "", "b", "backward":
		spec.Window.Direction = timeline.Backward
	case "f", "forward":
		spec.Window.Direction = timeline.Forward
	default:
		return spec, badRequest("dir must be b or f, got %q", query.Get("dir"))
	}

	var err error
	if spec.Window.MaxMessages, err = intParam(query, "limit"); err != nil {
		return spec, err
	}
	if spec.Window.MaxChars, err = intParam(query, "chars"); err != nil {
		return spec, err
	}
	if spec.Window.Start, err = timeParam(query, "since"); err != nil {
		return spec, err
	}
	if spec.Window.End, err = timeParam(query, "until"); err != nil {
		return spec, err
	}
	if raw := query.Get("span"); raw != "" {
		if spec.Window.Span, err = time.ParseDuration(raw); err != nil {
			return spec, badRequest("span: %v", err)
		}
	}

	spec.Origin.Cursor = query.Get("cursor")
	if raw := query.Get("anchor"); raw != "" {
		if spec.Origin.Anchor, err = ref.ParseEventID(raw); err != nil {
			return spec, badRequest("anchor: %v", err)
		}
	}
	return spec, nil
}

func intParam(query url.Values, name string) (int, error) {
	raw := query.Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer, got %q", name, raw)
	}
	return value, nil
}

func timeParam(query url.Values, name string) (time.Time, error) {
	raw := query.Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, badRequest("%s must be an RFC 3339 time, got %q", name, raw)
	}
	return value, nil
}
