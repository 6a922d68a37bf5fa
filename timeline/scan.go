// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// DefaultPageSize is the number of events requested per page.
const DefaultPageSize = 100

// Config configures a Fetcher.
type Config struct {
	// Source is the remote event stream. Required.
	Source Source

	// PageSize is the number of events per request. Zero uses
	// DefaultPageSize.
	PageSize int

	// RequestTimeout bounds each Source call. Zero means no bound
	// beyond the caller's context.
	RequestTimeout time.Duration

	// UnreadScanCap bounds how many events Between walks. Zero uses
	// DefaultUnreadScanCap.
	UnreadScanCap int

	// IgnoreSenders are left out of windows and unread counts
	// (typically the agent itself and other bots).
	IgnoreSenders []ref.UserID

	// Formatter renders transcript lines.
	Formatter Formatter

	// Logger receives scan warnings. Nil discards them.
	Logger *slog.Logger
}

// Fetcher runs scans against a Source.
type Fetcher struct {
	source         Source
	pageSize       int
	requestTimeout time.Duration
	unreadScanCap  int
	ignore         map[ref.UserID]struct{}
	formatter      Formatter
	logger         *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(config Config) (*Fetcher, error) {
	if config.Source == nil {
		return nil, errors.New("timeline: Source is required")
	}
	if config.PageSize < 0 || config.UnreadScanCap < 0 || config.RequestTimeout < 0 {
		return nil, errors.New("timeline: page size, scan cap, and request timeout must not be negative")
	}
	pageSize := config.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	scanCap := config.UnreadScanCap
	if scanCap == 0 {
		scanCap = DefaultUnreadScanCap
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ignore := make(map[ref.UserID]struct{}, len(config.IgnoreSenders))
	for _, sender := range config.IgnoreSenders {
		ignore[sender] = struct{}{}
	}
	return &Fetcher{
		source:         config.Source,
		pageSize:       pageSize,
		requestTimeout: config.RequestTimeout,
		unreadScanCap:  scanCap,
		ignore:         ignore,
		formatter:      config.Formatter,
		logger:         logger,
	}, nil
}

// Qualifies reports whether an event counts as a message for windows
// and unread totals.
func (f *Fetcher) Qualifies(event Event) bool {
	if !event.IsMessage() {
		return false
	}
	_, ignored := f.ignore[event.Sender]
	return !ignored
}

// Scan gathers the events of room selected by window, starting at
// origin.
//
// The returned error is non-nil for PartialDueToError (a
// *TransportError, with the partial result), AnchorNotFound (wrapping
// ErrAnchorNotFound), Cancelled (wrapping the context error), and
// invalid windows (nil result).
func (f *Fetcher) Scan(ctx context.Context, room ref.RoomID, origin Origin, window Window) (*ScanResult, error) {
	if err := window.ValidateFor(origin); err != nil {
		return nil, err
	}

	var anchor *Anchor
	if !origin.Anchor.IsZero() {
		resolved, result, err := f.resolveAnchor(ctx, room, origin.Anchor)
		if err != nil {
			return result, err
		}
		anchor = resolved
	}

	var anchorTime time.Time
	if anchor != nil {
		anchorTime = anchor.Event.Timestamp
	}
	return f.walk(ctx, room, origin.Cursor, anchor, window.Direction, window.policy(anchorTime), true)
}

// ScanWith runs a scan with a caller-supplied policy. Only qualifying
// messages are offered to the policy.
func (f *Fetcher) ScanWith(ctx context.Context, room ref.RoomID, origin Origin, direction Direction, policy Policy) (*ScanResult, error) {
	if origin.Cursor != "" && !origin.Anchor.IsZero() {
		return nil, errors.New("timeline: origin has both a cursor and an anchor")
	}
	var anchor *Anchor
	if !origin.Anchor.IsZero() {
		resolved, result, err := f.resolveAnchor(ctx, room, origin.Anchor)
		if err != nil {
			return result, err
		}
		anchor = resolved
	}
	return f.walk(ctx, room, origin.Cursor, anchor, direction, policy, true)
}

func (f *Fetcher) resolveAnchor(ctx context.Context, room ref.RoomID, event ref.EventID) (*Anchor, *ScanResult, error) {
	callCtx, cancel := f.callContext(ctx)
	anchor, err := f.source.ResolveAnchor(callCtx, room, event)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ScanResult{Outcome: Cancelled}, fmt.Errorf("timeline: scan of %s cancelled: %w", room, ctx.Err())
		}
		return nil, &ScanResult{Outcome: AnchorNotFound}, fmt.Errorf("timeline: %w: %s in %s: %w", ErrAnchorNotFound, event, room, err)
	}
	return &anchor, nil, nil
}

func (f *Fetcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.requestTimeout > 0 {
		return context.WithTimeout(ctx, f.requestTimeout)
	}
	return context.WithCancel(ctx)
}

// walk is the scan loop shared by every policy. With messagesOnly set,
// non-qualifying events are skipped before the policy sees them.
func (f *Fetcher) walk(ctx context.Context, room ref.RoomID, cursor string, anchor *Anchor, direction Direction, policy Policy, messagesOnly bool) (*ScanResult, error) {
	var gathered []entry
	scanned := 0

	// offer reports whether the scan should stop, and whether the
	// event that stopped it was kept.
	offer := func(event Event) (stop, kept bool) {
		scanned++
		if messagesOnly && !f.Qualifies(event) {
			return false, false
		}
		line := f.formatter.Line(event)
		switch policy.Offer(event, line) {
		case Accept:
			gathered = append(gathered, entry{event: event, line: line})
		case AcceptAndStop:
			gathered = append(gathered, entry{event: event, line: line})
			return true, true
		case Stop:
			return true, false
		}
		return false, false
	}

	finish := func(outcome Outcome, next string) *ScanResult {
		return buildResult(gathered, direction, outcome, next, anchor, scanned)
	}

	if anchor != nil {
		if direction == Backward {
			cursor = anchor.Backward
		} else {
			cursor = anchor.Forward
		}
		if stop, _ := offer(anchor.Event); stop {
			return finish(StoppedByPolicy, cursor), nil
		}
		// A missing cursor next to the anchor means the anchor is at
		// the edge of visible history.
		if cursor == "" {
			return finish(Exhausted, ""), nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return &ScanResult{Outcome: Cancelled, Anchor: anchor}, fmt.Errorf("timeline: scan of %s cancelled: %w", room, err)
		}

		callCtx, cancel := f.callContext(ctx)
		page, err := f.source.FetchPage(callCtx, room, cursor, direction, f.pageSize)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return &ScanResult{Outcome: Cancelled, Anchor: anchor}, fmt.Errorf("timeline: scan of %s cancelled: %w", room, ctx.Err())
			}
			transportErr := &TransportError{Room: room, Op: "fetching page", Err: err}
			f.logger.Warn("scan ended early",
				"room_id", room,
				"outcome", PartialDueToError,
				"gathered", len(gathered),
				"error", err,
			)
			return finish(PartialDueToError, cursor), transportErr
		}

		for i, event := range page.Events {
			stop, kept := offer(event)
			if !stop {
				continue
			}
			// Resume after this page only when nothing in it is left
			// unseen; otherwise resume by fetching it again.
			resume := page.Start
			if resume == "" {
				resume = cursor
			}
			if kept && i == len(page.Events)-1 {
				resume = page.Next
			}
			return finish(StoppedByPolicy, resume), nil
		}

		if page.Next == "" || page.Next == cursor {
			return finish(Exhausted, ""), nil
		}
		cursor = page.Next
	}
}

type entry struct {
	event Event
	line  string
}

func buildResult(gathered []entry, direction Direction, outcome Outcome, next string, anchor *Anchor, scanned int) *ScanResult {
	if direction == Backward {
		slices.Reverse(gathered)
	}
	// Server timestamps are not guaranteed monotonic; the stable sort
	// keeps arrival order for ties and already-ordered runs.
	sort.SliceStable(gathered, func(i, j int) bool {
		return gathered[i].event.Timestamp.Before(gathered[j].event.Timestamp)
	})

	result := &ScanResult{
		Events:     make([]Event, len(gathered)),
		Lines:      make([]string, len(gathered)),
		Outcome:    outcome,
		NextCursor: next,
		Anchor:     anchor,
		Scanned:    scanned,
	}
	for i, item := range gathered {
		result.Events[i] = item.event
		result.Lines[i] = item.line
	}
	return result
}
