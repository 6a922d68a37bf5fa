// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package timeline paginates a room's event history under a stop
// policy.
//
// Every windowed read in catchup goes through one scan loop in
// [Fetcher]. The loop fetches pages from a [Source], offers each event
// to a [Policy], and stops when the policy says so or history runs
// out. The window kinds (time range, anchor-relative span, message
// count, character budget) are policies built from a [Window]; the
// unread accumulator ([Fetcher.Between]) is another policy over the
// same loop.
//
// Results are always returned in ascending timestamp order regardless
// of scan direction. How a scan ended is reported as an [Outcome]:
// running out of history and reaching a policy boundary are normal
// outcomes, not errors. A failed page fetch returns what was gathered
// so far together with a [*TransportError]. A scan whose context is
// cancelled discards everything it gathered.
//
// A Fetcher holds no per-scan state and is safe for concurrent use.
package timeline
