// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that compare against the current time (trigger debounce
// intervals, plausibility windows for read-marker timestamps) or wait
// between retries (the /sync backoff) take a Clock instead of calling
// the time package. Production code passes Real(); tests pass Fake()
// and move time forward explicitly with Advance, so debounce behavior
// is tested without sleeping.
package clock
