// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package trigger decides when a user's reading activity fires a
// notification feature.
//
// A [Debouncer] is fed one observation per resolved read position.
// The first observation for a (room, user) only records a baseline.
// Each later observation with a new event is diffed against the
// previous one by counting the messages between them; every feature
// the user opted into fires when that count reaches its MinDelta and
// its MinInterval has passed since it last fired for that user in
// that room. Firing dispatches a [Notifier] call on a bounded pool of
// background goroutines and never blocks the caller.
//
// By default the count is taken between consecutive observations, so
// many small catch-ups never add up to a trigger. Features can choose
// [Cumulative] mode instead, which counts from the position at which
// the feature last fired.
//
// Opt-ins are held by a [Registry] backed by an [OptInStore]. All
// per-user state lives in mutex-guarded tables shared by the caller's
// goroutine and the dispatch goroutines.
package trigger
