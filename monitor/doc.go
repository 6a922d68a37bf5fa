// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package monitor connects catchup's core to a Matrix homeserver.
//
// [MatrixSource] and [MatrixMarkers] adapt a [messaging.Session] to
// the collaborator interfaces of the timeline and readstate packages.
// [Monitor] runs the /sync long-poll loop: every batch of m.receipt
// events is recorded in the receipt book, each affected user's read
// position is resolved, and the position is fed to the trigger
// debouncer. The loop is the only caller of Observe.
//
// Monitor also exposes the operations used by the query API:
// [Monitor.ScanWindow], [Monitor.ReadPosition] and
// [Monitor.UnreadBetween].
package monitor
