// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package readstate resolves where a user has read up to in a room.
//
// Two signals exist and they disagree in practice. The live channel is
// the stream of read receipts seen on /sync: timestamped, frequent,
// and possibly stale by the time it is read back, since several sync
// cycles of receipts accumulate in a [ReceiptBook]. The durable channel
// is a single marker stored server-side per user (m.fully_read): one
// event ID, usually without a trustworthy timestamp, but the freshest
// durable statement of the user's position.
//
// [Resolver.Resolve] merges them into one [Position]. Receipts are
// ordered by [Stamp], which keeps receipts without a timestamp
// orderable without ever reporting their ordering key as a time.
package readstate
