// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is catchup's client for the Matrix client-server
// API.
//
// [Client] holds the homeserver URL and HTTP transport. [DirectSession]
// pairs a Client with an access token and implements [Session], the
// narrow interface the rest of catchup depends on: incremental /sync
// long-polling, /messages pagination, /context lookups for anchoring a
// scan on an event, per-room account data (the m.fully_read marker),
// and sending notices.
//
// Read receipts arrive as m.receipt ephemeral events inside /sync
// responses. [ParseReceipts] flattens their nested content into one
// [Receipt] per (event, user, receipt type).
//
// All API errors are returned as [*MatrixError] carrying the Matrix
// error code and HTTP status. [IsMatrixError] tests for a specific
// code. Request URLs are built by concatenation with url.PathEscape on
// each path segment; room and event IDs contain characters ('!', '$',
// ':') that must not be double-encoded.
package messaging
