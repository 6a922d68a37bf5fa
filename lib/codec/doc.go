// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds catchup's CBOR configuration.
//
// JSON is used wherever something outside the process reads the data:
// the Matrix API and the query API. CBOR is used for the agent's own
// bytes: opt-in state files on disk and firing records published to
// NATS. Encoding uses Core Deterministic Encoding (RFC 8949 §4.2), so a
// state file rewritten with unchanged content is byte-identical and
// produces no spurious diff for operators who keep the state directory
// under version control.
//
// Types implementing encoding.TextMarshaler (ref.RoomID, ref.UserID,
// ref.EventID) encode as CBOR text strings.
package codec
