// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated, immutable value types for the Matrix
// identifiers catchup passes around: room IDs, user IDs, and event IDs.
//
// Identifiers arrive as strings from the homeserver, the config file,
// and the query API. They are parsed into these types at the boundary
// so that the rest of the code never has to re-check a sigil or guess
// whether a string is a room or a user. All three types implement
// encoding.TextMarshaler and encoding.TextUnmarshaler, so they round
// trip through JSON, YAML, and CBOR as their canonical string form and
// can be used as map keys in decoded JSON objects.
//
// The zero value of each type is "unset" and reports IsZero. Parsing
// never produces a zero value without an error.
package ref
