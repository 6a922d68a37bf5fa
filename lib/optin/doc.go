// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package optin persists which users opted into each notification
// feature.
//
// A [Store] keeps one set of user IDs per feature. Sets are always
// read and written whole: the caller loads every set at startup and
// saves the complete set after each change. A feature that has never
// been saved loads as an empty set.
//
// Two backends exist. [FileStore] writes one CBOR file per feature,
// replacing it atomically (temporary file, fsync, rename) under an
// exclusive flock on the directory so two processes sharing a state
// directory cannot interleave writes. [SQLiteStore] keeps every
// feature in one table of a SQLite database.
package optin
