// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases for catchup's local state.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies the same
// pragmas to every connection: WAL journaling so readers never block
// the writer, NORMAL synchronous (state survives a process crash; the
// opt-in sets are small and rewritten whole), and a busy timeout so
// concurrent writers wait instead of failing with SQLITE_BUSY.
//
// Callers either Take and Put connections themselves or use
// [Pool.WithTx], which runs a function inside an immediate
// transaction on a borrowed connection:
//
//	err := pool.WithTx(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "DELETE FROM opt_ins WHERE feature = ?", &sqlitex.ExecOptions{
//	        Args: []any{feature},
//	    })
//	})
package sqlitepool
