// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package optin

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/catchup/lib/ref"
	"github.com/bureau-foundation/catchup/lib/sqlitepool"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS opt_ins (
	feature TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (feature, user_id)
) WITHOUT ROWID;
`

// SQLiteStore keeps every feature's set in one table.
type SQLiteStore struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, sqliteSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("optin: %w", err)
	}
	return &SQLiteStore{pool: pool, logger: logger}, nil
}

// Load returns the set for feature; no rows is an empty set.
func (s *SQLiteStore) Load(ctx context.Context, feature string) ([]ref.UserID, error) {
	if err := ValidateFeatureName(feature); err != nil {
		return nil, err
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("optin: %w", err)
	}
	defer s.pool.Put(conn)

	users := []ref.UserID{}
	err = sqlitex.Execute(conn, "SELECT user_id FROM opt_ins WHERE feature = ? ORDER BY user_id", &sqlitex.ExecOptions{
		Args: []any{feature},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			raw := stmt.ColumnText(0)
			user, err := ref.ParseUserID(raw)
			if err != nil {
				s.logger.Warn("skipping invalid stored user ID", "feature", feature, "user_id", raw, "error", err)
				return nil
			}
			users = append(users, user)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("optin: loading %s: %w", feature, err)
	}
	return users, nil
}

// Save replaces the set for feature in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, feature string, users []ref.UserID) error {
	if err := ValidateFeatureName(feature); err != nil {
		return err
	}
	err := s.pool.WithTx(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "DELETE FROM opt_ins WHERE feature = ?", &sqlitex.ExecOptions{
			Args: []any{feature},
		}); err != nil {
			return err
		}
		for _, user := range users {
			if err := sqlitex.Execute(conn, "INSERT OR IGNORE INTO opt_ins (feature, user_id) VALUES (?, ?)", &sqlitex.ExecOptions{
				Args: []any{feature, user.String()},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("optin: saving %s: %w", feature, err)
	}
	s.logger.Debug("opt-in set saved", "feature", feature, "users", len(users))
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}
