// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package optin

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// Store persists opt-in sets.
type Store interface {
	// Load returns the users opted into feature, or an empty slice if
	// nothing was ever saved for it.
	Load(ctx context.Context, feature string) ([]ref.UserID, error)
	// Save replaces the set for feature.
	Save(ctx context.Context, feature string, users []ref.UserID) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open opens the named backend at path: a directory for BackendFile,
// a database file for BackendSQLite.
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(path, logger)
	case BackendSQLite:
		return OpenSQLiteStore(path, logger)
	default:
		return nil, fmt.Errorf("optin: unknown backend %q (want %q or %q)", backend, BackendFile, BackendSQLite)
	}
}

var featureNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateFeatureName checks that a feature name is safe to use as a
// file name and a SQL value.
func ValidateFeatureName(feature string) error {
	if !featureNamePattern.MatchString(feature) {
		return fmt.Errorf("optin: invalid feature name %q (want lowercase letters, digits, '-' or '_')", feature)
	}
	return nil
}
