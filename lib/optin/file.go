// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package optin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/catchup/lib/codec"
	"github.com/bureau-foundation/catchup/lib/ref"
)

// fileVersion is written into every file. Files with a different
// version are rejected rather than guessed at.
const fileVersion = 1

type optInFile struct {
	Version int          `cbor:"1,keyasint"`
	Feature string       `cbor:"2,keyasint"`
	Users   []ref.UserID `cbor:"3,keyasint"`
}

// FileStore keeps one "<feature>.cbor" file per feature in a directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("optin: state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("optin: creating %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) path(feature string) string {
	return filepath.Join(s.dir, feature+".cbor")
}

// Load reads the set for feature. A missing file is an empty set.
func (s *FileStore) Load(ctx context.Context, feature string) ([]ref.UserID, error) {
	if err := ValidateFeatureName(feature); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(feature))
	if errors.Is(err, fs.ErrNotExist) {
		return []ref.UserID{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("optin: reading %s: %w", feature, err)
	}

	var file optInFile
	if err := codec.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("optin: decoding %s: %w", s.path(feature), err)
	}
	if file.Version != fileVersion {
		return nil, fmt.Errorf("optin: %s has version %d, want %d", s.path(feature), file.Version, fileVersion)
	}
	if file.Users == nil {
		file.Users = []ref.UserID{}
	}
	return file.Users, nil
}

// Save atomically replaces the file for feature.
func (s *FileStore) Save(ctx context.Context, feature string, users []ref.UserID) error {
	if err := ValidateFeatureName(feature); err != nil {
		return err
	}
	data, err := codec.Marshal(optInFile{Version: fileVersion, Feature: feature, Users: users})
	if err != nil {
		return fmt.Errorf("optin: encoding %s: %w", feature, err)
	}

	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	path := s.path(feature)
	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("optin: creating temporary file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("optin: writing %s: %w", temporaryPath, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("optin: syncing %s: %w", temporaryPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("optin: closing %s: %w", temporaryPath, err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("optin: replacing %s: %w", path, err)
	}

	s.logger.Debug("opt-in set saved", "feature", feature, "users", len(users))
	return nil
}

// lock takes an exclusive flock on the directory's lock file.
func (s *FileStore) lock() (func(), error) {
	lockPath := filepath.Join(s.dir, ".lock")
	file, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("optin: opening lock file: %w", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		file.Close()
		return nil, fmt.Errorf("optin: locking %s: %w", lockPath, err)
	}
	return func() {
		unix.Flock(int(file.Fd()), unix.LOCK_UN)
		file.Close()
	}, nil
}

// Close is a no-op; files are not held open between calls.
func (s *FileStore) Close() error { return nil }
