// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the catchup
// binary.
//
// Three package-level variables are injected at build time via
// -ldflags -X: [GitCommit], [BuildTime] and [Version]. When GitCommit
// is not injected, the VCS revision recorded by the Go toolchain is
// used instead.
package version
