// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the catchup agent's configuration file.
//
// Configuration is loaded from a single file specified by either the
// CATCHUP_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks and no automatic file
// search.
//
// Files ending in .yaml or .yml are YAML. Files ending in .json or
// .jsonc are JSON, with comments and trailing commas allowed.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${XDG_STATE_HOME} and ${VAR:-default} patterns are
// expanded. The Matrix access token never lives in the file; it is
// read from the environment variable named by
// matrix.access_token_env.
//
// This package depends on no other catchup packages.
package config
