// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Catchup watches Matrix rooms and notifies users who catch up on a
// large enough backlog.
//
// Usage:
//
//	catchup --config /etc/catchup/catchup.yaml
//
// The configuration file may also be named by CATCHUP_CONFIG. A .env
// file in the working directory is loaded first when present, which
// is the usual place for CATCHUP_ACCESS_TOKEN during development.
//
// The process runs the /sync poll loop and, when api.listen is set,
// the query API. SIGINT or SIGTERM stops both; in-flight
// notifications are allowed to finish before exit.
package main
