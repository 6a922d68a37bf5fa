// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify delivers trigger firings.
//
// [MatrixNotifier] renders a per-feature Markdown template, converts
// it to HTML with goldmark, and sends it as an m.notice mentioning the
// user. [NATSNotifier] publishes the firing as CBOR on
// "<prefix>.<feature>" for other services. [Fanout] combines several
// notifiers so one firing reaches all of them.
package notify
