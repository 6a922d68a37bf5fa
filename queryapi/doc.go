// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package queryapi serves catchup's read-only queries and opt-in
// management over HTTP.
//
// Routes:
//
//	GET    /healthz
//	GET    /v1/rooms/{room}/window   ?limit= | chars= | since=&until= | span=  [&anchor=|&cursor=] [&dir=b|f]
//	GET    /v1/rooms/{room}/export   same parameters plus &compression=zstd|lz4|none
//	GET    /v1/rooms/{room}/read/{user}
//	GET    /v1/rooms/{room}/unread   ?from=<event>[&mode=count|lines]
//	PUT    /v1/features/{feature}/users/{user}
//	DELETE /v1/features/{feature}/users/{user}
//
// Scans run on the request context: a client that disconnects cancels
// its scan between page fetches and nothing partial is written.
package queryapi
