// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP helpers shared by the Matrix client and
// the query API.
//
// ReadResponse bounds every response body read at MaxResponseSize so a
// misbehaving homeserver cannot make the agent allocate without limit.
// A /messages page is at most a few hundred kilobytes; the bound only
// exists to stop pathological responses.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// MaxResponseSize bounds JSON API response body reads: 64 MB.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes. A
// body that reaches the limit is reported as an error rather than
// silently truncated, because truncated JSON would fail to decode with
// a misleading syntax error.
func ReadResponse(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxResponseSize {
		return nil, fmt.Errorf("response body exceeds %d bytes", MaxResponseSize)
	}
	return data, nil
}

// WriteJSON writes v as a JSON response with the given status code.
// Encoding errors after the header is written cannot be reported to
// the client and are returned for the caller to log.
func WriteJSON(writer http.ResponseWriter, status int, v any) error {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	return json.NewEncoder(writer).Encode(v)
}
