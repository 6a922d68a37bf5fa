// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// splitServerID splits a sigil-prefixed Matrix identifier of the form
// <sigil>localpart:server into its localpart and server parts.
func splitServerID(raw string, sigil byte, kind string) (localpart, server string, err error) {
	if raw == "" {
		return "", "", fmt.Errorf("empty %s", kind)
	}
	if raw[0] != sigil {
		return "", "", fmt.Errorf("%s must start with '%c': %q", kind, sigil, raw)
	}
	colon := strings.IndexByte(raw, ':')
	if colon < 0 {
		return "", "", fmt.Errorf("%s missing ':server' suffix: %q", kind, raw)
	}
	localpart = raw[1:colon]
	server = raw[colon+1:]
	if localpart == "" {
		return "", "", fmt.Errorf("%s has empty local part: %q", kind, raw)
	}
	if server == "" {
		return "", "", fmt.Errorf("%s has empty server name: %q", kind, raw)
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return "", "", fmt.Errorf("%s contains whitespace: %q", kind, raw)
	}
	return localpart, server, nil
}
