// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// The goldmark instance is configured once; Convert keeps its parse
// state per call.
var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		// Raw HTML stays escaped (goldmark's default): template values
		// such as room names come from other users.
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(
				extension.Strikethrough,
				extension.Linkify,
			),
		)
	})
	return markdownInstance
}

// RenderHTML converts Markdown to the HTML subset Matrix clients
// display in formatted_body.
func RenderHTML(markdown string) (string, error) {
	var buffer bytes.Buffer
	if err := getMarkdown().Convert([]byte(markdown), &buffer); err != nil {
		return "", fmt.Errorf("notify: rendering markdown: %w", err)
	}
	html := strings.TrimSpace(buffer.String())
	// A lone paragraph is unwrapped so single-line notices render inline.
	if strings.HasPrefix(html, "<p>") && strings.HasSuffix(html, "</p>") && strings.Count(html, "<p>") == 1 {
		html = strings.TrimSuffix(strings.TrimPrefix(html, "<p>"), "</p>")
	}
	return html, nil
}
