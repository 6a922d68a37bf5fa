// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/bureau-foundation/catchup/trigger"
)

// DefaultMessage is used for features without a configured message.
const DefaultMessage = `{{.User}}: **{{.Count}}{{if .LowerBound}}+{{end}}** new messages in {{.Room}} since you last read it ({{.Feature}}).`

// Messages renders the Markdown message for each feature.
type Messages struct {
	byFeature map[string]*template.Template
	fallback  *template.Template
}

// ParseMessages compiles the per-feature templates. Features missing
// from sources use DefaultMessage.
func ParseMessages(sources map[string]string) (*Messages, error) {
	fallback, err := template.New("default").Option("missingkey=error").Parse(DefaultMessage)
	if err != nil {
		return nil, fmt.Errorf("notify: default message: %w", err)
	}
	messages := &Messages{byFeature: make(map[string]*template.Template, len(sources)), fallback: fallback}
	for feature, source := range sources {
		if strings.TrimSpace(source) == "" {
			continue
		}
		parsed, err := template.New(feature).Option("missingkey=error").Parse(source)
		if err != nil {
			return nil, fmt.Errorf("notify: message for feature %q: %w", feature, err)
		}
		messages.byFeature[feature] = parsed
	}
	return messages, nil
}

// Render executes the template for the firing's feature.
func (m *Messages) Render(firing trigger.Firing) (string, error) {
	tmpl, ok := m.byFeature[firing.Feature]
	if !ok {
		tmpl = m.fallback
	}
	var builder strings.Builder
	if err := tmpl.Execute(&builder, firing); err != nil {
		return "", fmt.Errorf("notify: rendering message for feature %q: %w", firing.Feature, err)
	}
	return builder.String(), nil
}
