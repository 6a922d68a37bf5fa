// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bureau-foundation/catchup/lib/ref"
)

// ErrUnknownFeature is returned when opting in or out of a feature
// that is not configured.
var ErrUnknownFeature = errors.New("trigger: unknown feature")

// OptInStore persists one set of opted-in users per feature. A feature
// with nothing stored loads as an empty set.
type OptInStore interface {
	Load(ctx context.Context, feature string) ([]ref.UserID, error)
	// Save replaces the stored set for feature.
	Save(ctx context.Context, feature string, users []ref.UserID) error
}

// Registry holds the configured features and who opted into each. The
// sets are loaded once at construction and written back in full after
// every change. It is safe for concurrent use.
type Registry struct {
	features []Feature
	byName   map[string]Feature
	store    OptInStore

	// mu also serializes saves, so the stored set is never older than
	// a set another caller has already observed.
	mu     sync.Mutex
	optIns map[string]map[ref.UserID]struct{}
}

// NewRegistry validates features and loads their opt-in sets.
func NewRegistry(ctx context.Context, features []Feature, store OptInStore) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("trigger: OptInStore is required")
	}
	registry := &Registry{
		byName: make(map[string]Feature, len(features)),
		store:  store,
		optIns: make(map[string]map[ref.UserID]struct{}, len(features)),
	}
	for _, feature := range features {
		if err := feature.Validate(); err != nil {
			return nil, err
		}
		if _, duplicate := registry.byName[feature.Name]; duplicate {
			return nil, fmt.Errorf("trigger: feature %q configured twice", feature.Name)
		}
		users, err := store.Load(ctx, feature.Name)
		if err != nil {
			return nil, fmt.Errorf("trigger: loading opt-ins for %q: %w", feature.Name, err)
		}
		set := make(map[ref.UserID]struct{}, len(users))
		for _, user := range users {
			set[user] = struct{}{}
		}
		registry.features = append(registry.features, feature)
		registry.byName[feature.Name] = feature
		registry.optIns[feature.Name] = set
	}
	return registry, nil
}

// Features returns the configured features in configuration order.
func (r *Registry) Features() []Feature {
	return slices.Clone(r.features)
}

// Feature looks up a feature by name.
func (r *Registry) Feature(name string) (Feature, bool) {
	feature, ok := r.byName[name]
	return feature, ok
}

// FeaturesFor returns the features user opted into, in configuration
// order.
func (r *Registry) FeaturesFor(user ref.UserID) []Feature {
	r.mu.Lock()
	defer r.mu.Unlock()
	var enabled []Feature
	for _, feature := range r.features {
		if _, ok := r.optIns[feature.Name][user]; ok {
			enabled = append(enabled, feature)
		}
	}
	return enabled
}

// Enabled reports whether user opted into feature.
func (r *Registry) Enabled(feature string, user ref.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.optIns[feature][user]
	return ok
}

// Users returns the users opted into feature, sorted.
func (r *Registry) Users(feature string) []ref.UserID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedUsers(r.optIns[feature])
}

// OptIn adds user to feature. Opting in twice is not an error.
func (r *Registry) OptIn(ctx context.Context, feature string, user ref.UserID) error {
	return r.change(ctx, feature, user, true)
}

// OptOut removes user from feature. Opting out when not opted in is
// not an error. Use Debouncer.OptOut to also drop firing state.
func (r *Registry) OptOut(ctx context.Context, feature string, user ref.UserID) error {
	return r.change(ctx, feature, user, false)
}

func (r *Registry) change(ctx context.Context, feature string, user ref.UserID, add bool) error {
	if _, ok := r.byName[feature]; !ok {
		return fmt.Errorf("%w %q", ErrUnknownFeature, feature)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.optIns[feature]
	_, present := set[user]
	if present == add {
		return nil
	}
	if add {
		set[user] = struct{}{}
	} else {
		delete(set, user)
	}
	if err := r.store.Save(ctx, feature, sortedUsers(set)); err != nil {
		// Keep memory in line with what is stored.
		if add {
			delete(set, user)
		} else {
			set[user] = struct{}{}
		}
		return fmt.Errorf("trigger: saving opt-ins for %q: %w", feature, err)
	}
	return nil
}

func sortedUsers(set map[ref.UserID]struct{}) []ref.UserID {
	users := make([]ref.UserID, 0, len(set))
	for user := range set {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b ref.UserID) int { return strings.Compare(a.String(), b.String()) })
	return users
}
