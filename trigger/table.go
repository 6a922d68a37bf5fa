// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import "sync"

// table is a mutex-guarded map. Writes are last-write-wins.
type table[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]V
}

func newTable[K comparable, V any]() *table[K, V] {
	return &table[K, V]{entries: make(map[K]V)}
}

func (t *table[K, V]) get(key K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	value, ok := t.entries[key]
	return value, ok
}

func (t *table[K, V]) set(key K, value V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = value
}

// deleteWhere removes every entry whose key matches and returns how
// many were removed.
func (t *table[K, V]) deleteWhere(match func(K) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key := range t.entries {
		if match(key) {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}

func (t *table[K, V]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
