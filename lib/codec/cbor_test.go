// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"

	"github.com/bureau-foundation/catchup/lib/ref"
)

type sampleState struct {
	Feature string       `cbor:"feature"`
	Users   []ref.UserID `cbor:"users"`
	Updated time.Time    `cbor:"updated"`
}

func TestRefTypesEncodeAsText(t *testing.T) {
	original := sampleState{
		Feature: "catchup",
		Users:   []ref.UserID{ref.MustParseUserID("@alice:example.org")},
		Updated: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Contains(data, []byte("@alice:example.org")) {
		t.Errorf("encoded bytes do not contain the user ID as text: %x", data)
	}

	var decoded sampleState
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Feature != original.Feature || len(decoded.Users) != 1 || decoded.Users[0] != original.Users[0] {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
	if !decoded.Updated.Equal(original.Updated) {
		t.Errorf("Updated = %v, want %v", decoded.Updated, original.Updated)
	}
}

func TestDeterministicMapOrder(t *testing.T) {
	first := map[string]int{"zeta": 1, "alpha": 2, "mid": 3}
	second := map[string]int{"mid": 3, "alpha": 2, "zeta": 1}
	a, err := Marshal(first)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(second)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("equal maps encoded differently: %x vs %x", a, b)
	}
}

func TestUnmarshalRejectsInvalidUser(t *testing.T) {
	data, err := Marshal(map[string][]string{"users": {"not-a-user"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded struct {
		Users []ref.UserID `cbor:"users"`
	}
	if err := Unmarshal(data, &decoded); err == nil {
		t.Error("Unmarshal accepted an invalid user ID")
	}
}
