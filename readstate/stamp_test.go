// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package readstate

import (
	"sort"
	"testing"
	"time"

	"github.com/bureau-foundation/catchup/lib/ref"
)

func TestStampOrdering(t *testing.T) {
	early := Timestamped(time.UnixMilli(1000))
	late := Timestamped(time.UnixMilli(2000))
	low := Untimestamped(1)
	high := Untimestamped(^uint64(0))

	tests := []struct {
		name string
		a, b Stamp
		want bool
	}{
		{"earlier timestamp first", early, late, true},
		{"later timestamp second", late, early, false},
		{"equal timestamps", early, early, false},
		{"untimestamped below timestamped", high, early, true},
		{"timestamped above untimestamped", early, high, false},
		{"hints compare", low, high, true},
		{"equal hints", low, low, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.a.Less(test.b); got != test.want {
				t.Errorf("%s.Less(%s) = %v, want %v", test.a, test.b, got, test.want)
			}
		})
	}
}

func TestUntimestampedNeverReportsTime(t *testing.T) {
	stamp := StampFor(ref.MustParseEventID("$abc"), time.Time{})
	if ts, ok := stamp.Time(); ok || !ts.IsZero() {
		t.Errorf("untimestamped stamp reported time %v", ts)
	}

	at := time.UnixMilli(1_700_000_000_000)
	stamp = StampFor(ref.MustParseEventID("$abc"), at)
	if ts, ok := stamp.Time(); !ok || !ts.Equal(at) {
		t.Errorf("Time() = %v, %v; want %v, true", ts, ok, at)
	}
}

func TestOrderHintStable(t *testing.T) {
	event := ref.MustParseEventID("$Rqnc-F-dvnEYJTyHq_iKxU2bZ1CI92-kuZq3a5lr5Zg")
	first := OrderHint(event)
	for range 10 {
		if got := OrderHint(event); got != first {
			t.Fatalf("OrderHint not stable: %x then %x", first, got)
		}
	}
	if OrderHint(ref.MustParseEventID("$other")) == first {
		t.Error("distinct events produced the same hint")
	}
}

func TestStampSortIsTotal(t *testing.T) {
	stamps := []Stamp{
		Timestamped(time.UnixMilli(30)),
		Untimestamped(OrderHint(ref.MustParseEventID("$x"))),
		Timestamped(time.UnixMilli(10)),
		Untimestamped(OrderHint(ref.MustParseEventID("$y"))),
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Less(stamps[j]) })
	for i, stamp := range stamps {
		_, timestamped := stamp.Time()
		if timestamped != (i >= 2) {
			t.Fatalf("position %d: %s out of place", i, stamp)
		}
	}
}
