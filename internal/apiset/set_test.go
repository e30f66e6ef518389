// File: internal/apiset/set_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package apiset

import "testing"

func TestAddLookupCaseInsensitive(t *testing.T) {
	s := NewSet()
	h := &Handle{Name: "Weather", Verbs: map[string]Verb{}}
	if err := s.Add("Weather", h); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, ok := s.Lookup("WEATHER")
	if !ok || got != h {
		t.Fatalf("expected case-insensitive lookup to find handle, ok=%v got=%v", ok, got)
	}
}

func TestAddDuplicateFails(t *testing.T) {
	s := NewSet()
	h := &Handle{Name: "a", Verbs: map[string]Verb{}}
	if err := s.Add("a", h); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add("A", h); err != ErrExists {
		t.Fatalf("expected ErrExists for case-insensitive duplicate, got %v", err)
	}
}

func TestAddInvalidName(t *testing.T) {
	s := NewSet()
	h := &Handle{Name: "", Verbs: map[string]Verb{}}
	cases := []string{"", "has space", "has#hash", "has\x7fdel"}
	for _, name := range cases {
		if err := s.Add(name, h); err != ErrInvalidName {
			t.Errorf("name %q: expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestLookupMaintainsSortedOrder(t *testing.T) {
	s := NewSet()
	names := []string{"zeta", "alpha", "mu", "beta"}
	for _, n := range names {
		if err := s.Add(n, &Handle{Name: n, Verbs: map[string]Verb{}}); err != nil {
			t.Fatalf("add %s: %v", n, err)
		}
	}
	for _, n := range names {
		if _, ok := s.Lookup(n); !ok {
			t.Errorf("expected to find %s after interleaved inserts", n)
		}
	}
	for i := 1; i < len(s.entries); i++ {
		if s.entries[i-1].key > s.entries[i].key {
			t.Fatalf("entries not sorted: %v", s.entries)
		}
	}
}

func TestVerbosityAndHooks(t *testing.T) {
	s := NewSet()
	h := &Handle{Name: "svc", Verbs: map[string]Verb{}}
	_ = s.Add("svc", h)

	fired := 0
	h.OnUpdateHook(func() { fired++ })

	s.SetVerbosity("svc", 3)
	if lvl, ok := s.GetVerbosity("svc"); !ok || lvl != 3 {
		t.Fatalf("expected verbosity 3, got %d ok=%v", lvl, ok)
	}

	s.UpdateHooks("svc")
	if fired != 1 {
		t.Fatalf("expected hook fired once, got %d", fired)
	}

	s.UpdateHooks("*")
	if fired != 2 {
		t.Fatalf("expected hook fired twice after broadcast, got %d", fired)
	}
}

func TestRemove(t *testing.T) {
	s := NewSet()
	_ = s.Add("x", &Handle{Name: "x", Verbs: map[string]Verb{}})
	if !s.Remove("X") {
		t.Fatal("expected case-insensitive remove to succeed")
	}
	if _, ok := s.Lookup("x"); ok {
		t.Fatal("expected x to be gone after remove")
	}
}
