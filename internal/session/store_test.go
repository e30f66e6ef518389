// File: internal/session/store_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session_test

import (
	"testing"

	"github.com/momentics/hioload-afb/internal/session"
)

// TestCloseAndReleaseDestroysSession exercises spec.md §3.1 lifetime
// rule (a) and Testable Property #9: a closed session with outstanding
// references stays in the store as an empty shell, and is destroyed
// exactly when the last reference is released.
func TestCloseAndReleaseDestroysSession(t *testing.T) {
	st := session.NewStore(session.Config{Capacity: 10})
	sess, err := st.Create("")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := sess.ID()

	post, err := session.Authorize(sess, session.Verb{Flags: session.CLOSE}, session.Request{})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	post() // marks the session closed; Create's reference is still held.

	got, ok := st.Get(id)
	if !ok {
		t.Fatal("closed session with an outstanding reference must remain in the store")
	}
	st.Release(got) // gives back the reference Get just acquired.

	// Release the original Create() reference: refcount returns to the
	// store's own baseline while the session is already closed, so it
	// must be destroyed immediately rather than lingering until a sweep
	// or capacity eviction.
	st.Release(sess)

	if _, ok := st.Get(id); ok {
		t.Fatal("expected session destroyed once its last reference was released after close")
	}
}

// TestStoreCapacity covers scenario S5: strict N_max enforcement with
// eviction only after a session is closed and fully released.
func TestStoreCapacity(t *testing.T) {
	st := session.NewStore(session.Config{Capacity: 2})

	s1, err := st.Create("")
	if err != nil {
		t.Fatalf("create s1: %v", err)
	}
	s2, err := st.Create("")
	if err != nil {
		t.Fatalf("create s2: %v", err)
	}

	if _, err := st.Create(""); err != session.ErrFull {
		t.Fatalf("expected ErrFull at capacity, got %v", err)
	}

	st.Delete(s1.ID())

	s3, err := st.Create("")
	if err != nil {
		t.Fatalf("create s3 after eviction: %v", err)
	}
	if s3.ID() == s1.ID() || s3.ID() == s2.ID() {
		t.Fatalf("s3 id collided with a prior session: %s", s3.ID())
	}
}

// TestStoreGetAfterDelete ensures a live session is retrievable and
// that a deleted session no longer is.
func TestStoreGetAfterDelete(t *testing.T) {
	st := session.NewStore(session.Config{Capacity: 10, TTL: 0})
	s, err := st.Create("")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := st.Get(s.ID()); !ok {
		t.Fatal("expected live session to be retrievable")
	}
	st.Delete(s.ID())
	if _, ok := st.Get(s.ID()); ok {
		t.Fatal("deleted session still retrievable")
	}
}

// TestCookieSemantics covers scenario S6: replace invokes the prior
// destructor exactly once, and closing the session invokes the final
// destructor exactly once.
func TestCookieSemantics(t *testing.T) {
	st := session.NewStore(session.Config{Capacity: 10})
	s, err := st.Create("")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	type key struct{}
	var freedV1, freedV2 int
	var freedVal1, freedVal2 any

	v1, installed := s.Cookie(key{}, func(closure any) any { return closure }, func(v any) {
		freedV1++
		freedVal1 = v
	}, "V1", false)
	if !installed || v1 != "V1" {
		t.Fatalf("expected install of V1, got %v installed=%v", v1, installed)
	}

	v2, installed := s.Cookie(key{}, func(closure any) any { return closure }, func(v any) {
		freedV2++
		freedVal2 = v
	}, "V2", true)
	if !installed || v2 != "V2" {
		t.Fatalf("expected replace with V2, got %v installed=%v", v2, installed)
	}
	if freedV1 != 1 || freedVal1 != "V1" {
		t.Fatalf("expected V1's destructor called exactly once with V1, got count=%d val=%v", freedV1, freedVal1)
	}

	got, ok := s.Cookie(key{}, nil, nil, "default", false)
	if !ok || got != "V2" {
		t.Fatalf("expected get to return installed V2, got %v ok=%v", got, ok)
	}

	st.Delete(s.ID())
	if freedV2 != 1 || freedVal2 != "V2" {
		t.Fatalf("expected V2's destructor called exactly once on close, got count=%d val=%v", freedV2, freedVal2)
	}
}

// TestCookieGetDefault covers the "get with default" path: no cookie
// and no make returns closure without installing anything.
func TestCookieGetDefault(t *testing.T) {
	st := session.NewStore(session.Config{Capacity: 10})
	s, err := st.Create("")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	type key struct{}
	got, installed := s.Cookie(key{}, nil, nil, "fallback", false)
	if installed {
		t.Fatal("expected no install for get-with-default path")
	}
	if got != "fallback" {
		t.Fatalf("expected fallback value, got %v", got)
	}
}
