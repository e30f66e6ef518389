// File: internal/session/authz_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session_test

import (
	"testing"

	"github.com/momentics/hioload-afb/internal/permexpr"
	"github.com/momentics/hioload-afb/internal/session"
)

func TestAuthorizeCheckToken(t *testing.T) {
	st := session.NewStore(session.Config{Capacity: 10})
	s, _ := st.Create("")

	if _, err := session.Authorize(s, session.Verb{Flags: session.CHECK}, session.Request{Token: "wrong"}); err != session.ErrInvalidToken {
		t.Fatalf("expected invalid-token, got %v", err)
	}
	if _, err := session.Authorize(s, session.Verb{Flags: session.CHECK}, session.Request{Token: s.Token()}); err != nil {
		t.Fatalf("expected success with matching token, got %v", err)
	}
}

func TestAuthorizeLOA(t *testing.T) {
	st := session.NewStore(session.Config{Capacity: 10})
	s, _ := st.Create("")

	if _, err := session.Authorize(s, session.Verb{Flags: session.LOA(2)}, session.Request{}); err != session.ErrInsufficientScope {
		t.Fatalf("expected insufficient-scope at LOA 0, got %v", err)
	}
	if err := s.SetLOA(2); err != nil {
		t.Fatalf("set loa: %v", err)
	}
	if _, err := session.Authorize(s, session.Verb{Flags: session.LOA(2)}, session.Request{}); err != nil {
		t.Fatalf("expected success at sufficient LOA, got %v", err)
	}
	if _, err := session.Authorize(s, session.Verb{Flags: session.LOA(3)}, session.Request{}); err != session.ErrInsufficientScope {
		t.Fatalf("expected insufficient-scope for higher LOA requirement, got %v", err)
	}
}

func TestAuthorizePermissionExpression(t *testing.T) {
	st := session.NewStore(session.Config{Capacity: 10})
	s, _ := st.Create("")

	expr, err := permexpr.Compile("admin and not guest")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	v := session.Verb{Permission: expr}

	deny := session.Request{Checker: func(name string) bool { return false }}
	if _, err := session.Authorize(s, v, deny); err != session.ErrInsufficientScope {
		t.Fatalf("expected insufficient-scope, got %v", err)
	}

	allow := session.Request{Checker: func(name string) bool { return name == "admin" }}
	if _, err := session.Authorize(s, v, allow); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestAuthorizeRenewAndClose(t *testing.T) {
	st := session.NewStore(session.Config{Capacity: 10})
	s, _ := st.Create("")
	oldToken := s.Token()

	post, err := session.Authorize(s, session.Verb{Flags: session.RENEW | session.CLOSE}, session.Request{})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	post()

	if s.Token() == oldToken {
		t.Fatal("expected token to be renewed post-callback")
	}
	if _, ok := s.Cookie("k", func(c any) any { return c }, nil, "v", false); ok {
		t.Fatal("expected session to be closed post-callback")
	}
}
