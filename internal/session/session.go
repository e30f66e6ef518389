// File: internal/session/session.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Core session implementation: UUID identity, renewable token, LOA,
// cookie map with owner-scoped destructors, and request-scoped context.

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/momentics/hioload-afb/api"
)

// genToken mints a fresh 36-byte opaque token (spec.md §4.2 renew_token).
func genToken() string {
	return uuid.NewString()
}

// CookieKey is an opaque, comparable handle identifying both a cookie
// slot and the binding that owns it — the Go stand-in for the source's
// pointer-identity cookie keys (spec.md §9).
type CookieKey any

// cookie holds an installed value plus its owner-scoped destructor.
type cookie struct {
	value any
	free  func(any)
}

// sessionImpl holds per-session state: identity, token, LOA, cookies,
// and a generic propagation-aware context store.
type sessionImpl struct {
	mu sync.Mutex

	uuid  string
	token string
	loa   int

	createdAt  time.Time
	lastAccess time.Time
	ttl        time.Duration

	cookies map[CookieKey]cookie
	closed  bool
	refs    int

	ctx  api.Context
	done chan struct{}
	once sync.Once
}

// newSession allocates a session shell. initialToken seeds "fresh" state
// (spec.md §3.1: a session whose current token equals the initial token
// is fresh).
func newSession(id, initialToken string, ttl time.Duration) *sessionImpl {
	now := time.Now()
	return &sessionImpl{
		uuid:       id,
		token:      initialToken,
		loa:        0,
		createdAt:  now,
		lastAccess: now,
		ttl:        ttl,
		cookies:    make(map[CookieKey]cookie),
		ctx:        NewContextStore(),
		done:       make(chan struct{}),
		refs:       1,
	}
}

// ID returns the session's opaque UUID.
func (s *sessionImpl) ID() string { return s.uuid }

// Context returns the session's generic request-scoped key/value store.
func (s *sessionImpl) Context() api.Context { return s.ctx }

// Done returns a channel closed once the session is cancelled (closed
// and fully released, or swept after expiry).
func (s *sessionImpl) Done() <-chan struct{} { return s.done }

// Deadline reports the session's expiry instant.
func (s *sessionImpl) Deadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttl <= 0 {
		return time.Time{}, false
	}
	return s.lastAccess.Add(s.ttl), true
}

// Cancel triggers teardown; idempotent.
func (s *sessionImpl) Cancel() {
	s.once.Do(func() { close(s.done) })
}

// touch bumps last-access, extending the expiry window.
func (s *sessionImpl) touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

// expired reports whether the session's TTL has elapsed since last access.
func (s *sessionImpl) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttl <= 0 {
		return false
	}
	return now.After(s.lastAccess.Add(s.ttl))
}

// LOA returns the current level of assurance, in [0,3].
func (s *sessionImpl) LOA() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loa
}

// SetLOA sets the level of assurance; n must be in [0,3].
func (s *sessionImpl) SetLOA(n int) error {
	if n < 0 || n > 3 {
		return ErrInvalidLOA
	}
	s.mu.Lock()
	s.loa = n
	s.mu.Unlock()
	return nil
}

// Token returns the current token value.
func (s *sessionImpl) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// IsFresh reports whether the session's token still equals the initial
// token configured for the store (spec.md §3.1 "fresh" state).
func (s *sessionImpl) IsFresh(initialToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return constantTimeEqual(s.token, initialToken)
}

// CheckToken compares candidate against the session's current token in
// constant time (spec.md §4.2 check_token).
func (s *sessionImpl) CheckToken(candidate string) bool {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()
	return constantTimeEqual(tok, candidate)
}

// RenewToken installs a fresh token, returning it.
func (s *sessionImpl) RenewToken(newToken string) string {
	s.mu.Lock()
	s.token = newToken
	s.mu.Unlock()
	return newToken
}

// Cookie implements the get/make/replace semantics of spec.md §4.2:
//   - existing + replace: invoke existing free once, install (value, free).
//   - existing + !replace: return existing value unchanged.
//   - absent + make != nil: call make(closure), install (value, free), return value.
//   - absent + make == nil: return closure as a default, without installing.
func (s *sessionImpl) Cookie(key CookieKey, make_ func(closure any) any, free func(any), closure any, replace bool) (any, bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, false
	}
	if existing, ok := s.cookies[key]; ok {
		if !replace {
			s.mu.Unlock()
			return existing.value, true
		}
		s.mu.Unlock()
		if existing.free != nil {
			existing.free(existing.value)
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, false
		}
		nv := make_(closure)
		s.cookies[key] = cookie{value: nv, free: free}
		s.mu.Unlock()
		return nv, true
	}
	if make_ == nil {
		s.mu.Unlock()
		return closure, false
	}
	s.mu.Unlock()
	nv := make_(closure)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if free != nil {
			free(nv)
		}
		return nil, false
	}
	s.cookies[key] = cookie{value: nv, free: free}
	s.mu.Unlock()
	return nv, true
}

// RemoveCookie deletes a single cookie, invoking its destructor exactly once.
func (s *sessionImpl) RemoveCookie(key CookieKey) {
	s.mu.Lock()
	c, ok := s.cookies[key]
	if ok {
		delete(s.cookies, key)
	}
	s.mu.Unlock()
	if ok && c.free != nil {
		c.free(c.value)
	}
}

// close marks the session closed, draining and destroying every cookie.
// Destructors never run under a held lock.
func (s *sessionImpl) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	drained := s.cookies
	s.cookies = make(map[CookieKey]cookie)
	s.mu.Unlock()

	for _, c := range drained {
		if c.free != nil {
			c.free(c.value)
		}
	}
}

// isClosed reports the closed flag.
func (s *sessionImpl) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// addRef increments the reference count.
func (s *sessionImpl) addRef() {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
}

// unref decrements the reference count, returning the count after
// decrement; callers evict once it reaches zero and the session is
// closed or expired.
func (s *sessionImpl) unref() int {
	s.mu.Lock()
	s.refs--
	n := s.refs
	s.mu.Unlock()
	return n
}

// refCount reports the current reference count (diagnostic use).
func (s *sessionImpl) refCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// constantTimeEqual compares two strings without early-exit timing
// leakage, per spec.md §4.2's "constant-time" check_token wording.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := 0; i < len(a); i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
