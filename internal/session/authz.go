// File: internal/session/authz.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Verb-dispatch authorization middleware: evaluates a verb's session
// bitfield and permission expression against a session before the verb
// callback runs, per spec.md §4.2.

package session

import (
	"errors"

	"github.com/momentics/hioload-afb/internal/permexpr"
)

// Flag is a bitfield drawn from {NONE, CHECK, CLOSE, RENEW, LOA_N}.
type Flag uint32

const (
	// NONE requires no session checks at all.
	NONE Flag = 0
	// CHECK requires a valid, non-expired token on the request.
	CHECK Flag = 1 << 0
	// CLOSE closes the session after a successful callback.
	CLOSE Flag = 1 << 1
	// RENEW rotates the token after a successful callback.
	RENEW Flag = 1 << 2

	loaShift = 8
	loaMask  = 0xff << loaShift
)

// LOA builds the flag requiring the session's LOA be at least n,
// per v3 semantics (GE-only; see spec.md §9 Design Notes).
func LOA(n int) Flag {
	return Flag(n) << loaShift
}

// requiredLOA extracts the minimum LOA encoded in f, or 0 if none set.
func requiredLOA(f Flag) int {
	return int(f&loaMask) >> loaShift
}

var (
	// ErrInvalidToken is returned when CHECK fails: no session, or the
	// request's token does not match the session's current token.
	ErrInvalidToken = errors.New("session: invalid-token")
	// ErrInsufficientScope is returned when the session's LOA or
	// permission expression does not satisfy the verb's requirements.
	ErrInsufficientScope = errors.New("session: insufficient-scope")
)

// Request carries the minimal facts the middleware needs from an
// incoming call: the session-scoped token presented by the caller, and
// a Checker resolving named permissions against the caller's effective
// credentials (spec.md §4.2 permission evaluator).
type Request struct {
	Token   string
	Checker permexpr.Checker
}

// Verb describes one API verb's session requirements.
type Verb struct {
	Flags      Flag
	Permission *permexpr.Expr // nil means "no permission expression": always allowed
}

// Authorize evaluates sess against v's requirements for req, in the
// order of spec.md §4.4 step 3 then step 4: session bits first
// (short-circuit), then the permission expression.
//
// On success it returns a postCallback hook that the caller must invoke
// exactly once, after the verb callback completes successfully, to
// apply RENEW/CLOSE post-conditions (spec.md §4.2).
func Authorize(sess Session, v Verb, req Request) (postCallback func(), err error) {
	if v.Flags&CHECK != 0 {
		if sess == nil {
			return nil, ErrInvalidToken
		}
		if !sess.CheckToken(req.Token) {
			return nil, ErrInvalidToken
		}
	}

	if n := requiredLOA(v.Flags); n > 0 {
		if sess == nil || sess.LOA() < n {
			return nil, ErrInsufficientScope
		}
	}

	if v.Permission != nil && req.Checker != nil {
		if !v.Permission.Eval(req.Checker) {
			return nil, ErrInsufficientScope
		}
	}

	return func() {
		if sess == nil {
			return
		}
		if v.Flags&RENEW != 0 {
			sess.RenewToken(newRenewalToken())
		}
		if v.Flags&CLOSE != 0 {
			if s, ok := sess.(*sessionImpl); ok {
				s.close()
			}
		}
	}, nil
}

// newRenewalToken is overridable in tests; production callers get a
// fresh UUID-shaped token.
var newRenewalToken = func() string {
	return genToken()
}
