// File: internal/session/errors.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import "errors"

var (
	// ErrInvalidLOA is returned by SetLOA for a level outside [0,3].
	ErrInvalidLOA = errors.New("session: level of assurance out of range [0,3]")

	// ErrFull is returned by Store.Create when the store is already at
	// its configured capacity and no closable session could be evicted
	// to make room (spec.md §4.2 N_max).
	ErrFull = errors.New("session: store at capacity")

	// ErrNotFound is returned when a session id has no live entry.
	ErrNotFound = errors.New("session: not found")

	// ErrClosed is returned by operations against an already-closed
	// session.
	ErrClosed = errors.New("session: closed")

	// ErrTokenMismatch is returned by RenewToken/CheckToken-gated
	// operations when the supplied token does not match the current one.
	ErrTokenMismatch = errors.New("session: token mismatch")
)
