// File: internal/session/doc.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session and authentication-context store for the binder: a
// capacity-bound, TTL-expiring table of UUID-identified sessions, each
// carrying a renewable token, a level-of-assurance (LOA 0-3), a cookie
// map with owner-scoped destructors, and a thread-safe, propagation-aware
// key/value context. The authz.go middleware evaluates a verb's session
// bitfield (CHECK/CLOSE/RENEW/LOA_N) and permission expression
// (internal/permexpr) before the verb callback runs.
package session
