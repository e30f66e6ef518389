// File: internal/apiset/doc.go
// Package apiset implements the binder's sorted API Set (spec.md §4.4):
// a dichotomically-searched, case-insensitive, lexicographically-ordered
// table of (name, handle), plus the call dispatch algorithm that turns a
// decoded request into a session lookup, authorization check, permission
// evaluation, and job-engine enqueue.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package apiset
