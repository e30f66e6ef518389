// File: internal/permexpr/doc.go
// Package permexpr implements the verb permission-expression grammar of
// spec.md §4.2:
//
//	expr := or (',' or)*
//	or   := and ('or' and)*
//	and  := not ('and' not)*
//	not  := 'not' term | term
//	term := name | '(' or ')'
//
// Keywords ("and", "or", "not") are case-insensitive. Expressions are
// parsed once, at binding-load time, into a compiled Expr tree; parse
// failures are therefore a load-time EINVAL, never a per-request error.
// Evaluation is a pure function of a caller-supplied predicate and is
// short-circuiting.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package permexpr
