// File: internal/apierr/doc.go
// Package apierr maps the binder's scattered per-package sentinel errors
// onto the unified api.ErrorCode taxonomy of spec.md §7, so that every
// wire-level Reply carries one of the documented error-kind strings
// regardless of which subsystem raised the error.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package apierr
