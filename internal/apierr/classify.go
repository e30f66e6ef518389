// File: internal/apierr/classify.go

package apierr

import (
	"context"
	"errors"

	"github.com/momentics/hioload-afb/api"
	"github.com/momentics/hioload-afb/internal/apiset"
	"github.com/momentics/hioload-afb/internal/jobs"
	"github.com/momentics/hioload-afb/internal/protows"
	"github.com/momentics/hioload-afb/internal/session"
)

// Classify maps err onto spec.md §7's error taxonomy. A nil err yields
// ErrCodeOK; an err not recognized by any subsystem falls through to
// ErrCodeInternal, matching the propagation policy's "unclassified
// internal failures surface as internal-error, never leak raw Go error
// text to callers" rule.
func Classify(err error) api.ErrorCode {
	switch {
	case err == nil:
		return api.ErrCodeOK
	case errors.Is(err, api.ErrInvalidArgument):
		return api.ErrCodeInvalidArgument
	case errors.Is(err, apiset.ErrNoSuchAPI):
		return api.ErrCodeUnknownAPI
	case errors.Is(err, apiset.ErrNoSuchVerb):
		return api.ErrCodeUnknownVerb
	case errors.Is(err, apiset.ErrExists), errors.Is(err, apiset.ErrInvalidName):
		return api.ErrCodeInvalidArgument
	case errors.Is(err, session.ErrTokenMismatch), errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrInvalidLOA), errors.Is(err, session.ErrClosed),
		errors.Is(err, session.ErrInvalidToken):
		return api.ErrCodeInvalidToken
	case errors.Is(err, session.ErrInsufficientScope):
		return api.ErrCodeInsufficientScope
	case errors.Is(err, session.ErrFull):
		return api.ErrCodeBusy
	case errors.Is(err, jobs.ErrBusy), errors.Is(err, jobs.ErrNoWorkers):
		return api.ErrCodeBusy
	case errors.Is(err, jobs.ErrTimeout), errors.Is(err, api.ErrOperationTimeout):
		return api.ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		return api.ErrCodeAborted
	case errors.Is(err, jobs.ErrTerminated), errors.Is(err, protows.ErrHungUp):
		return api.ErrCodeDisconnected
	case errors.Is(err, protows.ErrNoSuchCall), errors.Is(err, protows.ErrMalformed),
		errors.Is(err, protows.ErrShortFrame), errors.Is(err, protows.ErrUnknownOpcode):
		return api.ErrCodeInvalidArgument
	case errors.Is(err, api.ErrResourceExhausted):
		return api.ErrCodeOutOfMemory
	default:
		return api.ErrCodeInternal
	}
}

// ToError wraps err into a structured api.Error carrying the classified
// code and err's message as context, for callers that need the full
// structured form rather than just the wire taxonomy string.
func ToError(err error) *api.Error {
	if err == nil {
		return nil
	}
	code := Classify(err)
	return api.NewError(code, err.Error())
}

// WireString returns the spec.md §7 taxonomy string ("busy",
// "invalid-token", ...) that a Reply frame's error field should carry
// for err.
func WireString(err error) string {
	return Classify(err).String()
}
