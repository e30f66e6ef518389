// File: internal/apiset/dispatch.go
// Package apiset
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Call dispatch algorithm of spec.md §4.4: resolve the API, attach or
// create the session, authorize the verb, evaluate its permission
// expression, then run the callback either inline (CallDirect) or as a
// job-engine job serialized per session (Call).

package apiset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-afb/internal/jobs"
	"github.com/momentics/hioload-afb/internal/permexpr"
	"github.com/momentics/hioload-afb/internal/session"
)

var (
	// ErrNoSuchAPI is returned when Xreq.API resolves to no Handle.
	ErrNoSuchAPI = errors.New("apiset: no such api")
	// ErrNoSuchVerb is returned when Xreq.Verb resolves to no Verb on
	// an otherwise-valid Handle.
	ErrNoSuchVerb = errors.New("apiset: no such verb")
)

// Dispatcher wires a Set to a session.Store and a jobs.Engine,
// implementing spec.md §4.4's numbered call algorithm.
type Dispatcher struct {
	Set         *Set
	Sessions    *session.Store
	Jobs        *jobs.Engine
	APIsTimeout time.Duration
}

// NewDispatcher constructs a Dispatcher with spec-reasonable defaults.
func NewDispatcher(set *Set, sessions *session.Store, engine *jobs.Engine) *Dispatcher {
	return &Dispatcher{Set: set, Sessions: sessions, Jobs: engine, APIsTimeout: 20 * time.Second}
}

// resolve implements steps 1-4 of spec.md §4.4: API/verb lookup,
// session lookup-or-attach, and authorization (session bits + permission
// expression). It returns the resolved session, verb, and a
// post-callback hook to run after a successful verb invocation.
func (d *Dispatcher) resolve(req Xreq, checker permexpr.Checker) (sess session.Session, v Verb, post func(), err error) {
	handle, ok := d.Set.Lookup(req.API)
	if !ok {
		return nil, Verb{}, nil, ErrNoSuchAPI
	}
	v, ok = handle.Verbs[req.Verb]
	if !ok {
		return nil, Verb{}, nil, ErrNoSuchVerb
	}

	var sessOK bool
	if req.SessionUUID != "" {
		sess, sessOK = d.Sessions.Get(req.SessionUUID)
	}
	if !sessOK {
		if v.Flags&session.CHECK != 0 {
			return nil, Verb{}, nil, session.ErrInvalidToken
		}
		sess, err = d.Sessions.Create(req.SessionUUID)
		if err != nil {
			return nil, Verb{}, nil, err
		}
	}

	var candidateToken string
	if req.UserCreds != nil {
		candidateToken = *req.UserCreds
	}
	post, err = session.Authorize(sess, session.Verb{Flags: v.Flags, Permission: v.Permission}, session.Request{
		Token:   candidateToken,
		Checker: checker,
	})
	if err != nil {
		// Authorization failed: drop the reference Get/Create just
		// handed us (spec.md §4.2 addref/unref discipline) so a
		// rejected call never leaks a hold on the session.
		d.Sessions.Release(sess)
		return nil, Verb{}, nil, err
	}
	return sess, v, post, nil
}

// CallDirect runs req's verb callback synchronously on the calling
// goroutine, bypassing the job engine (spec.md §4.4 "used when no job
// fan-out is desired").
func (d *Dispatcher) CallDirect(ctx context.Context, req Xreq, checker permexpr.Checker) (result string, err error) {
	sess, v, post, rerr := d.resolve(req, checker)
	if rerr != nil {
		return "", rerr
	}
	defer d.Sessions.Release(sess)
	result, err = v.Callback(ctx, req)
	if err == nil {
		post()
	}
	return result, err
}

// Call implements spec.md §4.4 step 5/6: enqueue a job that runs the
// verb callback, group = the session (serializing per-session verbs),
// timeout = d.APIsTimeout. onComplete fires exactly once with the
// verb's result or error. The reference resolve() acquired on sess is
// released exactly once, whether the job runs, is cancelled, or never
// gets queued at all.
func (d *Dispatcher) Call(req Xreq, checker permexpr.Checker, onComplete func(result string, err error)) error {
	sess, v, post, err := d.resolve(req, checker)
	if err != nil {
		return err
	}

	qerr := d.Jobs.Queue(sess, d.APIsTimeout, func(ctx context.Context, cancelled bool, a1, a2, a3 any) {
		defer d.Sessions.Release(sess)
		defer func() {
			if r := recover(); r != nil {
				onComplete("", fmt.Errorf("apiset: verb callback panicked: %v", r))
			}
		}()
		if cancelled {
			onComplete("", context.DeadlineExceeded)
			return
		}
		result, cerr := v.Callback(ctx, req)
		if cerr == nil {
			post()
		}
		onComplete(result, cerr)
	}, nil, nil, nil)
	if qerr != nil {
		d.Sessions.Release(sess)
	}
	return qerr
}
