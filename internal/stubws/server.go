// File: internal/stubws/server.go
// Package stubws
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server-side Stub-WS adapter: receives PROTO-WS Call/Describe frames
// and hands them to a local apiset.Dispatcher, translating the result
// back into Reply/DescriptionReply frames (spec.md §4.4).

package stubws

import (
	"encoding/json"

	"github.com/momentics/hioload-afb/internal/apierr"
	"github.com/momentics/hioload-afb/internal/apiset"
	"github.com/momentics/hioload-afb/internal/permexpr"
	"github.com/momentics/hioload-afb/internal/protows"
)

// CredentialChecker derives a permexpr.Checker from a call's optional
// user-credentials string, for verbs carrying a permission expression.
type CredentialChecker func(userCreds *string) permexpr.Checker

// ServerAdapter turns a PROTO-WS endpoint's incoming Call/Describe
// frames into apiset.Dispatcher invocations.
type ServerAdapter struct {
	Endpoint   *protows.Endpoint
	Dispatcher *apiset.Dispatcher
	Checker    CredentialChecker
}

// NewServerAdapter wires ep's server callbacks to dispatcher. checker
// may be nil, meaning no verb ever carries a permission expression.
func NewServerAdapter(ep *protows.Endpoint, dispatcher *apiset.Dispatcher, checker CredentialChecker) *ServerAdapter {
	a := &ServerAdapter{Endpoint: ep, Dispatcher: dispatcher, Checker: checker}
	ep.SetServerCallbacks(protows.ServerCallbacks{
		OnCall:     a.onCall,
		OnDescribe: a.onDescribe,
	})
	return a
}

func (a *ServerAdapter) onCall(call protows.Call) {
	var checker permexpr.Checker
	if a.Checker != nil {
		checker = a.Checker(call.UserCreds)
	}

	req := apiset.Xreq{
		API:         apiName(call.Verb),
		Verb:        verbName(call.Verb),
		SessionUUID: call.SessionUUID,
		JSONArgs:    call.JSONArgs,
		UserCreds:   call.UserCreds,
	}

	err := a.Dispatcher.Call(req, checker, func(result string, cerr error) {
		if cerr != nil {
			errStr := apierr.WireString(cerr)
			info := cerr.Error()
			_ = a.Endpoint.Reply(call.CallID, "null", &errStr, &info)
			return
		}
		_ = a.Endpoint.Reply(call.CallID, result, nil, nil)
	})
	if err != nil {
		errStr := apierr.WireString(err)
		info := err.Error()
		_ = a.Endpoint.Reply(call.CallID, "null", &errStr, &info)
	}
}

func (a *ServerAdapter) onDescribe(desc protows.Describe) {
	description := map[string]any{}
	body, err := json.Marshal(description)
	if err != nil {
		body = []byte("{}")
	}
	_ = a.Endpoint.DescriptionReply(desc.DescID, string(body))
}

// apiName/verbName split a wire verb of the "api/verb" convention used
// by the binder's flat verb namespace. A bare verb with no separator
// yields the empty API name, which no registered API can carry, so such
// a call fails with apiset.ErrNoSuchAPI.
func apiName(wireVerb string) string {
	for i := 0; i < len(wireVerb); i++ {
		if wireVerb[i] == '/' {
			return wireVerb[:i]
		}
	}
	return ""
}

func verbName(wireVerb string) string {
	for i := 0; i < len(wireVerb); i++ {
		if wireVerb[i] == '/' {
			return wireVerb[i+1:]
		}
	}
	return wireVerb
}
