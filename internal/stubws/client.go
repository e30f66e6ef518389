// File: internal/stubws/client.go
// Package stubws
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Client-side Stub-WS adapter: exposes a local call(api, xreq)-shaped
// API over a PROTO-WS endpoint, translating the eventual Reply (and any
// Subscribe/Unsubscribe/Push/Broadcast frames) back into local
// dispatches (spec.md §4.4).

package stubws

import (
	"sync"

	"github.com/momentics/hioload-afb/internal/protows"
)

// ClientAPI is the client-facing local handle for a remote API exposed
// over PROTO-WS.
type ClientAPI struct {
	Endpoint *protows.Endpoint

	mu            sync.Mutex
	eventNameByID map[uint32]string
	subscribers   map[string][]func(eventID uint32, jsonData string)
}

// NewClientAPI wires a client-role endpoint's event observer and
// returns the resulting ClientAPI.
func NewClientAPI(ep *protows.Endpoint) *ClientAPI {
	c := &ClientAPI{
		Endpoint:      ep,
		eventNameByID: make(map[uint32]string),
		subscribers:   make(map[string][]func(uint32, string)),
	}
	ep.SetEventObserver(c.onEvent)
	return c
}

// Call issues a remote call, delivering the eventual result/error to
// onResult exactly once (immediately on Reply, or on disconnect with an
// error reading "disconnected: server hung up").
func (c *ClientAPI) Call(api, verb, sessionUUID, jsonArgs string, userCreds *string, onResult func(result string, err error)) error {
	wireVerb := verb
	if api != "" {
		wireVerb = api + "/" + verb
	}
	return c.Endpoint.Call(wireVerb, sessionUUID, jsonArgs, userCreds, func(result, errStr, info *string) {
		if errStr != nil {
			onResult("", &protowsError{msg: *errStr, info: info})
			return
		}
		r := ""
		if result != nil {
			r = *result
		}
		onResult(r, nil)
	})
}

// OnEvent registers fn to be invoked exactly once per EventPush (and
// EventBroadcast) delivered for name, matching scenario S7: a push
// following a Subscribe bound to an in-flight call is still delivered
// through the same registry once the event id/name mapping is known.
func (c *ClientAPI) OnEvent(name string, fn func(eventID uint32, jsonData string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers[name] = append(c.subscribers[name], fn)
}

func (c *ClientAPI) onEvent(msg any) {
	switch m := msg.(type) {
	case protows.EventSubscribe:
		c.mu.Lock()
		c.eventNameByID[m.EventID] = m.EventName
		c.mu.Unlock()
	case protows.EventCreate:
		c.mu.Lock()
		c.eventNameByID[m.EventID] = m.EventName
		c.mu.Unlock()
	case protows.EventUnsubscribe:
		c.mu.Lock()
		delete(c.eventNameByID, m.EventID)
		c.mu.Unlock()
	case protows.EventRemove:
		c.mu.Lock()
		delete(c.eventNameByID, m.EventID)
		c.mu.Unlock()
	case protows.EventPush:
		c.dispatchEvent(m.EventID, m.EventName, m.JSONData)
	case protows.EventBroadcast:
		c.dispatchEvent(0, m.EventName, m.JSONData)
	}
}

func (c *ClientAPI) dispatchEvent(eventID uint32, name, jsonData string) {
	c.mu.Lock()
	fns := append([]func(uint32, string){}, c.subscribers[name]...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(eventID, jsonData)
	}
}

// protowsError wraps a remote error string plus optional diagnostic
// info into a standard error value.
type protowsError struct {
	msg  string
	info *string
}

func (e *protowsError) Error() string {
	if e.info != nil {
		return e.msg + ": " + *e.info
	}
	return e.msg
}
