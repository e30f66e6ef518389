// File: internal/protows/endpoint.go
// Package protows
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Endpoint state and call/describe correlation (spec.md §4.3), grounded
// on protocol/connection.go's WSConnection (writer-mutex-guarded
// transport wrapper) and internal/jobs.Engine for the optional queuing
// hook that dispatches incoming frames onto the job engine instead of
// processing them inline.

package protows

import (
	"errors"
	"sync"
)

// Transport is the minimal write surface PROTO-WS needs from the
// underlying connection: a single atomic binary write. Implementations
// must be safe for concurrent use only insofar as Endpoint already
// serializes calls to Write under its own writer mutex.
type Transport interface {
	Write(frame []byte) error
}

// ServerCallbacks are invoked for server-role frames.
type ServerCallbacks struct {
	// OnCall handles an incoming Call; the implementation is
	// responsible for eventually invoking Endpoint.Reply with the
	// matching CallID exactly once (spec.md §4.3's on_reply guarantee).
	OnCall func(call Call)
	// OnDescribe handles an incoming Describe request.
	OnDescribe func(desc Describe)
}

// QueueFunc posts decode-and-dispatch work onto an external job engine
// instead of running it inline on the I/O goroutine (spec.md §4.3
// "queuing hook").
type QueueFunc func(func())

var (
	// ErrHungUp is delivered to in-flight calls/describes on hangup.
	ErrHungUp = errors.New("protows: server hung up")
	// ErrNoSuchCall names the case of a CallID that matches no in-flight
	// client call (already replied, or never issued). Endpoint itself
	// never returns it: dispatch drops such a Reply silently.
	ErrNoSuchCall = errors.New("protows: no such call")
)

type pendingCall struct {
	callID   uint32
	onReply  func(result, errStr, info *string)
}

type pendingDescribe struct {
	descID   uint32
	onResult func(desc *string)
}

// Endpoint is one side of a PROTO-WS connection. IsClient/IsServer are
// fixed at construction and never change.
type Endpoint struct {
	IsClient bool
	IsServer bool

	transport Transport
	queue     QueueFunc
	callbacks ServerCallbacks
	onHangup  func()

	writeMu sync.Mutex

	mu        sync.Mutex
	calls     map[uint32]*pendingCall
	describes map[uint32]*pendingDescribe
	nextID    uint32
	hungUp    bool

	onEvent func(msg any)
}

// NewEndpoint constructs an Endpoint bound to transport. Set isClient
// and/or isServer per spec.md §4.3's dual-role state.
func NewEndpoint(transport Transport, isClient, isServer bool) *Endpoint {
	return &Endpoint{
		IsClient:  isClient,
		IsServer:  isServer,
		transport: transport,
		calls:     make(map[uint32]*pendingCall),
		describes: make(map[uint32]*pendingDescribe),
	}
}

// SetServerCallbacks installs the server-role handlers.
func (e *Endpoint) SetServerCallbacks(cb ServerCallbacks) { e.callbacks = cb }

// SetQueue installs a job-engine dispatch hook for incoming frames.
func (e *Endpoint) SetQueue(q QueueFunc) { e.queue = q }

// SetOnHangup installs the user hangup callback.
func (e *Endpoint) SetOnHangup(fn func()) { e.onHangup = fn }

// nextCallID/nextDescID derive a new correlation id by linearly probing
// forward from a monotonic counter until an id unused by the relevant
// table is found (spec.md §4.3: "pointer-hash ... then linearly probed
// forward"); the counter substitutes for pointer-hashing since Go call
// records have no stable address a caller may hash safely.
func (e *Endpoint) nextCallID() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		e.nextID++
		id := e.nextID
		if id == 0 {
			continue
		}
		if _, busy := e.calls[id]; busy {
			continue
		}
		return id
	}
}

func (e *Endpoint) nextDescID() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		e.nextID++
		id := e.nextID
		if id == 0 {
			continue
		}
		if _, busy := e.describes[id]; busy {
			continue
		}
		return id
	}
}

// writeFrame serializes a single message and emits it under the writer
// mutex as one atomic transport write (spec.md §4.3 "Emission").
func (e *Endpoint) writeFrame(msg any) error {
	frame, err := Encode(msg)
	if err != nil {
		return err
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.transport.Write(frame)
}

// Call issues a client-side Call frame, registering onReply to fire
// exactly once: with the server's reply, or on hangup with the wire
// error "disconnected" and info "server hung up". Once hung up, Call
// returns ErrHungUp without registering onReply.
func (e *Endpoint) Call(verb, sessionUUID, jsonArgs string, userCreds *string, onReply func(result, errStr, info *string)) error {
	callID := e.nextCallID()

	e.mu.Lock()
	if e.hungUp {
		e.mu.Unlock()
		return ErrHungUp
	}
	e.calls[callID] = &pendingCall{callID: callID, onReply: onReply}
	e.mu.Unlock()

	err := e.writeFrame(Call{CallID: callID, Verb: verb, SessionUUID: sessionUUID, JSONArgs: jsonArgs, UserCreds: userCreds})
	if err != nil {
		// Write failure: in-flight state is left intact per spec.md
		// §4.3 failure semantics; it is cleaned up on eventual hangup.
		return err
	}
	return nil
}

// Describe issues a client-side Describe request.
func (e *Endpoint) Describe(onResult func(desc *string)) error {
	descID := e.nextDescID()

	e.mu.Lock()
	if e.hungUp {
		e.mu.Unlock()
		return ErrHungUp
	}
	e.describes[descID] = &pendingDescribe{descID: descID, onResult: onResult}
	e.mu.Unlock()

	return e.writeFrame(Describe{DescID: descID})
}

// Reply emits a server-side Reply frame for callID.
func (e *Endpoint) Reply(callID uint32, result string, errStr, info *string) error {
	return e.writeFrame(Reply{CallID: callID, Error: errStr, Info: info, JSONResult: result})
}

// DescriptionReply emits a server-side description reply.
func (e *Endpoint) DescriptionReply(descID uint32, jsonDescription string) error {
	return e.writeFrame(DescriptionReply{DescID: descID, JSONDescription: jsonDescription})
}

// EmitSubscribe/EmitUnsubscribe/EmitEventCreate/EmitEventRemove/
// EmitEventPush/EmitEventBroadcast are server-side event lifecycle
// emitters (spec.md §3.3/§4.3).

func (e *Endpoint) EmitSubscribe(callID, eventID uint32, name string) error {
	return e.writeFrame(EventSubscribe{CallID: callID, EventID: eventID, EventName: name})
}

func (e *Endpoint) EmitUnsubscribe(callID, eventID uint32, name string) error {
	return e.writeFrame(EventUnsubscribe{CallID: callID, EventID: eventID, EventName: name})
}

func (e *Endpoint) EmitEventCreate(eventID uint32, name string) error {
	return e.writeFrame(EventCreate{EventID: eventID, EventName: name})
}

func (e *Endpoint) EmitEventRemove(eventID uint32, name string) error {
	return e.writeFrame(EventRemove{EventID: eventID, EventName: name})
}

func (e *Endpoint) EmitEventPush(eventID uint32, name, jsonData string) error {
	return e.writeFrame(EventPush{EventID: eventID, EventName: name, JSONData: jsonData})
}

func (e *Endpoint) EmitEventBroadcast(name, jsonData string) error {
	return e.writeFrame(EventBroadcast{EventName: name, JSONData: jsonData})
}

// HandleIncoming decodes and dispatches exactly one frame from raw,
// returning consumed bytes as Decode does. If a queue hook is
// installed, dispatch is posted through it; otherwise it runs inline,
// per spec.md §4.3's queue_message_processing.
func (e *Endpoint) HandleIncoming(raw []byte) (consumed int, err error) {
	msg, n, err := Decode(raw)
	if err != nil {
		if err == ErrUnknownOpcode {
			// Soft error per spec.md §9: discard frame, keep connection.
			return 1, nil
		}
		if err == ErrMalformed {
			return len(raw), nil
		}
		return 0, err
	}
	if e.queue != nil {
		e.queue(func() { e.dispatch(msg) })
	} else {
		e.dispatch(msg)
	}
	return n, nil
}

func (e *Endpoint) dispatch(msg any) {
	switch m := msg.(type) {
	case Call:
		if e.callbacks.OnCall != nil {
			e.callbacks.OnCall(m)
		}
	case Describe:
		if e.callbacks.OnDescribe != nil {
			e.callbacks.OnDescribe(m)
		}
	case Reply:
		e.mu.Lock()
		pc, ok := e.calls[m.CallID]
		if ok {
			delete(e.calls, m.CallID)
		}
		e.mu.Unlock()
		if ok && pc.onReply != nil {
			result := m.JSONResult
			pc.onReply(&result, m.Error, m.Info)
		}
	case DescriptionReply:
		e.mu.Lock()
		pd, ok := e.describes[m.DescID]
		if ok {
			delete(e.describes, m.DescID)
		}
		e.mu.Unlock()
		if ok && pd.onResult != nil {
			desc := m.JSONDescription
			pd.onResult(&desc)
		}
	case EventSubscribe, EventUnsubscribe, EventCreate, EventRemove, EventPush, EventBroadcast:
		// Client-side event delivery is routed by the caller-owned
		// event registry (internal/stubws.ClientAPI), not by the endpoint
		// itself; these frames reach it via SetEventObserver below.
		if e.onEvent != nil {
			e.onEvent(m)
		}
	}
}

// SetEventObserver installs the client-side event frame sink: it
// receives EventCreate/Remove/Push/Broadcast/Subscribe/Unsubscribe
// frames for the caller (internal/stubws.ClientAPI's event registry)
// to route, without protows itself knowing about event
// bookkeeping.
func (e *Endpoint) SetEventObserver(fn func(msg any)) { e.onEvent = fn }

// Hangup runs the five-step teardown of spec.md §4.3: detach in-flight
// tables, fail every call with the wire error "disconnected" (info
// "server hung up", per spec.md §3.3/§7/Scenario S2), fail every
// describe with a nil result, invoke the user hangup callback, and mark
// the endpoint hung up so further Call/Describe fail fast with
// ErrHungUp.
func (e *Endpoint) Hangup() {
	e.mu.Lock()
	calls := e.calls
	describes := e.describes
	e.calls = make(map[uint32]*pendingCall)
	e.describes = make(map[uint32]*pendingDescribe)
	e.hungUp = true
	e.mu.Unlock()

	for _, pc := range calls {
		if pc.onReply != nil {
			errStr := "disconnected"
			info := "server hung up"
			pc.onReply(nil, &errStr, &info)
		}
	}
	for _, pd := range describes {
		if pd.onResult != nil {
			pd.onResult(nil)
		}
	}
	if e.onHangup != nil {
		e.onHangup()
	}
}
