// File: internal/protows/endpoint_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protows

import (
	"sync"
	"testing"
)

type memTransport struct {
	mu     sync.Mutex
	frames [][]byte
}

func (m *memTransport) Write(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte(nil), frame...)
	m.frames = append(m.frames, cp)
	return nil
}

func (m *memTransport) last() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames[len(m.frames)-1]
}

// TestCallReplyCorrelation exercises the client-side Call path: on
// decoding the matching Reply, onReply fires exactly once with the
// server's result.
func TestCallReplyCorrelation(t *testing.T) {
	tr := &memTransport{}
	ep := NewEndpoint(tr, true, false)

	var gotResult *string
	fired := 0
	err := ep.Call("ping", "sess-1", "{}", nil, func(result, errStr, info *string) {
		fired++
		gotResult = result
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	frame := tr.last()
	decoded, _, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode emitted call: %v", err)
	}
	call := decoded.(Call)

	reply, _ := Encode(Reply{CallID: call.CallID, JSONResult: `{"pong":true}`})
	if _, err := ep.HandleIncoming(reply); err != nil {
		t.Fatalf("handle reply: %v", err)
	}

	if fired != 1 {
		t.Fatalf("expected onReply exactly once, fired %d times", fired)
	}
	if gotResult == nil || *gotResult != `{"pong":true}` {
		t.Fatalf("unexpected result: %v", gotResult)
	}
}

// TestHangupFailsInFlightCallsOnce ensures every pending call's onReply
// fires exactly once on Hangup with the wire error "disconnected" (info
// "server hung up", per spec.md §3.3/§7/Scenario S2), and that a call
// issued after the hangup fails fast with ErrHungUp.
func TestHangupFailsInFlightCallsOnce(t *testing.T) {
	tr := &memTransport{}
	ep := NewEndpoint(tr, true, false)

	fired := 0
	var gotErr, gotInfo *string
	_ = ep.Call("v", "s", "{}", nil, func(result, errStr, info *string) {
		fired++
		gotErr = errStr
		gotInfo = info
	})

	ep.Hangup()
	if fired != 1 {
		t.Fatalf("expected exactly one hangup notification, got %d", fired)
	}
	if gotErr == nil || *gotErr != "disconnected" {
		t.Fatalf("expected wire error \"disconnected\", got %v", gotErr)
	}
	if gotInfo == nil || *gotInfo != "server hung up" {
		t.Fatalf("expected info \"server hung up\", got %v", gotInfo)
	}

	// A call issued post-hangup must fail fast.
	err := ep.Call("v2", "s", "{}", nil, func(result, errStr, info *string) {
		t.Fatal("callback should never run for a post-hangup call")
	})
	if err != ErrHungUp {
		t.Fatalf("expected ErrHungUp on post-hangup call, got %v", err)
	}
}

// TestSubscribeTiedToCall covers scenario S7: within a call, a
// subscribe frame followed by the reply, followed later by an event
// push, must deliver exactly once to the observer, and may be observed
// after either the subscribe or the reply.
func TestSubscribeTiedToCall(t *testing.T) {
	tr := &memTransport{}
	ep := NewEndpoint(tr, true, false)

	var seen []any
	ep.SetEventObserver(func(msg any) { seen = append(seen, msg) })

	var replied bool
	_ = ep.Call("watch", "s", "{}", nil, func(result, errStr, info *string) { replied = true })

	callFrame, _, _ := Decode(tr.last())
	callID := callFrame.(Call).CallID

	sub, _ := Encode(EventSubscribe{CallID: callID, EventID: 11, EventName: "x"})
	if _, err := ep.HandleIncoming(sub); err != nil {
		t.Fatalf("handle subscribe: %v", err)
	}

	reply, _ := Encode(Reply{CallID: callID, JSONResult: "{}"})
	if _, err := ep.HandleIncoming(reply); err != nil {
		t.Fatalf("handle reply: %v", err)
	}
	if !replied {
		t.Fatal("expected reply callback to run")
	}

	push, _ := Encode(EventPush{EventID: 11, EventName: "x", JSONData: `{"v":1}`})
	if _, err := ep.HandleIncoming(push); err != nil {
		t.Fatalf("handle push: %v", err)
	}

	pushCount := 0
	for _, m := range seen {
		if p, ok := m.(EventPush); ok && p.EventID == 11 && p.EventName == "x" {
			pushCount++
		}
	}
	if pushCount != 1 {
		t.Fatalf("expected event push observed exactly once, got %d", pushCount)
	}
}

// TestUnknownOpcodeIsSoftError ensures an unrecognized leading byte
// discards the offending byte without erroring the connection.
func TestUnknownOpcodeIsSoftError(t *testing.T) {
	tr := &memTransport{}
	ep := NewEndpoint(tr, false, true)
	n, err := ep.HandleIncoming([]byte{'?', 1, 2, 3})
	if err != nil {
		t.Fatalf("expected soft-error nil, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 byte discarded, got %d", n)
	}
}
