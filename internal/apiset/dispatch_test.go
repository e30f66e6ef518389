// File: internal/apiset/dispatch_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package apiset

import (
	"context"
	"testing"
	"time"

	"github.com/momentics/hioload-afb/internal/jobs"
	"github.com/momentics/hioload-afb/internal/session"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	set := NewSet()
	store := session.NewStore(session.Config{Capacity: 10})
	engine := jobs.New(jobs.DefaultConfig())
	t.Cleanup(engine.Terminate)
	return NewDispatcher(set, store, engine)
}

func TestDispatchCreatesSessionWhenAbsent(t *testing.T) {
	d := newTestDispatcher(t)
	called := false
	h := &Handle{Name: "demo", Verbs: map[string]Verb{
		"ping": {Callback: func(ctx context.Context, req Xreq) (string, error) {
			called = true
			return `{"pong":true}`, nil
		}},
	}}
	if err := d.Set.Add("demo", h); err != nil {
		t.Fatalf("add: %v", err)
	}

	result, err := d.CallDirect(context.Background(), Xreq{API: "demo", Verb: "ping"}, nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !called || result != `{"pong":true}` {
		t.Fatalf("unexpected dispatch result: called=%v result=%q", called, result)
	}
}

func TestDispatchRequiresCheckToken(t *testing.T) {
	d := newTestDispatcher(t)
	h := &Handle{Name: "secure", Verbs: map[string]Verb{
		"op": {Flags: session.CHECK, Callback: func(ctx context.Context, req Xreq) (string, error) {
			return "ok", nil
		}},
	}}
	_ = d.Set.Add("secure", h)

	_, err := d.CallDirect(context.Background(), Xreq{API: "secure", Verb: "op", SessionUUID: "unknown"}, nil)
	if err != session.ErrInvalidToken {
		t.Fatalf("expected invalid-token for unknown session with CHECK, got %v", err)
	}
}

func TestDispatchUnknownAPIOrVerb(t *testing.T) {
	d := newTestDispatcher(t)
	_ = d.Set.Add("demo", &Handle{Name: "demo", Verbs: map[string]Verb{}})

	if _, err := d.CallDirect(context.Background(), Xreq{API: "missing", Verb: "x"}, nil); err != ErrNoSuchAPI {
		t.Fatalf("expected ErrNoSuchAPI, got %v", err)
	}
	if _, err := d.CallDirect(context.Background(), Xreq{API: "demo", Verb: "missing"}, nil); err != ErrNoSuchVerb {
		t.Fatalf("expected ErrNoSuchVerb, got %v", err)
	}
}

func TestCallSerializesPerSession(t *testing.T) {
	d := newTestDispatcher(t)
	sess, err := d.Sessions.Create("")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var log []string
	h := &Handle{Name: "demo", Verbs: map[string]Verb{
		"a": {Callback: func(ctx context.Context, req Xreq) (string, error) {
			time.Sleep(10 * time.Millisecond)
			log = append(log, "a")
			return "", nil
		}},
		"b": {Callback: func(ctx context.Context, req Xreq) (string, error) {
			log = append(log, "b")
			return "", nil
		}},
	}}
	_ = d.Set.Add("demo", h)

	done := make(chan struct{}, 2)
	_ = d.Call(Xreq{API: "demo", Verb: "a", SessionUUID: sess.ID()}, nil, func(string, error) { done <- struct{}{} })
	_ = d.Call(Xreq{API: "demo", Verb: "b", SessionUUID: sess.ID()}, nil, func(string, error) { done <- struct{}{} })

	<-done
	<-done
	if len(log) != 2 || log[0] != "a" || log[1] != "b" {
		t.Fatalf("expected FIFO per-session order [a b], got %v", log)
	}
}
