// File: internal/stubws/stubws_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stubws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-afb/internal/apiset"
	"github.com/momentics/hioload-afb/internal/jobs"
	"github.com/momentics/hioload-afb/internal/protows"
	"github.com/momentics/hioload-afb/internal/session"
)

// pipeTransport connects a client and server Endpoint back to back
// in-process, feeding each side's writes to the other's HandleIncoming.
type pipeTransport struct {
	mu   sync.Mutex
	peer *protows.Endpoint
}

func (p *pipeTransport) Write(frame []byte) error {
	p.mu.Lock()
	peer := p.peer
	p.mu.Unlock()
	buf := append([]byte(nil), frame...)
	for len(buf) > 0 {
		n, err := peer.HandleIncoming(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		buf = buf[n:]
	}
	return nil
}

func TestClientServerRoundTrip(t *testing.T) {
	set := apiset.NewSet()
	store := session.NewStore(session.Config{Capacity: 10})
	engine := jobs.New(jobs.DefaultConfig())
	t.Cleanup(engine.Terminate)
	dispatcher := apiset.NewDispatcher(set, store, engine)

	_ = set.Add("demo", &apiset.Handle{Name: "demo", Verbs: map[string]apiset.Verb{
		"echo": {Callback: func(ctx context.Context, req apiset.Xreq) (string, error) {
			return req.JSONArgs, nil
		}},
	}})

	clientTr := &pipeTransport{}
	serverTr := &pipeTransport{}

	clientEP := protows.NewEndpoint(clientTr, true, false)
	serverEP := protows.NewEndpoint(serverTr, false, true)
	clientTr.peer = serverEP
	serverTr.peer = clientEP

	_ = NewServerAdapter(serverEP, dispatcher, nil)
	client := NewClientAPI(clientEP)

	result := make(chan string, 1)
	errc := make(chan error, 1)
	err := client.Call("demo", "echo", "", `{"hello":"world"}`, nil, func(r string, e error) {
		if e != nil {
			errc <- e
			return
		}
		result <- r
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	select {
	case r := <-result:
		if r != `{"hello":"world"}` {
			t.Fatalf("unexpected echo result: %q", r)
		}
	case e := <-errc:
		t.Fatalf("unexpected error: %v", e)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for round trip")
	}
}

func TestClientServerUnknownVerbFails(t *testing.T) {
	set := apiset.NewSet()
	store := session.NewStore(session.Config{Capacity: 10})
	engine := jobs.New(jobs.DefaultConfig())
	t.Cleanup(engine.Terminate)
	dispatcher := apiset.NewDispatcher(set, store, engine)
	_ = set.Add("demo", &apiset.Handle{Name: "demo", Verbs: map[string]apiset.Verb{}})

	clientTr := &pipeTransport{}
	serverTr := &pipeTransport{}
	clientEP := protows.NewEndpoint(clientTr, true, false)
	serverEP := protows.NewEndpoint(serverTr, false, true)
	clientTr.peer = serverEP
	serverTr.peer = clientEP

	_ = NewServerAdapter(serverEP, dispatcher, nil)
	client := NewClientAPI(clientEP)

	errc := make(chan error, 1)
	_ = client.Call("demo", "missing", "", "{}", nil, func(r string, e error) {
		errc <- e
	})

	select {
	case e := <-errc:
		if e == nil {
			t.Fatal("expected an error for unknown verb")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
	}
}
