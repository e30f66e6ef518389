// File: cmd/afbd/main.go
// Command afbd is the binder daemon: it wires the job engine, session
// store, PROTO-WS framing and the API set/Stub-WS dispatch pipeline
// behind a single listener, the way facade.HioloadWS wires the
// teacher's own subsystems (server/hioload.go).
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/momentics/hioload-afb/adapters"
	"github.com/momentics/hioload-afb/internal/afbdebug"
	"github.com/momentics/hioload-afb/internal/apiset"
	"github.com/momentics/hioload-afb/internal/jobs"
	"github.com/momentics/hioload-afb/internal/protows"
	"github.com/momentics/hioload-afb/internal/session"
	"github.com/momentics/hioload-afb/internal/stubws"
	"github.com/momentics/hioload-afb/internal/transport"
	"github.com/momentics/hioload-afb/internal/wsbridge"
	"github.com/momentics/hioload-afb/pool"
	"github.com/momentics/hioload-afb/protocol"
)

// Config mirrors server.Config's shape: a flat struct with a
// DefaultConfig constructor, overridden here by flags instead of
// functional options since afbd has no embedding callers.
type Config struct {
	ListenAddr  string
	ChannelSize int
	NUMANode    int
	Workers     int
	PendingMax  int
	SessionCap  int
	SessionTTL  time.Duration
	APIsTimeout time.Duration
}

// DefaultConfig mirrors the teacher's server.DefaultConfig defaults
// where the same concern exists (ListenAddr, NUMANode, worker count).
func DefaultConfig() Config {
	return Config{
		ListenAddr:  ":1234",
		ChannelSize: 64,
		NUMANode:    -1,
		Workers:     3,
		PendingMax:  0,
		SessionCap:  1000,
		SessionTTL:  30 * time.Minute,
		APIsTimeout: 20 * time.Second,
	}
}

func main() {
	cfg := DefaultConfig()
	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "PROTO-WS listen address (host:port)")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "job engine worker count")
	flag.IntVar(&cfg.NUMANode, "numa-node", cfg.NUMANode, "preferred NUMA node for buffers and thread pinning (-1 = unpinned)")
	flag.IntVar(&cfg.SessionCap, "session-capacity", cfg.SessionCap, "max concurrently live sessions (0 = unbounded)")
	flag.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "session inactivity expiry window")
	flag.DurationVar(&cfg.APIsTimeout, "call-timeout", cfg.APIsTimeout, "per-call watchdog timeout")
	flag.Parse()

	logger := log.New(os.Stderr, "afbd: ", log.LstdFlags)

	afbdebug.At("main", logger)

	engine := jobs.New(jobs.Config{AllowedCount: cfg.Workers, PendingMax: cfg.PendingMax, Logger: logger})
	defer engine.Terminate()

	sessions := session.NewStore(session.Config{Capacity: cfg.SessionCap, TTL: cfg.SessionTTL})
	sweepStop := startSweeper(sessions, cfg.SessionTTL)
	defer close(sweepStop)

	set := apiset.NewSet()
	registerHelloAPI(set)

	dispatcher := apiset.NewDispatcher(set, sessions, engine)
	dispatcher.APIsTimeout = cfg.APIsTimeout

	ctl := adapters.NewControlAdapter()
	ctl.RegisterDebugProbe("jobs", func() any { return engine.Stats() })
	ctl.RegisterDebugProbe("sessions", func() any { return sessions.Len() })

	affinity := adapters.NewAffinityAdapter()
	if cfg.NUMANode >= 0 {
		if err := affinity.Pin(-1, cfg.NUMANode); err != nil {
			logger.Printf("affinity pin to NUMA node %d failed: %v", cfg.NUMANode, err)
		}
	}

	mgr := pool.NewBufferPoolManager()
	bufPool := mgr.GetPool(cfg.NUMANode)

	listener, err := transport.NewWebSocketListener(cfg.ListenAddr, bufPool, cfg.ChannelSize)
	if err != nil {
		logger.Fatalf("listen %s: %v", cfg.ListenAddr, err)
	}
	logger.Printf("listening on %s", cfg.ListenAddr)

	afbdebug.At("ready", logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go acceptLoop(listener, dispatcher, logger)

	<-ctx.Done()
	logger.Printf("shutting down, stats=%v", ctl.Stats())
	_ = listener.Close()
}

func acceptLoop(listener *transport.WebSocketListener, dispatcher *apiset.Dispatcher, logger *log.Logger) {
	var connID int64
	for {
		conn, err := listener.Accept()
		if err != nil {
			if err == transport.ErrListenerClosed {
				return
			}
			logger.Printf("accept error: %v", err)
			continue
		}
		conn.Start()
		id := atomic.AddInt64(&connID, 1)
		logger.Printf("connection %d accepted from %s", id, conn.Path())
		go serveConn(id, conn, dispatcher, logger)
	}
}

// serveConn wires one accepted connection's PROTO-WS endpoint to the
// dispatcher: inbound Call frames are queued onto the job engine grouped
// by session (spec.md §4.4), replies flow straight back out.
func serveConn(id int64, conn *protocol.WSConnection, dispatcher *apiset.Dispatcher, logger *log.Logger) {
	defer conn.Close()

	tr := wsbridge.NewServerTransport(conn)
	ep := protows.NewEndpoint(tr, false, true)
	ep.SetOnHangup(func() { logger.Printf("connection %d hung up", id) })

	_ = stubws.NewServerAdapter(ep, dispatcher, nil)

	tr.Serve(ep)
}

// registerHelloAPI registers a minimal "hello" service exposing a
// "ping" verb, grounded on original_source/bindings/samples/HelloWorld.c
// (the canonical AGL demo binding) translated into apiset terms.
func registerHelloAPI(set *apiset.Set) {
	var count int64
	handle := &apiset.Handle{
		Name: "hello",
		Verbs: map[string]apiset.Verb{
			"ping": {
				Flags: session.NONE,
				Callback: func(ctx context.Context, req apiset.Xreq) (string, error) {
					n := atomic.AddInt64(&count, 1)
					return fmt.Sprintf(`{"pong":%s}`, strconv.FormatInt(n, 10)), nil
				},
			},
		},
	}
	if err := set.Add("hello", handle); err != nil {
		panic(err)
	}
}

// startSweeper runs Store.Sweep on a timer derived from ttl, matching
// spec.md §4.2's lazy-expiry sweep; returns a channel whose close stops
// the goroutine.
func startSweeper(store *session.Store, ttl time.Duration) chan struct{} {
	stop := make(chan struct{})
	interval := ttl / 4
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				store.Sweep()
			case <-stop:
				return
			}
		}
	}()
	return stop
}
