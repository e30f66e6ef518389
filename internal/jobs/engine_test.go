// File: internal/jobs/engine_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package jobs

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestGroupSerialization covers scenario S3: two jobs in the same group
// must execute in FIFO order and never overlap.
func TestGroupSerialization(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Terminate()

	var mu sync.Mutex
	var log string
	var wg sync.WaitGroup
	wg.Add(2)

	group := "G"
	if err := e.Queue(group, 0, func(ctx context.Context, cancelled bool, a1, a2, a3 any) {
		defer wg.Done()
		mu.Lock()
		log += "A"
		mu.Unlock()
	}, nil, nil, nil); err != nil {
		t.Fatalf("queue A: %v", err)
	}
	if err := e.Queue(group, 0, func(ctx context.Context, cancelled bool, a1, a2, a3 any) {
		defer wg.Done()
		mu.Lock()
		log += "B"
		mu.Unlock()
	}, nil, nil, nil); err != nil {
		t.Fatalf("queue B: %v", err)
	}

	wg.Wait()
	mu.Lock()
	defer mu.Unlock()
	if log != "AB" {
		t.Fatalf("expected group-ordered log %q, got %q", "AB", log)
	}
}

// TestUngroupedJobsRunConcurrently ensures nil-group jobs are not
// serialized against each other.
func TestUngroupedJobsRunConcurrently(t *testing.T) {
	e := New(Config{AllowedCount: 4, Logger: DefaultConfig().Logger})
	defer e.Terminate()

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	started := make(chan struct{}, n)
	release := make(chan struct{})

	for i := 0; i < n; i++ {
		if err := e.Queue(nil, 0, func(ctx context.Context, cancelled bool, a1, a2, a3 any) {
			defer wg.Done()
			started <- struct{}{}
			<-release
		}, nil, nil, nil); err != nil {
			t.Fatalf("queue: %v", err)
		}
	}

	// at least AllowedCount jobs should be able to start concurrently
	for i := 0; i < 4; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected concurrent starts, only got %d", i)
		}
	}
	close(release)
	wg.Wait()
}

// TestWatchdogCooperative covers scenario S4's intent under the
// cooperative-cancellation weakening: a job that honors ctx.Done()
// observes cancellation promptly, and the worker remains healthy for
// subsequent jobs.
func TestWatchdogCooperative(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Terminate()

	cancelledAt := make(chan time.Duration, 1)
	start := time.Now()
	if err := e.Queue(nil, 100*time.Millisecond, func(ctx context.Context, cancelled bool, a1, a2, a3 any) {
		select {
		case <-ctx.Done():
			cancelledAt <- time.Since(start)
		case <-time.After(2 * time.Second):
			cancelledAt <- -1
		}
	}, nil, nil, nil); err != nil {
		t.Fatalf("queue: %v", err)
	}

	select {
	case d := <-cancelledAt:
		if d < 0 {
			t.Fatal("job never observed watchdog cancellation")
		}
		if d < 90*time.Millisecond || d > 400*time.Millisecond {
			t.Fatalf("watchdog fired outside expected window: %v", d)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watchdog job")
	}

	// engine must still be healthy: subsequent job completes normally.
	done := make(chan struct{})
	if err := e.Queue(nil, 0, func(ctx context.Context, cancelled bool, a1, a2, a3 any) {
		close(done)
	}, nil, nil, nil); err != nil {
		t.Fatalf("queue after watchdog: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine unhealthy after watchdog cancellation")
	}
}

// TestInvokeSynchronous exercises the reentrant Enter/Invoke primitive:
// Invoke blocks the caller (acting as a worker) until the nested job
// completes.
func TestInvokeSynchronous(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Terminate()

	var ran bool
	err := e.Invoke(nil, time.Second, func(ctx context.Context, a1, a2, a3 any) {
		ran = true
	}, nil, nil, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !ran {
		t.Fatal("invoke did not run callback")
	}
}

// TestEnterAllowsNestedJobs ensures a goroutine parked in Enter still
// drains unrelated FIFO jobs while waiting for Leave.
func TestEnterAllowsNestedJobs(t *testing.T) {
	e := New(Config{AllowedCount: 1, Logger: DefaultConfig().Logger})
	defer e.Terminate()

	otherDone := make(chan struct{})
	err := e.Enter(nil, time.Second, func(loop *Loop) {
		// queue an unrelated job plus the completion job
		_ = e.Queue(nil, 0, func(ctx context.Context, cancelled bool, a1, a2, a3 any) {
			close(otherDone)
		}, nil, nil, nil)
		_ = e.Queue(nil, 0, func(ctx context.Context, cancelled bool, a1, a2, a3 any) {
			loop.Leave()
		}, nil, nil, nil)
	})
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	select {
	case <-otherDone:
	default:
		t.Fatal("nested job did not run before Enter returned")
	}
}

// TestTerminateCancelsPending ensures pending jobs are invoked exactly
// once with cancelled=true when Terminate runs.
func TestTerminateCancelsPending(t *testing.T) {
	e := New(Config{AllowedCount: 1, Logger: DefaultConfig().Logger})

	block := make(chan struct{})
	started := make(chan struct{})
	_ = e.Queue("g", 0, func(ctx context.Context, cancelled bool, a1, a2, a3 any) {
		close(started)
		<-block
	}, nil, nil, nil)

	var gotCancelled bool
	var mu sync.Mutex
	pendingDone := make(chan struct{})
	_ = e.Queue("g", 0, func(ctx context.Context, cancelled bool, a1, a2, a3 any) {
		mu.Lock()
		gotCancelled = cancelled
		mu.Unlock()
		close(pendingDone)
	}, nil, nil, nil)

	<-started

	terminateDone := make(chan struct{})
	go func() {
		e.Terminate()
		close(terminateDone)
	}()

	select {
	case <-pendingDone:
	case <-time.After(2 * time.Second):
		t.Fatal("pending job was never invoked during terminate")
	}
	mu.Lock()
	if !gotCancelled {
		mu.Unlock()
		t.Fatal("pending job was not marked cancelled")
	}
	mu.Unlock()

	close(block)
	select {
	case <-terminateDone:
	case <-time.After(2 * time.Second):
		t.Fatal("terminate never joined the blocked worker")
	}
}
