// File: internal/jobs/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Engine is the bounded worker pool of spec.md §4.1. Grounded on the
// teacher's core/concurrency.Executor worker-loop shape, generalized
// from an unordered lock-free pool into a FIFO queue with per-group
// mutual exclusion and lazy worker creation up to AllowedCount.

package jobs

import (
	"container/list"
	"context"
	"log"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// reactorPollTimeoutMs bounds how long the worker that claims the
// reactor blocks in a single poll before re-checking the FIFO, so a
// newly queued grouped job is never starved behind a quiet reactor.
const reactorPollTimeoutMs = 50

// Stats reports a point-in-time snapshot of engine activity, exposed to
// the binder's control/metrics surface.
type Stats struct {
	QueueDepth     int
	ActiveWorkers  int
	IdleWorkers    int
	Cancelled      int64
}

// Config controls pool sizing and the pending-job admission budget.
type Config struct {
	AllowedCount int // max concurrently live worker goroutines (parallelism cap)
	PendingMax   int // max FIFO depth before Queue returns ErrBusy (0 = unbounded)
	Logger       *log.Logger
}

// DefaultConfig mirrors the teacher's "default 3, max configurable" pool sizing.
func DefaultConfig() Config {
	return Config{
		AllowedCount: 3,
		PendingMax:   0,
		Logger:       log.Default(),
	}
}

// Engine is the job/concurrency core: FIFO queue, group exclusion,
// watchdog timeouts, and reentrant Enter/Leave.
type Engine struct {
	cfg Config

	mu         sync.Mutex
	cond       *sync.Cond
	fifo       *list.List      // *job entries, enqueue order
	busyGroups map[Group]bool  // group currently owned by a running job
	active     int             // live worker-equivalent goroutines (pool + Enter/Invoke participants)
	idle       int
	stopping   bool
	cancelled  int64
	wg         sync.WaitGroup // tracks genuine pool workers only, for Terminate's join

	// loopQueue holds ungrouped work posted by the reactor (readiness
	// callbacks) — spec.md §4.1's "event-loop queue" that a worker checks
	// after the FIFO comes up empty and before it parks on the cond var.
	loopQueue *queue.Queue

	// reactor is the single event-loop reactor optionally associated
	// with this pool (spec.md §2/§9). reactorRunning is the exclusive
	// "runs" flag: only one worker at a time may be inside reactor.poll.
	reactor        *Reactor
	reactorRunning bool
}

// New constructs and starts an Engine with cfg.AllowedCount pool workers
// created lazily as load demands, up to the cap.
func New(cfg Config) *Engine {
	if cfg.AllowedCount <= 0 {
		cfg.AllowedCount = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	e := &Engine{
		cfg:        cfg,
		fifo:       list.New(),
		busyGroups: make(map[Group]bool),
		loopQueue:  queue.New(),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// SetReactor associates r with the pool (spec.md §9's "one logical
// event-loop reactor may be associated with the pool"). Must be called
// before the pool is under load; not safe to call concurrently with
// Queue/Enter/Invoke.
func (e *Engine) SetReactor(r *Reactor) {
	e.mu.Lock()
	e.reactor = r
	e.mu.Unlock()
}

// PostLoopJob appends fn to the event-loop queue. Used by a Reactor to
// hand a ready Fdev's callback to the pool instead of running it inline
// on the worker that is polling. fn runs with cancelled=false and no
// deadline; it is not subject to group exclusion.
func (e *Engine) PostLoopJob(fn func()) {
	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		return
	}
	e.loopQueue.Add(fn)
	e.mu.Unlock()
	e.cond.Broadcast()
}

// Stats returns a snapshot for observability.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		QueueDepth:    e.fifo.Len() + e.loopQueue.Length(),
		ActiveWorkers: e.active,
		IdleWorkers:   e.idle,
		Cancelled:     e.cancelled,
	}
}

// Queue appends a job to the FIFO. Returns ErrBusy if PendingMax is
// exceeded, ErrTerminated once Terminate has begun.
func (e *Engine) Queue(group Group, timeout time.Duration, fn Func, a1, a2, a3 any) error {
	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		return ErrTerminated
	}
	if e.cfg.PendingMax > 0 && e.fifo.Len() >= e.cfg.PendingMax {
		e.mu.Unlock()
		return ErrBusy
	}
	j := &job{group: group, timeout: timeout, fn: fn, a1: a1, a2: a2, a3: a3}
	j.elem = e.fifo.PushBack(j)
	e.maybeSpawnWorkerLocked()
	e.mu.Unlock()
	e.cond.Broadcast()
	return nil
}

// maybeSpawnWorkerLocked starts a new pool worker if there is no idle
// worker to pick up the just-enqueued job and the pool is below its cap.
// Must be called with e.mu held.
func (e *Engine) maybeSpawnWorkerLocked() {
	if e.idle > 0 {
		return
	}
	if e.active >= e.cfg.AllowedCount {
		return
	}
	e.active++
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runLoop(nil)
	}()
}

// pickJobLocked removes and returns the first FIFO job whose group is
// not currently busy, marking that group busy. If none is eligible it
// falls back to the event-loop queue (spec.md §4.1: "if none, it also
// checks an event-loop queue"). Must be called with e.mu held. Returns
// nil if neither source has eligible work.
func (e *Engine) pickJobLocked() *job {
	for el := e.fifo.Front(); el != nil; el = el.Next() {
		j := el.Value.(*job)
		if j.group != nil && e.busyGroups[j.group] {
			continue
		}
		e.fifo.Remove(el)
		if j.group != nil {
			e.busyGroups[j.group] = true
		}
		return j
	}
	if e.loopQueue.Length() > 0 {
		fn := e.loopQueue.Peek().(func())
		e.loopQueue.Remove()
		return &job{fn: func(ctx context.Context, cancelled bool, _, _, _ any) {
			if !cancelled {
				fn()
			}
		}}
	}
	return nil
}

// participant tracks a goroutine that entered the pool via Enter/Invoke
// rather than being a genuine spawned worker; it exits runLoop once
// Leave() is called instead of running until Terminate.
type participant struct {
	left     bool
	timedOut bool
}

// runLoop is the body shared by pool workers (p == nil) and Enter/Invoke
// callers (p != nil, exits once p.left is set).
func (e *Engine) runLoop(p *participant) {
	e.mu.Lock()
	for {
		if p == nil && e.stopping {
			e.mu.Unlock()
			return
		}
		if p != nil && p.left {
			e.mu.Unlock()
			return
		}
		if j := e.pickJobLocked(); j != nil {
			e.mu.Unlock()
			e.runJob(j, false)
			e.mu.Lock()
			if j.group != nil {
				delete(e.busyGroups, j.group)
			}
			e.cond.Broadcast()
			continue
		}
		if e.reactor != nil && !e.reactorRunning {
			e.reactorRunning = true
			e.mu.Unlock()
			e.reactor.pollOnce(reactorPollTimeoutMs)
			e.mu.Lock()
			e.reactorRunning = false
			continue
		}
		e.idle++
		e.cond.Wait()
		e.idle--
	}
}

// runJob executes fn under a deadline context derived from j.timeout,
// measured from the moment execution starts (not enqueue time), and
// recovers panics as the cooperative stand-in for the original
// fault-catching watchdog (see DESIGN.md).
func (e *Engine) runJob(j *job, cancelled bool) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if j.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			e.cfg.Logger.Printf("jobs: recovered panic in job callback: %v", r)
		}
	}()
	j.fn(ctx, cancelled, j.a1, j.a2, j.a3)
}

// Enter runs fn synchronously on the calling goroutine, handing it a
// Loop it must eventually Leave (directly, or by waking a nested
// completion that calls Leave on its behalf). While parked waiting for
// Leave, the calling goroutine behaves exactly like a pool worker: it
// drains FIFO jobs whose group is free. The caller counts against
// AllowedCount for the duration of Enter, per spec.md §9.
func (e *Engine) Enter(group Group, timeout time.Duration, fn func(loop *Loop)) error {
	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		return ErrTerminated
	}
	e.active++
	e.mu.Unlock()

	p := &participant{}
	loop := &Loop{engine: e, p: p}

	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() {
			e.mu.Lock()
			if !p.left {
				p.left = true
				p.timedOut = true
			}
			e.mu.Unlock()
			e.cond.Broadcast()
		})
		defer timer.Stop()
	}

	fn(loop)
	e.runLoop(p)

	e.mu.Lock()
	e.active--
	timedOut := p.timedOut
	e.mu.Unlock()
	if timedOut {
		return ErrTimeout
	}
	return nil
}

// Loop is the reentrant handle passed to an Enter callback.
type Loop struct {
	engine *Engine
	p      *participant
}

// Leave unblocks the goroutine parked in the matching Enter call. Safe
// to call from any goroutine, including a nested job's completion.
func (l *Loop) Leave() {
	l.engine.mu.Lock()
	l.p.left = true
	l.engine.mu.Unlock()
	l.engine.cond.Broadcast()
}

// Invoke is the synchronous convenience form: it enqueues fn into group
// and blocks the calling goroutine — itself acting as a worker in the
// meantime — until fn completes or its timeout elapses.
func (e *Engine) Invoke(group Group, timeout time.Duration, fn func(ctx context.Context, a1, a2, a3 any), a1, a2, a3 any) error {
	return e.Enter(group, timeout, func(loop *Loop) {
		qerr := e.Queue(group, timeout, func(ctx context.Context, cancelled bool, x1, x2, x3 any) {
			defer loop.Leave()
			if cancelled {
				return
			}
			fn(ctx, x1, x2, x3)
		}, a1, a2, a3)
		if qerr != nil {
			loop.Leave()
		}
	})
}

// Terminate stops accepting new jobs, synchronously cancels every job
// still pending in the FIFO by invoking its callback with cancelled=true,
// and joins all genuine pool workers. Enter/Invoke participants are not
// joined here; they observe ErrTerminated on their next Queue call.
func (e *Engine) Terminate() {
	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		return
	}
	e.stopping = true
	var pending []*job
	for el := e.fifo.Front(); el != nil; el = el.Next() {
		pending = append(pending, el.Value.(*job))
	}
	e.fifo.Init()
	for e.loopQueue.Length() > 0 {
		e.loopQueue.Remove()
	}
	reactor := e.reactor
	e.mu.Unlock()
	e.cond.Broadcast()

	for _, j := range pending {
		e.runJob(j, true)
		e.mu.Lock()
		e.cancelled++
		e.mu.Unlock()
	}

	e.wg.Wait()

	if reactor != nil {
		if err := reactor.Close(); err != nil {
			e.cfg.Logger.Printf("jobs: reactor close: %v", err)
		}
	}
}
