// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// High-precision timer-queue scheduler: a min-heap of deadlines drained
// by a single goroutine, implementing api.Scheduler. The job engine's
// per-job timeouts do not use it.

package concurrency

import (
	"container/heap"
	"sync"
	"time"

	"github.com/momentics/hioload-afb/api"
)

// Scheduler implements api.Scheduler with a heap-ordered timer queue.
type Scheduler struct {
	mu     sync.Mutex
	timerQ timerHeap
	notify chan struct{}
	stop   chan struct{}
	seq    uint64
}

// NewScheduler starts and returns a running Scheduler.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	heap.Init(&s.timerQ)
	go s.run()
	return s
}

var _ api.Scheduler = (*Scheduler)(nil)

// timerTask is one pending scheduled callback.
type timerTask struct {
	deadline  int64 // unix nanos
	fn        func()
	index     int
	cancelled bool
	seq       uint64
}

type timerHeap []*timerTask

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline == h[j].deadline {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline < h[j].deadline
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x any) {
	t := x.(*timerTask)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// cancelHandle adapts a *timerTask to api.Cancelable.
type cancelHandle struct {
	s    *Scheduler
	task *timerTask
	done chan struct{}
	err  error
}

func (c *cancelHandle) Cancel() error {
	return c.s.Cancel(c)
}

func (c *cancelHandle) Done() <-chan struct{} { return c.done }
func (c *cancelHandle) Err() error            { return c.err }

// Schedule arms fn to run after delayNanos; returns a handle usable with Cancel.
func (s *Scheduler) Schedule(delayNanos int64, fn func()) (api.Cancelable, error) {
	s.mu.Lock()
	s.seq++
	task := &timerTask{
		deadline: time.Now().UnixNano() + delayNanos,
		fn:       fn,
		seq:      s.seq,
	}
	heap.Push(&s.timerQ, task)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}

	h := &cancelHandle{s: s, task: task, done: make(chan struct{})}
	return h, nil
}

// Cancel marks the task cancelled and removes it from the queue at once.
func (s *Scheduler) Cancel(c api.Cancelable) error {
	h, ok := c.(*cancelHandle)
	if !ok {
		return api.ErrInvalidArgument
	}
	s.mu.Lock()
	if !h.task.cancelled {
		h.task.cancelled = true
		if h.task.index >= 0 {
			heap.Remove(&s.timerQ, h.task.index)
		}
	}
	s.mu.Unlock()
	h.err = api.ErrOperationTimeout
	close(h.done)
	return nil
}

// Now returns monotonic wall-clock time in nanoseconds.
func (s *Scheduler) Now() int64 {
	return time.Now().UnixNano()
}

// Close stops the scheduler goroutine; pending tasks are dropped.
func (s *Scheduler) Close() {
	close(s.stop)
}

// run drains the heap, sleeping until the next deadline or a new Schedule call.
func (s *Scheduler) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		s.mu.Lock()
		var wait time.Duration
		if s.timerQ.Len() == 0 {
			wait = time.Hour
		} else {
			next := s.timerQ[0]
			wait = time.Duration(next.deadline - time.Now().UnixNano())
			if wait < 0 {
				wait = 0
			}
		}
		s.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.stop:
			return
		case <-s.notify:
			continue
		case <-timer.C:
			s.fireDue()
		}
	}
}

// fireDue pops and runs every task whose deadline has passed.
func (s *Scheduler) fireDue() {
	now := time.Now().UnixNano()
	for {
		s.mu.Lock()
		if s.timerQ.Len() == 0 || s.timerQ[0].deadline > now {
			s.mu.Unlock()
			return
		}
		task := heap.Pop(&s.timerQ).(*timerTask)
		s.mu.Unlock()
		if !task.cancelled && task.fn != nil {
			task.fn()
		}
	}
}
