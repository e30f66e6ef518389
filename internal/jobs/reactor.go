// File: internal/jobs/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor and Fdev implement spec.md §2's single-threaded, epoll-style
// I/O readiness loop and the uniform fd event source built on top of
// it. Grounded on the teacher's internal/concurrency/poller_linux.go
// and poller_windows.go (syscall-level epoll/IOCP wait loops), adapted
// from "poll then hand a buffer to a ring" into "poll then hand a
// readiness callback to the job engine's event-loop queue" — the
// Reactor owns no I/O itself, it only multiplexes readiness and lets
// registered Fdev callbacks perform it.
package jobs

import "sync"

// platformPoller is the OS-specific readiness backend a Reactor drives.
// reactor_linux.go and reactor_windows.go each provide one.
type platformPoller interface {
	Add(fd int) error
	Remove(fd int) error
	// Wait blocks up to timeoutMs and returns the fds that became ready,
	// or (nil, nil) on a timeout/spurious wake with nothing ready.
	Wait(timeoutMs int) ([]int, error)
	Close() error
}

// FdevMode controls whether a registration survives past its first
// readiness notification (spec.md §2: "supports auto-close and
// one-shot/repeat").
type FdevMode int

const (
	// FdevRepeat keeps the fd registered after each readiness callback.
	FdevRepeat FdevMode = iota
	// FdevOneShot deregisters the fd after its first readiness callback.
	FdevOneShot
)

// Fdev is a uniform file-descriptor event source: a fd registered with
// a Reactor, a callback invoked on readiness, and optional auto-close.
type Fdev struct {
	fd        int
	reactor   *Reactor
	mode      FdevMode
	autoClose bool
	cb        func(fd int)
}

// Fd returns the underlying descriptor.
func (f *Fdev) Fd() int { return f.fd }

// Close unregisters the fd from its Reactor. The fd itself is not
// closed here, whether or not autoClose was set at registration.
func (f *Fdev) Close() error {
	return f.reactor.unregister(f)
}

// Reactor is the single-threaded I/O readiness loop owned by the job
// engine (spec.md §2/§9): one logical reactor may be associated with
// an Engine via Engine.SetReactor, and it runs inline on whichever
// worker currently claims the exclusive "runs" slot (see engine.go's
// runLoop). Readiness does not run callbacks directly on the polling
// goroutine; it posts them to the engine's event-loop queue so a
// slow callback cannot stall the poll.
type Reactor struct {
	mu      sync.Mutex
	poller  platformPoller
	devices map[int]*Fdev
	engine  *Engine
	closed  bool
}

// NewReactor constructs a Reactor bound to engine, backed by the
// platform's native readiness poller (epoll on linux, IOCP on windows).
func NewReactor(engine *Engine) (*Reactor, error) {
	p, err := newPlatformPoller()
	if err != nil {
		return nil, err
	}
	return &Reactor{
		poller:  p,
		devices: make(map[int]*Fdev),
		engine:  engine,
	}, nil
}

// Register adds fd to the reactor's interest set. cb runs on an engine
// worker (via PostLoopJob), never on the polling goroutine itself.
func (r *Reactor) Register(fd int, mode FdevMode, autoClose bool, cb func(fd int)) (*Fdev, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrTerminated
	}
	if err := r.poller.Add(fd); err != nil {
		return nil, err
	}
	f := &Fdev{fd: fd, reactor: r, mode: mode, autoClose: autoClose, cb: cb}
	r.devices[fd] = f
	return f, nil
}

func (r *Reactor) unregister(f *Fdev) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[f.fd]; !ok {
		return nil
	}
	delete(r.devices, f.fd)
	return r.poller.Remove(f.fd)
}

// pollOnce blocks up to timeoutMs waiting for readiness and posts each
// ready Fdev's callback to the engine's event-loop queue. Called by
// exactly one worker at a time — the one holding Engine.reactorRunning.
func (r *Reactor) pollOnce(timeoutMs int) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	poller := r.poller
	r.mu.Unlock()

	ready, err := poller.Wait(timeoutMs)
	if err != nil {
		return
	}
	for _, fd := range ready {
		r.mu.Lock()
		f, ok := r.devices[fd]
		if ok && f.mode == FdevOneShot {
			delete(r.devices, fd)
			r.poller.Remove(fd)
		}
		r.mu.Unlock()
		if !ok {
			continue
		}
		dev := f
		r.engine.PostLoopJob(func() {
			dev.cb(dev.fd)
			if dev.mode == FdevOneShot && dev.autoClose {
				closeFd(dev.fd)
			}
		})
	}
}

// Close shuts the reactor's poller down. Registered Fdevs are not
// individually notified; callers are expected to have torn down their
// connections before the engine terminates.
func (r *Reactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.poller.Close()
}
