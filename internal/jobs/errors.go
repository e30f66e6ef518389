// File: internal/jobs/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package jobs

import "errors"

var (
	// ErrBusy is returned by Queue when the pending-waiters budget is exhausted.
	ErrBusy = errors.New("jobs: queue busy")
	// ErrTerminated is returned by Queue/Enter/Invoke once the engine has
	// begun Terminate and no longer accepts new work.
	ErrTerminated = errors.New("jobs: engine terminated")
	// ErrNoWorkers is returned when worker startup fails on an empty pool;
	// fatal to the Queue call that triggered it, per spec.
	ErrNoWorkers = errors.New("jobs: worker startup failed on empty pool")
	// ErrTimeout is returned by Enter/Invoke when the watchdog deadline
	// elapses before Leave is called.
	ErrTimeout = errors.New("jobs: watchdog timeout")
)
