// File: internal/jobs/job.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package jobs

import (
	"container/list"
	"context"
	"time"
)

// Func is the callback invoked for a queued job. ctx carries the job's
// watchdog deadline (if any); a job whose timeout expires observes
// ctx.Done() but is not forcibly preempted — see DESIGN.md for the
// cooperative-cancellation weakening of the original setjmp/longjmp
// watchdog. cancelled is true when the job is being released without
// ever having been scheduled to run, e.g. during Terminate.
type Func func(ctx context.Context, cancelled bool, a1, a2, a3 any)

// Group is an opaque, comparable serialization key. The nil interface
// value means "unordered" (spec.md's group == NULL).
type Group = any

// job is one FIFO entry. It is only ever touched under Engine.mu except
// during its own execution.
type job struct {
	group       Group
	timeout     time.Duration
	fn          Func
	a1, a2, a3  any
	elem        *list.Element // this job's node in the engine's fifo list
}
