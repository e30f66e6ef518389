// File: internal/jobs/doc.go
// Package jobs implements the binder's bounded worker pool: a FIFO job
// queue with per-group mutual exclusion, cooperative per-job watchdog
// timeouts, and a reentrant Enter/Leave primitive that lets a running
// worker wait for a nested completion without giving up its slot in
// the parallelism cap.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package jobs
