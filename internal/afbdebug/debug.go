// File: internal/afbdebug/debug.go
// Package afbdebug implements the named-breakpoint hooks spec.md §6
// names as the binder's debug surface: AFB_DEBUG_WAIT pauses at a named
// point until SIGINT arrives, AFB_DEBUG_BREAK raises SIGINT at a named
// point (for attaching a debugger under a supervisor that traps it).
//
// Grounded on original_source/src/afb-debug.c's has_key/afb_debug_wait/
// afb_debug_break trio, translated from signal-mask juggling to Go's
// os/signal notify channel.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package afbdebug

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

const (
	envWait  = "AFB_DEBUG_WAIT"
	envBreak = "AFB_DEBUG_BREAK"
)

// hasKey reports whether key appears, case-insensitively, as one of the
// comma/space/tab-separated names in list.
func hasKey(key, list string) bool {
	if list == "" || key == "" {
		return false
	}
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	for _, f := range fields {
		if strings.EqualFold(f, key) {
			return true
		}
	}
	return false
}

// At checks key against AFB_DEBUG_WAIT and AFB_DEBUG_BREAK, blocking on
// SIGINT (wait) or raising SIGINT to the current process (break) when
// key is named in the respective list. A nil logger disables logging.
func At(key string, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	if hasKey(key, os.Getenv(envWait)) {
		wait(key, logger)
	}
	if hasKey(key, os.Getenv(envBreak)) {
		brk(key, logger)
	}
}

func wait(key string, logger *log.Logger) {
	logger.Printf("afbdebug: wait before %s (send SIGINT to continue)", key)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	<-ch
	signal.Stop(ch)
	logger.Printf("afbdebug: wait after %s", key)
}

func brk(key string, logger *log.Logger) {
	logger.Printf("afbdebug: break before %s", key)
	_ = syscall.Kill(syscall.Getpid(), syscall.SIGINT)
	logger.Printf("afbdebug: break after %s", key)
}
