// File: internal/apiset/set.go
// Package apiset
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sorted, bisected, case-insensitive (name, handle) table, grounded on
// the teacher's composition-root style (server.Server / facade.HioloadWS
// construct-then-wire subsystems) generalized to a registry of named
// service APIs.

package apiset

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-afb/internal/permexpr"
	"github.com/momentics/hioload-afb/internal/session"
)

var (
	// ErrExists is returned by Add when name is already registered.
	ErrExists = errors.New("apiset: name already exists")
	// ErrInvalidName is returned by Add for a name failing validation.
	ErrInvalidName = errors.New("apiset: invalid name")
)

// invalidNameChars lists the characters spec.md §4.4 excludes from API
// names, beyond ASCII control characters and space.
const invalidNameChars = "\"#%&'/?`\x7f"

// ValidName reports whether name satisfies spec.md §4.4: non-empty, no
// ASCII control character, no space, none of invalidNameChars.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == ' ' || r == 0x7f {
			return false
		}
		if strings.ContainsRune(invalidNameChars, r) {
			return false
		}
	}
	return true
}

// Verb describes one callable verb on a Handle: its session bitfield
// and optional permission expression (spec.md §4.2/§4.4), plus the
// callback invoked once authorization succeeds.
type Verb struct {
	Flags      session.Flag
	Permission *permexpr.Expr
	Callback   func(ctx context.Context, req Xreq) (result string, err error)
}

// Xreq is a parsed incoming request: API name, verb, session uuid, raw
// JSON arguments, and optional user credentials (spec.md §4.4 step 1).
type Xreq struct {
	API         string
	Verb        string
	SessionUUID string
	JSONArgs    string
	UserCreds   *string
}

// Handle is one registered API: its verb table and a caller-supplied
// closure (opaque context threaded through callbacks, e.g. a bound
// native module's private state).
type Handle struct {
	Name    string
	Verbs   map[string]Verb
	Closure any

	verbosity int32
	hooks     []func()
	hooksMu   sync.Mutex
}

// SetVerbosity atomically sets this handle's log verbosity level.
func (h *Handle) SetVerbosity(level int32) { atomic.StoreInt32(&h.verbosity, level) }

// Verbosity returns the current verbosity level.
func (h *Handle) Verbosity() int32 { return atomic.LoadInt32(&h.verbosity) }

// OnUpdateHook registers a hook invoked by Set.UpdateHooks.
func (h *Handle) OnUpdateHook(fn func()) {
	h.hooksMu.Lock()
	h.hooks = append(h.hooks, fn)
	h.hooksMu.Unlock()
}

func (h *Handle) runHooks() {
	h.hooksMu.Lock()
	hooks := append([]func(){}, h.hooks...)
	h.hooksMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

type entry struct {
	key    string // strings.ToLower(name), bisection key
	name   string
	handle *Handle
}

// Set is a sorted, bisected, case-insensitive API registry.
type Set struct {
	mu      sync.RWMutex
	entries []entry
}

// NewSet constructs an empty Set.
func NewSet() *Set {
	return &Set{}
}

// Add registers handle under name, keeping entries lexicographically
// sorted by lowercased name for bisection lookup.
func (s *Set) Add(name string, handle *Handle) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	key := strings.ToLower(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].key >= key })
	if i < len(s.entries) && s.entries[i].key == key {
		return ErrExists
	}

	s.entries = append(s.entries, entry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = entry{key: key, name: name, handle: handle}
	return nil
}

// Lookup resolves name to its Handle via bisection, case-insensitively.
func (s *Set) Lookup(name string) (*Handle, bool) {
	key := strings.ToLower(name)

	s.mu.RLock()
	defer s.mu.RUnlock()

	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].key >= key })
	if i < len(s.entries) && s.entries[i].key == key {
		return s.entries[i].handle, true
	}
	return nil, false
}

// Remove drops name from the set, reporting whether it was present.
func (s *Set) Remove(name string) bool {
	key := strings.ToLower(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].key >= key })
	if i >= len(s.entries) || s.entries[i].key != key {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return true
}

// UpdateHooks broadcasts reload to one handle (name) or all (name == "*").
func (s *Set) UpdateHooks(name string) {
	s.mu.RLock()
	var targets []*Handle
	if name == "*" {
		for _, e := range s.entries {
			targets = append(targets, e.handle)
		}
	} else if h, ok := s.lookupLocked(name); ok {
		targets = append(targets, h)
	}
	s.mu.RUnlock()

	for _, h := range targets {
		h.runHooks()
	}
}

// SetVerbosity sets the verbosity of one handle (name) or all (name == "*").
func (s *Set) SetVerbosity(name string, level int32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name == "*" {
		for _, e := range s.entries {
			e.handle.SetVerbosity(level)
		}
		return
	}
	if h, ok := s.lookupLocked(name); ok {
		h.SetVerbosity(level)
	}
}

// GetVerbosity returns name's verbosity level.
func (s *Set) GetVerbosity(name string) (int32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.lookupLocked(name)
	if !ok {
		return 0, false
	}
	return h.Verbosity(), true
}

func (s *Set) lookupLocked(name string) (*Handle, bool) {
	key := strings.ToLower(name)
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].key >= key })
	if i < len(s.entries) && s.entries[i].key == key {
		return s.entries[i].handle, true
	}
	return nil, false
}
