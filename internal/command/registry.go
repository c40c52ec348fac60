// Package command implements the command dispatch pipeline of
// spec.md §4.2: framing -> parse -> command-table dispatch -> execute.
package command

import "sync"

// Context is what every registered Handler receives. ID/SubID are empty
// for the two server-originated variants (spec.md §4.2 table), since a
// client only ever has one connection to the server it is talking to.
type Context struct {
	ID      string
	SubID   string
	Command string
	Raw     []byte
	Binary  []byte
}

// Handler is a command-table entry. All four parsing/executing variants
// from spec.md §4.2 converge on this single signature — the parser fills
// in whichever of ID/SubID/Binary its variant carries and leaves the rest
// zero, rather than branching on four distinct callback types.
type Handler func(ctx Context) (ok bool, errorMessage string)

// Registry maps command names to handlers. Built once at startup and
// read-only thereafter, per spec.md §3; the lock only guards against the
// (rare, test-only) case of registering after construction.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}
