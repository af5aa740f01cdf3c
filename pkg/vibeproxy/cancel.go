package vibeproxy

import (
	"context"
	"fmt"
	"sync"
)

// Registry maps request ids to cancellable contexts so that a request started
// in one goroutine can be aborted from another, for example by an HTTP
// handler that only knows the id.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*handle
}

type handle struct {
	cancel context.CancelCauseFunc
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*handle)}
}

// Create derives a cancellable context from parent and registers it under id.
// An existing handle with the same id is replaced and left running.
//
// The returned release func must be called once the request has finished. It
// unregisters this handle (not a later one reusing the id) and frees the
// context.
func (r *Registry) Create(parent context.Context, id string) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	h := &handle{cancel: cancel}

	r.mu.Lock()
	r.handles[id] = h
	r.mu.Unlock()

	return ctx, func() { r.release(id, h) }
}

// Cancel aborts the request registered under id and forgets it. It reports
// whether a handle was found; cancelling an unknown id is a no-op.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	h, ok := r.handles[id]
	delete(r.handles, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	h.cancel(fmt.Errorf("%w: request %s cancelled", ErrCancelled, id))
	return true
}

func (r *Registry) release(id string, h *handle) {
	r.mu.Lock()
	if r.handles[id] == h {
		delete(r.handles, id)
	}
	r.mu.Unlock()
	h.cancel(context.Canceled)
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
