package database

import (
	"context"
	"sync"
)

// Hooks collects callbacks to run once a unit of work has committed.
type Hooks struct {
	mu  sync.Mutex
	fns []func()
}

type hooksKey struct{}

// WithHooks returns a context that collects AfterCommit callbacks.
func WithHooks(ctx context.Context) (context.Context, *Hooks) {
	h := &Hooks{}
	return context.WithValue(ctx, hooksKey{}, h), h
}

// AfterCommit defers fn until the unit of work in ctx commits. Outside a unit
// of work fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(hooksKey{}).(*Hooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// Run invokes the collected callbacks in registration order.
func (h *Hooks) Run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
