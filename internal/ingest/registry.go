package ingest

import (
	"context"
	"sync"
	"time"
)

// Key addresses one engine: a user's upload widget on a given form
// (e.g. "new" or a webtoon id being edited).
type Key struct {
	UserID string
	Form   string
}

// Registry owns the engines of all open forms. An engine lives from its
// first use until Release (the form is closed) or an idle Sweep.
type Registry struct {
	mu      sync.Mutex
	engines map[Key]*Engine
	factory func(Key) *Engine
}

func NewRegistry(factory func(Key) *Engine) *Registry {
	return &Registry{
		engines: make(map[Key]*Engine),
		factory: factory,
	}
}

// Get returns the engine for k, creating it on first use.
func (r *Registry) Get(k Key) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[k]
	if !ok {
		e = r.factory(k)
		r.engines[k] = e
	}
	return e
}

func (r *Registry) Lookup(k Key) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[k]
	return e, ok
}

// Release discards the engine and whatever candidate it holds.
func (r *Registry) Release(k Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.engines[k]
	delete(r.engines, k)
	return ok
}

// Sweep releases engines idle for at least maxIdle and returns how many
// were dropped.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, e := range r.engines {
		if time.Since(e.LastActive()) >= maxIdle {
			delete(r.engines, k)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration, onSweep func(int)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(maxIdle); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
