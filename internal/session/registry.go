package session

import (
	"context"
	"sync"
	"time"
)

// Registry keeps one controller per session id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Controller
	newFunc  func() *Controller
}

func NewRegistry(newFunc func() *Controller) *Registry {
	return &Registry{
		sessions: make(map[string]*Controller),
		newFunc:  newFunc,
	}
}

// Get returns the controller for id, creating it on first use. Both Get and
// Lookup count as activity so a sweep can't evict a session being handed out.
func (r *Registry) Get(id string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.sessions[id]; ok {
		c.touch()
		return c
	}

	c := r.newFunc()
	r.sessions[id] = c

	return c
}

func (r *Registry) Lookup(id string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.sessions[id]
	if ok {
		c.touch()
	}
	return c, ok
}

func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sessions[id]
	delete(r.sessions, id)

	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// EvictIdle drops sessions inactive since before now-ttl. Sessions with a
// turn in flight are kept. It stops early once ctx is done.
func (r *Registry) EvictIdle(ctx context.Context, now time.Time, ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-ttl)
	evicted := 0
	for id, c := range r.sessions {
		if ctx.Err() != nil {
			break
		}
		if c.Busy() || !c.LastActive().Before(cutoff) {
			continue
		}
		delete(r.sessions, id)
		evicted++
	}

	return evicted
}
