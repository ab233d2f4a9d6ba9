package coach

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/horizon-coach/internal/session"
)

// entry serializes all work on one session. lock is a one-slot semaphore so
// waiting respects context cancellation.
type entry struct {
	lock     chan struct{}
	sess     *session.Session // resident state, nil until hydrated
	refs     int              // holders plus waiters, guarded by registry.mu
	lastUsed time.Time        // guarded by registry.mu
}

// registry maps session ids to their entries.
type registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func newRegistry(now func() time.Time) *registry {
	return &registry{entries: make(map[string]*entry), now: now}
}

// acquire blocks until the caller exclusively owns the session or ctx ends.
// The returned release must be called exactly once.
func (r *registry) acquire(ctx context.Context, id string) (*entry, func(), error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		e = &entry{lock: make(chan struct{}, 1)}
		r.entries[id] = e
	}
	e.refs++
	r.mu.Unlock()

	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		r.unref(e)
		return nil, nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-e.lock
			r.unref(e)
		})
	}
	return e, release, nil
}

func (r *registry) unref(e *entry) {
	r.mu.Lock()
	e.refs--
	e.lastUsed = r.now()
	r.mu.Unlock()
}

// evictIdle drops entries nobody holds or awaits and that have been idle for
// at least ttl. Evicted sessions rehydrate from the store on next use.
func (r *registry) evictIdle(ttl time.Duration) int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.refs == 0 && now.Sub(e.lastUsed) >= ttl {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

// resident reports how many sessions currently have an entry.
func (r *registry) resident() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
