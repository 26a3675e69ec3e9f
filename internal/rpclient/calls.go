package rpclient

import (
	"sort"
	"sync"

	"github.com/juju/errors"
)

// callRegistry maps call ids to the futures waiting on them.
type callRegistry struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]*Future
}

func newCallRegistry() *callRegistry {
	return &callRegistry{pending: make(map[uint64]*Future)}
}

// create allocates the next id and its future.
func (r *callRegistry) create() (uint64, *Future) {
	f := newFuture()
	r.mu.Lock()
	r.next++
	id := r.next
	r.pending[id] = f
	r.mu.Unlock()
	return id, f
}

func (r *callRegistry) take(id uint64) *Future {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	return f
}

// resolve settles the call with v. It reports false for unknown ids.
func (r *callRegistry) resolve(id uint64, v any) bool {
	f := r.take(id)
	if f == nil {
		return false
	}
	f.resolve(v)
	return true
}

// reject fails the call with err. It reports false for unknown ids.
func (r *callRegistry) reject(id uint64, err error) bool {
	f := r.take(id)
	if f == nil {
		return false
	}
	f.reject(err)
	return true
}

// rejectAll fails every pending call with reason and empties the registry.
// Continuations may issue new calls; those stay pending.
func (r *callRegistry) rejectAll(reason error) {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[uint64]*Future)
	r.mu.Unlock()

	ids := make([]uint64, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		pending[id].reject(errors.Annotatef(reason, "call %d canceled", id))
	}
}

func (r *callRegistry) has(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[id]
	return ok
}

func (r *callRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
