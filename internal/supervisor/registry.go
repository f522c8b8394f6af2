package supervisor

import (
	"sort"
	"sync"

	"github.com/casabot/innkeeper/internal/worker"
)

// Registry tracks the live worker for each thread. Claim is compare-and-set:
// at most one registration per thread can be live at a time, so a discovery
// pass and a host-answer wake racing on the same thread spawn one worker,
// not two.
type Registry struct {
	mu      sync.Mutex
	workers map[string]*worker.Worker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{workers: map[string]*worker.Worker{}}
}

// Claim registers w for the thread unless another worker is already live.
func (r *Registry) Claim(threadID string, w *worker.Worker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, live := r.workers[threadID]; live {
		return false
	}
	r.workers[threadID] = w
	return true
}

// Release drops the thread's registration. Called by the worker goroutine
// on exit.
func (r *Registry) Release(threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, threadID)
}

// Get returns the live worker for a thread, if any.
func (r *Registry) Get(threadID string) (*worker.Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[threadID]
	return w, ok
}

// Count returns the number of live workers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// ThreadIDs returns the claimed thread ids, sorted.
func (r *Registry) ThreadIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
