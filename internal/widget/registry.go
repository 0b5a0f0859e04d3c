package widget

import "sync"

// Registry is the set of widget ids already initialized. Entries are never
// removed.
type Registry struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{ids: map[string]struct{}{}}
}

// CheckInitialized reports whether id was already registered and registers
// it. The check and the insert are one atomic step.
func (r *Registry) CheckInitialized(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return true
	}
	r.ids[id] = struct{}{}
	return false
}

func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}
