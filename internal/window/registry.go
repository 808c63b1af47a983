package window

import (
	"sort"
	"sync"
)

// Phase is where a window id is in its open/close lifecycle
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseOpening
	PhaseOpen
)

func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "opening"
	case PhaseOpen:
		return "open"
	default:
		return "closed"
	}
}

type entry struct {
	handle Handle
	phase  Phase
}

// Registry maps window ids to live OS handles. It reflects what is open right
// now; whether a window should be open is the persisted enabled flag.
type Registry struct {
	entries map[int]*entry
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int]*entry)}
}

// Register records a freshly created handle in the opening phase
func (r *Registry) Register(id int, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &entry{handle: h, phase: PhaseOpening}
}

// MarkOpen moves id to the open phase once its window was shown
func (r *Registry) MarkOpen(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.phase = PhaseOpen
	}
}

// Unregister forgets id
func (r *Registry) Unregister(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Get returns the live handle for id
func (r *Registry) Get(id int) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// Phase returns the lifecycle phase of id
func (r *Registry) Phase(id int) Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.phase
	}
	return PhaseClosed
}

// OpenIDs returns every registered id in ascending order
func (r *Registry) OpenIDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len returns the number of registered windows
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
