package bridge

import "sync"

// Entry records one live bridge: the attach child, its master fd, and the
// mux session it is connected to. Each entry is written only by the bridge
// owning that session id, on setup and teardown.
type Entry struct {
	SessionID string
	MuxName   string
	PID       int
	MasterFD  uintptr
}

// Registry is the process-wide view of active bridges.
type Registry struct {
	mu     sync.RWMutex
	active map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{active: map[string]Entry{}}
}

func (r *Registry) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[e.SessionID] = e
}

func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, sessionID)
}

func (r *Registry) Get(sessionID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.active[sessionID]
	return e, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}
