package server

import (
	"slices"
	"sync"
)

// Registry is the set of live sessions in the order they connected.
// Iteration works on a snapshot, so callbacks may queue messages or touch
// the registry without holding its lock.
type Registry struct {
	mu       sync.RWMutex
	sessions []*Session
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.sessions, s) {
		return
	}
	r.sessions = append(r.sessions, s)
}

// Deregister removes s and reports whether it was registered.
func (r *Registry) Deregister(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.Index(r.sessions, s)
	if i < 0 {
		return false
	}
	r.sessions = slices.Delete(r.sessions, i, i+1)
	return true
}

// FindByName returns the earliest-connected session displaying name, or nil.
func (r *Registry) FindByName(name string) *Session {
	return r.Find(func(s *Session) bool { return s.Name() == name })
}

// Find returns the earliest-connected session matching pred, or nil.
func (r *Registry) Find(pred func(*Session) bool) *Session {
	for _, s := range r.Snapshot() {
		if pred(s) {
			return s
		}
	}
	return nil
}

// ForEach calls action for every session matching pred. A nil pred matches
// every session.
func (r *Registry) ForEach(pred func(*Session) bool, action func(*Session)) {
	for _, s := range r.Snapshot() {
		if pred == nil || pred(s) {
			action(s)
		}
	}
}

func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.sessions)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
