package session

import (
	"fmt"
	"sync"
)

// Registry maps session ids to live sessions. It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register stores s under id, failing with [ErrDuplicateSession] if the id is taken.
func (r *Registry) Register(id string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}
	r.sessions[id] = s
	return nil
}

// Remove deletes id and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	_, ok := r.Take(id)
	return ok
}

func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Take removes id and returns what was stored under it.
// Of any number of concurrent calls for the same id, exactly one gets the session.
func (r *Registry) Take(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns the live sessions in no particular order.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
