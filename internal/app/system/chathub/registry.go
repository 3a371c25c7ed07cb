// internal/app/system/chathub/registry.go
package chathub

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session is the identity a connection acquired through a login event.
// A connection with no session entry may not send messages.
type Session struct {
	UserID  primitive.ObjectID
	Name    string
	Picture string
}

// Registry maps connection ids to logged-in sessions. It is owned by the
// Hub and shared with nothing else; constructor injection keeps it
// swappable in tests.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

func (r *Registry) Put(connID string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = s
}

func (r *Registry) Get(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, connID)
}

// Len reports how many connections are logged in.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
