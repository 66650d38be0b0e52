// Package presence tracks which live connections belong to which user and
// derives online/offline transitions from the first connection in and the
// last connection out.
package presence

import (
	"sync"
)

// Registry is an in-process service object; construct one at startup and
// inject it. All mutations run under one mutex, so concurrent authenticate
// and disconnect for the same user cannot lose updates, and each transition
// is decided exactly once.
type Registry struct {
	mu     sync.Mutex
	byUser map[string]map[string]struct{}
	byConn map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]struct{}),
		byConn: make(map[string]string),
	}
}

// Authenticate registers the connection under the user and reports whether
// this was the user's offline→online transition. Re-authenticating a bound
// connection moves it to the new user.
func (r *Registry) Authenticate(connID, userID string) (cameOnline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[connID]; ok {
		if prev == userID {
			return false
		}
		r.detachLocked(connID, prev)
	}

	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[string]struct{})
		r.byUser[userID] = conns
	}
	first := len(conns) == 0
	conns[connID] = struct{}{}
	r.byConn[connID] = userID
	return first
}

// Disconnect removes the connection and reports whether the owning user went
// offline with it. An unknown connection is a no-op.
func (r *Registry) Disconnect(connID string) (userID string, wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	return userID, r.detachLocked(connID, userID)
}

func (r *Registry) detachLocked(connID, userID string) (wentOffline bool) {
	delete(r.byConn, connID)
	conns := r.byUser[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, userID)
		return true
	}
	return false
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser[userID]) > 0
}

func (r *Registry) ListOnline() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		users = append(users, userID)
	}
	return users
}

// Connections returns the user's live connection IDs, supporting
// multi-device delivery.
func (r *Registry) Connections(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]string, 0, len(r.byUser[userID]))
	for connID := range r.byUser[userID] {
		conns = append(conns, connID)
	}
	return conns
}

// UserOf returns the user a connection is bound to, if any.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.byConn[connID]
	return userID, ok
}
