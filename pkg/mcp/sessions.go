package mcp

import (
	"sync"

	"github.com/rendis/procdesigner/internal/designer"
)

// localClient keys the session of a caller that has no MCP client session,
// such as a handler invoked directly.
const localClient = "local"

// sessionEntry pairs a designer session with the lock that serializes tool
// calls on it. Sessions are not safe for concurrent use.
type sessionEntry struct {
	mu   sync.Mutex
	sess *designer.Session
}

// SessionRegistry maps MCP client session IDs to designer sessions.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry // clientID → session
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*sessionEntry)}
}

// Register associates a designer session with a client.
// An existing session for the client is replaced after its saves finish.
func (r *SessionRegistry) Register(clientID string, s *designer.Session) {
	r.mu.Lock()
	prev := r.sessions[clientID]
	r.sessions[clientID] = &sessionEntry{sess: s}
	r.mu.Unlock()
	if prev != nil && prev.sess != s {
		prev.sess.Wait()
	}
}

// With runs fn on the client's session while holding that session's lock.
// It returns false, without calling fn, when the client has no session.
func (r *SessionRegistry) With(clientID string, fn func(*designer.Session)) bool {
	r.mu.RLock()
	e, ok := r.sessions[clientID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sess)
	return true
}

// SessionFor returns the designer session of the client, if one is open.
// Callers that read or edit the session should go through With.
func (r *SessionRegistry) SessionFor(clientID string) (*designer.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[clientID]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

// Remove drops the client's session. Called when a client disconnects.
func (r *SessionRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, clientID)
}

// Len returns the number of open sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
