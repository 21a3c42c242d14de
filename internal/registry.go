package internal

import "sync"

// Registry is the authoritative set of open connections. Sessions join in
// anonymous state and claim a nick through the handshake; at most one session
// holds a given nick at any time.
type Registry struct {
	mutex    sync.Mutex
	sessions []*Session
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a session in anonymous state.
func (r *Registry) Register(session *Session) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sessions = append(r.sessions, session)
}

// Unregister removes a session if present. Safe to call more than once; an
// evicted session's own teardown will land here after the handshake already
// removed it.
func (r *Registry) Unregister(session *Session) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for i, other := range r.sessions {
		if other == session {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			return
		}
	}
}

// Claim sets the session's identity and removes any other session currently
// holding the same nick. The displaced session, if any, is returned so the
// caller can terminate it. The find-evict-assign sequence runs under one
// lock so concurrent handshakes cannot leave two holders.
func (r *Registry) Claim(session *Session, nick, server string) *Session {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var evicted *Session
	for i, other := range r.sessions {
		if other != session && other.Nick() == nick {
			evicted = other
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			break
		}
	}
	session.setIdentity(nick, server)
	return evicted
}

// FindByNick returns the session holding the nick, or nil. A linear scan is
// fine at the expected cardinality.
func (r *Registry) FindByNick(nick string) *Session {
	if nick == "" {
		return nil
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, session := range r.sessions {
		if session.Nick() == nick {
			return session
		}
	}
	return nil
}

// All returns a snapshot of the current sessions, safe to iterate while the
// registry keeps mutating.
func (r *Registry) All() []*Session {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	snapshot := make([]*Session, len(r.sessions))
	copy(snapshot, r.sessions)
	return snapshot
}

// Len reports the number of open connections.
func (r *Registry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.sessions)
}
