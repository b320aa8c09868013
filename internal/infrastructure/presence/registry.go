package presence

import (
	"sync"
	"time"
)

// Session is the live connection handle stored per user. The websocket
// client implements it; tests use in-process fakes.
type Session interface {
	// Deliver queues a payload for the connection. Returns false when the
	// connection cannot accept it (buffer full or closed).
	Deliver(payload []byte) bool
	// CloseSuperseded shuts the connection down after it has been replaced
	// by a newer session for the same user.
	CloseSuperseded()
}

type entry struct {
	session    Session
	lastSeenAt time.Time
}

// Registry tracks which users currently hold a live connection. It is an
// explicit instance owned by the delivery channel, not package-global
// state, so tests get an isolated registry each.
//
// Policy: a single active session per user. Registering a second session
// for the same user replaces the first.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register stores session as userID's live connection and returns the
// session it displaced, if any. The caller closes the displaced session.
func (r *Registry) Register(userID string, session Session) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.entries[userID]
	r.entries[userID] = entry{session: session, lastSeenAt: time.Now()}
	if existed {
		return prev.session
	}
	return nil
}

// Unregister removes userID's entry if it still maps to session. A stale
// unregister from a superseded connection is a no-op.
func (r *Registry) Unregister(userID string, session Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entries[userID]
	if !ok || current.session != session {
		return false
	}
	delete(r.entries, userID)
	return true
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[userID]
	return ok
}

// Get returns the live session for userID, or nil.
func (r *Registry) Get(userID string) Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[userID]; ok {
		return e.session
	}
	return nil
}

// Touch refreshes the last-seen timestamp for userID.
func (r *Registry) Touch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[userID]; ok {
		e.lastSeenAt = time.Now()
		r.entries[userID] = e
	}
}

func (r *Registry) LastSeen(userID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[userID]; ok {
		return e.lastSeenAt, true
	}
	return time.Time{}, false
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ForEach calls fn for every connected user. The snapshot is taken under
// the read lock; fn runs outside it.
func (r *Registry) ForEach(fn func(userID string, session Session)) {
	r.mu.RLock()
	snapshot := make(map[string]Session, len(r.entries))
	for id, e := range r.entries {
		snapshot[id] = e.session
	}
	r.mu.RUnlock()

	for id, s := range snapshot {
		fn(id, s)
	}
}
