package presence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSession struct {
	mu         sync.Mutex
	delivered  [][]byte
	superseded bool
}

func (s *fakeSession) Deliver(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, payload)
	return true
}

func (s *fakeSession) CloseSuperseded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.superseded = true
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	s := &fakeSession{}

	assert.Nil(t, r.Register("alice", s))
	assert.True(t, r.IsOnline("alice"))
	assert.Equal(t, Session(s), r.Get("alice"))
	assert.Equal(t, 1, r.Count())

	_, seen := r.LastSeen("alice")
	assert.True(t, seen)
}

func TestRegisterReplacesExistingSession(t *testing.T) {
	r := NewRegistry()
	first := &fakeSession{}
	second := &fakeSession{}

	r.Register("alice", first)
	displaced := r.Register("alice", second)

	assert.Equal(t, Session(first), displaced)
	assert.Equal(t, Session(second), r.Get("alice"))
	assert.Equal(t, 1, r.Count())
}

func TestStaleUnregisterIsNoOp(t *testing.T) {
	r := NewRegistry()
	first := &fakeSession{}
	second := &fakeSession{}

	r.Register("alice", first)
	r.Register("alice", second)

	// The displaced connection's deferred cleanup must not evict the
	// replacement.
	assert.False(t, r.Unregister("alice", first))
	assert.True(t, r.IsOnline("alice"))

	assert.True(t, r.Unregister("alice", second))
	assert.False(t, r.IsOnline("alice"))
}

func TestForEachSnapshots(t *testing.T) {
	r := NewRegistry()
	r.Register("alice", &fakeSession{})
	r.Register("bob", &fakeSession{})

	var seen []string
	r.ForEach(func(userID string, _ Session) {
		seen = append(seen, userID)
		// Mutation during iteration must not deadlock.
		r.Unregister(userID, r.Get(userID))
	})
	assert.Len(t, seen, 2)
	assert.Equal(t, 0, r.Count())
}
