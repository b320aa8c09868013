package relay

import (
	"context"
	"sync"
)

type memoryRelay struct {
	mu     sync.Mutex
	cap    int
	queues map[string][]Entry
}

// NewMemoryRelay builds a process-local Relay with the same cap and
// eviction semantics as the Redis one. Used when REDIS_ADDR is not
// configured, and in tests.
func NewMemoryRelay(cap int) Relay {
	if cap <= 0 {
		cap = 100
	}
	return &memoryRelay{
		cap:    cap,
		queues: make(map[string][]Entry),
	}
}

func (r *memoryRelay) Enqueue(_ context.Context, userID string, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := append(r.queues[userID], e)
	if len(q) > r.cap {
		q = q[len(q)-r.cap:] // drop oldest
	}
	r.queues[userID] = q
	return nil
}

func (r *memoryRelay) Drain(_ context.Context, userID string) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.queues[userID]
	delete(r.queues, userID)
	return q, nil
}
