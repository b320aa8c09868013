package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sociomart/internal/domain/entity"
	"sociomart/pkg/errors"
)

// Entry is one message captured for an offline recipient.
type Entry struct {
	ChatID   string          `json:"chat_id"`
	Message  *entity.Message `json:"message"`
	QueuedAt time.Time       `json:"queued_at"`
}

// Relay is a bounded, best-effort queue of messages a recipient missed
// while disconnected. Delivery is at most once; the conversation store
// stays authoritative.
type Relay interface {
	// Enqueue appends an entry for userID. When the per-user queue exceeds
	// the cap, the oldest entry is dropped first.
	Enqueue(ctx context.Context, userID string, e Entry) error
	// Drain returns and clears all queued entries for userID, oldest first.
	Drain(ctx context.Context, userID string) ([]Entry, error)
}

type redisRelay struct {
	client *redis.Client
	cap    int64
}

// NewRedisRelay builds a Relay backed by a per-user Redis list, trimmed to
// cap entries.
func NewRedisRelay(client *redis.Client, cap int) Relay {
	if cap <= 0 {
		cap = 100
	}
	return &redisRelay{client: client, cap: int64(cap)}
}

func offlineKey(userID string) string {
	return fmt.Sprintf("user:%s:offline_messages", userID)
}

func (r *redisRelay) Enqueue(ctx context.Context, userID string, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return errors.Internal("Failed to encode offline entry", err)
	}

	key := offlineKey(userID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, r.cap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Unavailable("Offline relay store unavailable", err)
	}
	return nil
}

func (r *redisRelay) Drain(ctx context.Context, userID string) ([]Entry, error) {
	key := offlineKey(userID)

	pipe := r.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Unavailable("Offline relay store unavailable", err)
	}

	raw := rangeCmd.Val()
	entries := make([]Entry, 0, len(raw))
	// LPUSH stores newest first; walk backwards for chronological order.
	for i := len(raw) - 1; i >= 0; i-- {
		var e Entry
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
