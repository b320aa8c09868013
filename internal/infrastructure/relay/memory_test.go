package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sociomart/internal/domain/entity"
)

func entryWithContent(content string) Entry {
	return Entry{
		ChatID: "c1",
		Message: &entity.Message{
			ChatID:   "c1",
			SenderID: "alice",
			Content:  content,
			Kind:     entity.MessageKindText,
		},
		QueuedAt: time.Now(),
	}
}

func TestMemoryRelayDrainIsChronologicalAndClears(t *testing.T) {
	r := NewMemoryRelay(10)
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, "bob", entryWithContent("first")))
	require.NoError(t, r.Enqueue(ctx, "bob", entryWithContent("second")))

	entries, err := r.Drain(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Message.Content)
	assert.Equal(t, "second", entries[1].Message.Content)

	entries, err = r.Drain(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryRelayDropsOldestAtCap(t *testing.T) {
	r := NewMemoryRelay(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Enqueue(ctx, "bob", entryWithContent(fmt.Sprintf("m%d", i))))
	}

	entries, err := r.Drain(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "m2", entries[0].Message.Content)
	assert.Equal(t, "m4", entries[2].Message.Content)
}

func TestMemoryRelayQueuesPerUser(t *testing.T) {
	r := NewMemoryRelay(10)
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, "bob", entryWithContent("for bob")))
	require.NoError(t, r.Enqueue(ctx, "carol", entryWithContent("for carol")))

	bobEntries, err := r.Drain(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobEntries, 1)
	assert.Equal(t, "for bob", bobEntries[0].Message.Content)

	carolEntries, err := r.Drain(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, carolEntries, 1)
}
