package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sociomart/pkg/errors"
)

func TestNewMessagePayloadRules(t *testing.T) {
	msg, err := NewMessage("c1", "alice", "hello", MessageKindText, "", "")
	require.NoError(t, err)
	assert.Equal(t, MessageKindText, msg.Kind)

	// Kind defaults to text.
	msg, err = NewMessage("c1", "alice", "hello", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, MessageKindText, msg.Kind)

	_, err = NewMessage("c1", "alice", "", MessageKindText, "", "")
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = NewMessage("c1", "alice", "", MessageKindImage, "", "")
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = NewMessage("c1", "alice", "", MessageKindProduct, "", "")
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = NewMessage("c1", "alice", "hi", "sticker", "", "")
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestNewMessageDropsForeignPayload(t *testing.T) {
	msg, err := NewMessage("c1", "alice", "look", MessageKindImage, "prod-1", "https://cdn/img.png")
	require.NoError(t, err)
	assert.Empty(t, msg.ProductRef)
	assert.Equal(t, "https://cdn/img.png", msg.ImageURL)

	msg, err = NewMessage("c1", "alice", "", MessageKindProduct, "prod-1", "https://cdn/img.png")
	require.NoError(t, err)
	assert.Empty(t, msg.ImageURL)
	assert.Equal(t, "prod-1", msg.ProductRef)
}

func TestMarkReadIsMonotonic(t *testing.T) {
	msg, err := NewMessage("c1", "alice", "hello", MessageKindText, "", "")
	require.NoError(t, err)

	assert.False(t, msg.IsReadBy("bob"))
	assert.True(t, msg.MarkRead("bob", time.Now()))
	assert.True(t, msg.IsReadBy("bob"))

	// Second mark is a no-op and keeps the original receipt.
	first := msg.ReadBy[0].ReadAt
	assert.False(t, msg.MarkRead("bob", time.Now().Add(time.Hour)))
	assert.Len(t, msg.ReadBy, 1)
	assert.Equal(t, first, msg.ReadBy[0].ReadAt)
}
