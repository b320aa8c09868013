package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sociomart/pkg/errors"
)

func TestNewChatDerivesType(t *testing.T) {
	direct := NewChat("alice", "bob", "")
	assert.Equal(t, ChatTypeDirect, direct.ChatType)
	assert.Equal(t, ChatStatusActive, direct.Status)
	assert.True(t, direct.IsActive)

	inquiry := NewChat("alice", "bob", "prod-1")
	assert.Equal(t, ChatTypeProductInquiry, inquiry.ChatType)
}

func TestChatPairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, ChatPairKey("bob", "alice", ""), ChatPairKey("alice", "bob", ""))
	assert.Equal(t, ChatPairKey("bob", "alice", "p1"), ChatPairKey("alice", "bob", "p1"))
	assert.NotEqual(t, ChatPairKey("alice", "bob", ""), ChatPairKey("alice", "bob", "p1"))
	assert.NotEqual(t, ChatPairKey("alice", "bob", "p1"), ChatPairKey("alice", "bob", "p2"))
}

func TestOtherParticipant(t *testing.T) {
	chat := NewChat("alice", "bob", "")
	assert.Equal(t, "bob", chat.OtherParticipant("alice"))
	assert.Equal(t, "alice", chat.OtherParticipant("bob"))
}

func TestEndChat(t *testing.T) {
	chat := NewChat("alice", "bob", "")

	require.NoError(t, chat.End("alice"))
	assert.Equal(t, ChatStatusEnded, chat.Status)
	assert.Equal(t, "alice", chat.EndedBy)
	assert.False(t, chat.EndedAt.IsZero())

	err := chat.End("bob")
	assert.True(t, errors.Is(err, "INVALID_STATE"))
}

func TestEndChatByNonParticipant(t *testing.T) {
	chat := NewChat("alice", "bob", "")
	err := chat.End("mallory")
	assert.True(t, errors.Is(err, "FORBIDDEN"))
	assert.Equal(t, ChatStatusActive, chat.Status)
}

func TestReportChat(t *testing.T) {
	chat := NewChat("alice", "bob", "")

	err := chat.Report("bob", "spam")
	assert.True(t, errors.Is(err, "INVALID_STATE"), "report requires ended chat")

	require.NoError(t, chat.End("alice"))

	err = chat.Report("alice", "spam")
	assert.True(t, errors.Is(err, "FORBIDDEN"), "ender cannot report")

	require.NoError(t, chat.Report("bob", "spam"))
	assert.Equal(t, "bob", chat.ReportedBy)
	assert.Equal(t, "spam", chat.ReportReason)
	assert.Equal(t, ChatStatusEnded, chat.Status)

	err = chat.Report("bob", "again")
	assert.True(t, errors.Is(err, "INVALID_STATE"), "report is once only")
}

func TestMarkDeletedRequiresEnded(t *testing.T) {
	chat := NewChat("alice", "bob", "")

	err := chat.MarkDeleted("alice")
	assert.True(t, errors.Is(err, "INVALID_STATE"))

	require.NoError(t, chat.End("bob"))
	require.NoError(t, chat.MarkDeleted("alice"))
	assert.Equal(t, ChatStatusDeleted, chat.Status)
	assert.False(t, chat.IsActive)

	err = chat.End("alice")
	assert.True(t, errors.Is(err, "INVALID_STATE"), "deleted chat cannot be ended")
}

func TestCanAppend(t *testing.T) {
	chat := NewChat("alice", "bob", "")
	assert.True(t, chat.CanAppend())

	require.NoError(t, chat.End("alice"))
	assert.False(t, chat.CanAppend())

	require.NoError(t, chat.MarkDeleted("alice"))
	assert.False(t, chat.CanAppend())
}
