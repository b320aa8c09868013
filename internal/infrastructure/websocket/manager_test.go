package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sociomart/internal/domain/entity"
	"sociomart/internal/infrastructure/presence"
	"sociomart/internal/infrastructure/relay"
)

type fakeChatService struct {
	verifyErr   error
	sendErr     error
	markErr     error
	sent        []OutboundMessage
	markedChats []string
	typingOK    bool
}

func (f *fakeChatService) VerifyParticipant(_ context.Context, chatID, userID string) error {
	return f.verifyErr
}

func (f *fakeChatService) SendChatMessage(_ context.Context, senderID string, msg OutboundMessage) (*entity.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, msg)
	return &entity.Message{ChatID: msg.ChatID, SenderID: senderID, Content: msg.Content}, nil
}

func (f *fakeChatService) MarkMessagesRead(_ context.Context, readerID, chatID string) (int, error) {
	if f.markErr != nil {
		return 0, f.markErr
	}
	f.markedChats = append(f.markedChats, chatID)
	return 1, nil
}

func (f *fakeChatService) AllowTyping(string) bool {
	return f.typingOK
}

func newTestManager(svc ChatService) *Manager {
	m := NewManager(presence.NewRegistry(), relay.NewMemoryRelay(10))
	m.BindChatService(svc)
	return m
}

// drainFrames decodes every frame currently buffered on the client.
func drainFrames(t *testing.T, c *Client) []Envelope {
	t.Helper()
	var frames []Envelope
	for {
		select {
		case payload := <-c.Send:
			var env Envelope
			require.NoError(t, json.Unmarshal(payload, &env))
			frames = append(frames, env)
		default:
			return frames
		}
	}
}

func frameTypes(frames []Envelope) []string {
	types := make([]string, 0, len(frames))
	for _, f := range frames {
		types = append(types, f.Type)
	}
	return types
}

func TestConnectReplacesPreviousSession(t *testing.T) {
	m := newTestManager(&fakeChatService{typingOK: true})

	first := NewClient("alice", nil)
	second := NewClient("alice", nil)

	m.HandleConnect(first)
	m.HandleConnect(second)

	// The displaced session stops accepting payloads.
	assert.False(t, first.Deliver([]byte("late")))
	assert.True(t, second.Deliver([]byte("fresh")))
	assert.Equal(t, 1, m.Registry().Count())

	// The old connection's teardown must not clear the new session.
	m.HandleDisconnect(first)
	assert.True(t, m.Registry().IsOnline("alice"))
}

func TestBroadcastSurvivesSupersededRoomMember(t *testing.T) {
	m := newTestManager(&fakeChatService{})

	old := NewClient("alice", nil)
	m.HandleConnect(old)
	m.JoinRoom("c1", old)

	// Reconnect displaces the old session while it still sits in the
	// room; a racing broadcast must degrade to a dropped delivery, not a
	// send on a closed channel.
	fresh := NewClient("alice", nil)
	m.HandleConnect(fresh)

	bob := NewClient("bob", nil)
	m.HandleConnect(bob)
	m.JoinRoom("c1", bob)
	drainFrames(t, bob)

	chat := entity.NewChat("alice", "bob", "")
	chat.ID = "c1"
	assert.NotPanics(t, func() {
		m.BroadcastNewMessage(chat, &entity.Message{ID: "m1", ChatID: "c1", SenderID: "bob", Content: "hi"})
	})
	assert.Equal(t, []string{EventNewMessage}, frameTypes(drainFrames(t, bob)))
}

func TestSlowRoomMemberIsDisconnected(t *testing.T) {
	m := newTestManager(&fakeChatService{})

	alice := NewClient("alice", nil)
	bob := NewClient("bob", nil)
	m.HandleConnect(alice)
	m.HandleConnect(bob)
	m.JoinRoom("c1", alice)
	m.JoinRoom("c1", bob)
	drainFrames(t, bob)

	// Fill bob's buffer so the next room delivery fails.
	for bob.Deliver([]byte("x")) {
	}

	chat := entity.NewChat("alice", "bob", "")
	chat.ID = "c1"
	m.BroadcastNewMessage(chat, &entity.Message{ID: "m1", ChatID: "c1", SenderID: "alice", Content: "hi"})

	assert.False(t, m.Registry().IsOnline("bob"))
	assert.False(t, m.InRoom("c1", "bob"))
	assert.False(t, bob.Deliver([]byte("after")))
}

func TestPresenceBroadcastSkipsSubject(t *testing.T) {
	m := newTestManager(&fakeChatService{typingOK: true})

	alice := NewClient("alice", nil)
	m.HandleConnect(alice)

	bob := NewClient("bob", nil)
	m.HandleConnect(bob)

	aliceFrames := drainFrames(t, alice)
	assert.Contains(t, frameTypes(aliceFrames), EventUserOnline)
	assert.Empty(t, drainFrames(t, bob), "a user does not see their own presence event")

	m.HandleDisconnect(bob)
	aliceFrames = drainFrames(t, alice)
	require.Len(t, aliceFrames, 1)
	assert.Equal(t, EventUserOffline, aliceFrames[0].Type)

	var pd PresenceData
	require.NoError(t, json.Unmarshal(aliceFrames[0].Data, &pd))
	assert.Equal(t, "bob", pd.UserID)
	assert.NotEmpty(t, pd.LastSeen)
}

func TestOfflineBacklogDeliveredOnConnect(t *testing.T) {
	offlineRelay := relay.NewMemoryRelay(10)
	m := NewManager(presence.NewRegistry(), offlineRelay)
	m.BindChatService(&fakeChatService{})

	msg := &entity.Message{ChatID: "c1", SenderID: "alice", Content: "while you were away"}
	require.NoError(t, offlineRelay.Enqueue(context.Background(), "bob", relay.Entry{
		ChatID:   "c1",
		Message:  msg,
		QueuedAt: time.Now(),
	}))

	bob := NewClient("bob", nil)
	m.HandleConnect(bob)

	frames := drainFrames(t, bob)
	require.Len(t, frames, 1)
	assert.Equal(t, EventOfflineMessages, frames[0].Type)

	var data OfflineMessagesData
	require.NoError(t, json.Unmarshal(frames[0].Data, &data))
	require.Len(t, data.Entries, 1)
	assert.Equal(t, "while you were away", data.Entries[0].Message.Content)

	// The backlog is consumed, not replayed.
	entries, err := offlineRelay.Drain(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBroadcastNewMessageReachesWholeRoom(t *testing.T) {
	m := newTestManager(&fakeChatService{})

	alice := NewClient("alice", nil)
	bob := NewClient("bob", nil)
	m.HandleConnect(alice)
	m.HandleConnect(bob)
	m.JoinRoom("c1", alice)
	m.JoinRoom("c1", bob)
	drainFrames(t, alice)
	drainFrames(t, bob)

	chat := entity.NewChat("alice", "bob", "")
	chat.ID = "c1"
	m.BroadcastNewMessage(chat, &entity.Message{ID: "m1", ChatID: "c1", SenderID: "alice", Content: "hi"})

	// The sender receives the echo too.
	assert.Equal(t, []string{EventNewMessage}, frameTypes(drainFrames(t, alice)))
	assert.Equal(t, []string{EventNewMessage}, frameTypes(drainFrames(t, bob)))
}

func TestBroadcastNewMessageQueuesForOfflineRecipient(t *testing.T) {
	offlineRelay := relay.NewMemoryRelay(10)
	m := NewManager(presence.NewRegistry(), offlineRelay)
	m.BindChatService(&fakeChatService{})

	alice := NewClient("alice", nil)
	m.HandleConnect(alice)
	m.JoinRoom("c1", alice)

	chat := entity.NewChat("alice", "bob", "")
	chat.ID = "c1"
	m.BroadcastNewMessage(chat, &entity.Message{ID: "m1", ChatID: "c1", SenderID: "alice", Content: "hi"})

	entries, err := offlineRelay.Drain(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hi", entries[0].Message.Content)
}

func TestNotifyChatEndedTargetsOtherParticipant(t *testing.T) {
	m := newTestManager(&fakeChatService{})

	alice := NewClient("alice", nil)
	bob := NewClient("bob", nil)
	m.HandleConnect(alice)
	m.HandleConnect(bob)
	drainFrames(t, alice)
	drainFrames(t, bob)

	chat := entity.NewChat("alice", "bob", "")
	chat.ID = "c1"
	require.NoError(t, chat.End("alice"))

	m.NotifyChatEnded(chat)

	assert.Empty(t, drainFrames(t, alice))
	frames := drainFrames(t, bob)
	require.Len(t, frames, 1)
	assert.Equal(t, EventChatEnded, frames[0].Type)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	m := newTestManager(&fakeChatService{})

	alice := NewClient("alice", nil)
	bob := NewClient("bob", nil)
	m.HandleConnect(alice)
	m.HandleConnect(bob)
	m.JoinRoom("c1", alice)
	m.JoinRoom("c1", bob)
	m.LeaveRoom("c1", bob)
	drainFrames(t, alice)
	drainFrames(t, bob)

	chat := entity.NewChat("alice", "bob", "")
	chat.ID = "c1"
	m.BroadcastNewMessage(chat, &entity.Message{ID: "m1", ChatID: "c1", SenderID: "alice", Content: "hi"})

	assert.Empty(t, drainFrames(t, bob))
	assert.False(t, m.InRoom("c1", "bob"))
}
