package websocket

import (
	"context"
	"sync"
	"time"

	"sociomart/internal/domain/entity"
	"sociomart/internal/infrastructure/presence"
	"sociomart/internal/infrastructure/relay"
	"sociomart/pkg/logger"
)

// OutboundMessage is the payload of an inbound send_message event, handed
// to the chat service for validation and persistence.
type OutboundMessage struct {
	ChatID     string
	Content    string
	Kind       string
	ProductRef string
	ImageURL   string
}

// ChatService is the port the delivery channel dispatches typed commands
// to. The chat use case implements it.
type ChatService interface {
	// VerifyParticipant returns an error when the chat does not exist or
	// userID is not one of its participants. The two cases are not
	// distinguished.
	VerifyParticipant(ctx context.Context, chatID, userID string) error
	SendChatMessage(ctx context.Context, senderID string, msg OutboundMessage) (*entity.Message, error)
	// MarkMessagesRead marks every unread message in the chat as read by
	// readerID and returns how many were newly marked.
	MarkMessagesRead(ctx context.Context, readerID, chatID string) (int, error)
	AllowTyping(userID string) bool
}

// Manager is the delivery channel: it owns the presence registry, the
// offline relay and chat-room membership, and fans events out to
// connected clients.
type Manager struct {
	registry *presence.Registry
	relay    relay.Relay
	chat     ChatService

	mu    sync.RWMutex
	rooms map[string]map[string]*Client // chatID -> userID -> client
}

func NewManager(registry *presence.Registry, offlineRelay relay.Relay) *Manager {
	return &Manager{
		registry: registry,
		relay:    offlineRelay,
		rooms:    make(map[string]map[string]*Client),
	}
}

// BindChatService attaches the chat service. Separate from the constructor
// because the use case is built after the manager.
func (m *Manager) BindChatService(svc ChatService) {
	m.chat = svc
}

func (m *Manager) Registry() *presence.Registry {
	return m.registry
}

// HandleConnect runs after a successful handshake: the client takes over
// the user's presence entry, everyone else learns the user is online, and
// queued offline messages are pushed down the new connection.
func (m *Manager) HandleConnect(client *Client) {
	if displaced := m.registry.Register(client.UserID, client); displaced != nil {
		logger.Info("Replacing existing connection for user %s", client.UserID)
		displaced.CloseSuperseded()
	}

	m.broadcastPresence(client.UserID, true, time.Now())
	m.deliverOfflineBacklog(client)
}

// HandleDisconnect removes the client from every room and, unless the
// connection was already superseded, clears presence and tells everyone
// else the user went offline.
func (m *Manager) HandleDisconnect(client *Client) {
	m.mu.Lock()
	for chatID, members := range m.rooms {
		if members[client.UserID] == client {
			delete(members, client.UserID)
			if len(members) == 0 {
				delete(m.rooms, chatID)
			}
		}
	}
	m.mu.Unlock()

	if m.registry.Unregister(client.UserID, client) {
		m.broadcastPresence(client.UserID, false, time.Now())
	}
}

func (m *Manager) JoinRoom(chatID string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[chatID]
	if !ok {
		members = make(map[string]*Client)
		m.rooms[chatID] = members
	}
	members[client.UserID] = client
}

func (m *Manager) LeaveRoom(chatID string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if members, ok := m.rooms[chatID]; ok {
		if members[client.UserID] == client {
			delete(members, client.UserID)
			if len(members) == 0 {
				delete(m.rooms, chatID)
			}
		}
	}
}

// InRoom reports whether userID currently has a connection in the chat
// room.
func (m *Manager) InRoom(chatID, userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[chatID][userID]
	return ok
}

// SendToUser delivers a payload to userID's personal room. Returns false
// when the user has no live connection.
func (m *Manager) SendToUser(userID string, payload []byte) bool {
	session := m.registry.Get(userID)
	if session == nil {
		return false
	}
	return session.Deliver(payload)
}

// broadcastToRoom fans a payload out to every member of the chat room,
// skipping excludeUserID when set.
func (m *Manager) broadcastToRoom(chatID string, payload []byte, excludeUserID string) {
	m.mu.RLock()
	members := make([]*Client, 0, len(m.rooms[chatID]))
	for userID, client := range m.rooms[chatID] {
		if userID == excludeUserID {
			continue
		}
		members = append(members, client)
	}
	m.mu.RUnlock()

	for _, client := range members {
		if !client.Deliver(payload) {
			logger.Warn("Disconnecting slow client %s in chat %s", client.UserID, chatID)
			client.shutdown()
			m.HandleDisconnect(client)
		}
	}
}

// broadcastPresence notifies every other connected user of an
// online/offline transition. The fan-out is global, matching the observed
// behavior of the surrounding application.
func (m *Manager) broadcastPresence(userID string, online bool, lastSeen time.Time) {
	var payload []byte
	if online {
		payload = encodeEvent(EventUserOnline, PresenceData{UserID: userID})
	} else {
		payload = encodeEvent(EventUserOffline, PresenceData{
			UserID:   userID,
			LastSeen: lastSeen.UTC().Format(time.RFC3339),
		})
	}

	m.registry.ForEach(func(otherID string, session presence.Session) {
		if otherID == userID {
			return
		}
		session.Deliver(payload)
	})
}

func (m *Manager) deliverOfflineBacklog(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, err := m.relay.Drain(ctx, client.UserID)
	if err != nil {
		logger.Warn("Failed to drain offline relay for user %s: %v", client.UserID, err)
		return
	}
	if len(entries) == 0 {
		return
	}

	client.Deliver(encodeEvent(EventOfflineMessages, OfflineMessagesData{Entries: entries}))
	logger.Info("Delivered %d offline messages to user %s", len(entries), client.UserID)
}

// BroadcastNewMessage fans a freshly persisted message out to the chat
// room and queues it on the offline relay for the absent participant.
// Called by the use case after the store write committed, never before.
func (m *Manager) BroadcastNewMessage(chat *entity.Chat, message *entity.Message) {
	payload := encodeEvent(EventNewMessage, NewMessageData{
		ChatID:  chat.ID,
		Message: message,
	})
	m.broadcastToRoom(chat.ID, payload, "")

	recipient := chat.OtherParticipant(message.SenderID)
	if recipient == "" || m.registry.IsOnline(recipient) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := m.relay.Enqueue(ctx, recipient, relay.Entry{
		ChatID:   chat.ID,
		Message:  message,
		QueuedAt: time.Now(),
	})
	if err != nil {
		// Best effort: the store already holds the message.
		logger.Warn("Failed to enqueue offline message for user %s: %v", recipient, err)
	}
}

// BroadcastMessagesRead tells the chat room (except the reader) that
// readerID caught up.
func (m *Manager) BroadcastMessagesRead(chatID, readerID string) {
	payload := encodeEvent(EventMessagesRead, MessagesReadData{
		ChatID: chatID,
		ReadBy: readerID,
	})
	m.broadcastToRoom(chatID, payload, readerID)
}

// NotifyChatEnded pushes a chat_ended event to the participant who did not
// end the chat. Best effort.
func (m *Manager) NotifyChatEnded(chat *entity.Chat) {
	other := chat.OtherParticipant(chat.EndedBy)
	if other == "" {
		return
	}

	payload := encodeEvent(EventChatEnded, ChatEndedData{
		ChatID:  chat.ID,
		EndedBy: chat.EndedBy,
		EndedAt: chat.EndedAt,
	})
	if !m.SendToUser(other, payload) {
		logger.Debug("User %s offline, skipping chat_ended notification for chat %s", other, chat.ID)
	}
}
