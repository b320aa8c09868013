package websocket

import (
	"encoding/json"
	"time"

	"sociomart/internal/domain/entity"
	"sociomart/internal/infrastructure/relay"
)

// Client -> server event types
const (
	EventPing             = "ping"
	EventJoinChat         = "join_chat"
	EventLeaveChat        = "leave_chat"
	EventSendMessage      = "send_message"
	EventTypingStart      = "typing_start"
	EventTypingStop       = "typing_stop"
	EventMarkMessagesRead = "mark_messages_read"
)

// Server -> client event types
const (
	EventPong            = "pong"
	EventNewMessage      = "new_message"
	EventUserTyping      = "user_typing"
	EventUserStopTyping  = "user_stop_typing"
	EventMessagesRead    = "messages_read"
	EventUserOnline      = "user_online"
	EventUserOffline     = "user_offline"
	EventChatEnded       = "chat_ended"
	EventOfflineMessages = "offline_messages"
	EventError           = "error"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type ChatRef struct {
	ChatID string `json:"chat_id"`
}

type SendMessageData struct {
	ChatID     string `json:"chat_id"`
	Content    string `json:"content"`
	Kind       string `json:"message_type"`
	ProductRef string `json:"product_ref,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

type NewMessageData struct {
	ChatID  string          `json:"chat_id"`
	Message *entity.Message `json:"message"`
}

type TypingData struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
}

type MessagesReadData struct {
	ChatID string `json:"chat_id"`
	ReadBy string `json:"read_by"`
}

type PresenceData struct {
	UserID   string `json:"user_id"`
	LastSeen string `json:"last_seen,omitempty"`
}

type ChatEndedData struct {
	ChatID  string    `json:"chat_id"`
	EndedBy string    `json:"ended_by"`
	EndedAt time.Time `json:"ended_at"`
}

type OfflineMessagesData struct {
	Entries []relay.Entry `json:"entries"`
}

type ErrorData struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// encodeEvent marshals a typed payload into a wire frame. Marshal errors
// cannot occur for our payload types, so the result is returned directly.
func encodeEvent(eventType string, payload interface{}) []byte {
	data, _ := json.Marshal(payload)
	frame, _ := json.Marshal(Envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return frame
}
