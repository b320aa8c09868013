package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "sociomart/pkg/errors"
	"sociomart/pkg/logger"
)

const commandTimeout = 10 * time.Second

// HandleClientMessage decodes one inbound frame into a typed command and
// dispatches it. Validation and state errors go back to the originating
// connection as an error event; they are never broadcast.
func (m *Manager) HandleClientMessage(client *Client, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		logger.Warn("Invalid frame from user %s: %v", client.UserID, err)
		m.sendError(client, "Invalid message format")
		return
	}

	m.registry.Touch(client.UserID)

	switch env.Type {
	case EventPing:
		client.Deliver(encodeEvent(EventPong, map[string]string{"status": "alive"}))

	case EventJoinChat:
		m.handleJoinChat(client, env.Data)

	case EventLeaveChat:
		m.handleLeaveChat(client, env.Data)

	case EventSendMessage:
		m.handleSendMessage(client, env.Data)

	case EventTypingStart:
		m.handleTyping(client, env.Data, true)

	case EventTypingStop:
		m.handleTyping(client, env.Data, false)

	case EventMarkMessagesRead:
		m.handleMarkMessagesRead(client, env.Data)

	default:
		logger.Debug("Unknown event type %q from user %s", env.Type, client.UserID)
		m.sendError(client, "Unknown event type")
	}
}

// handleJoinChat adds the client to the chat room after a participant
// check. Failures are silently ignored so a non-participant learns nothing
// about the chat's existence.
func (m *Manager) handleJoinChat(client *Client, data json.RawMessage) {
	var ref ChatRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.ChatID == "" {
		m.sendError(client, "Missing chat_id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := m.chat.VerifyParticipant(ctx, ref.ChatID, client.UserID); err != nil {
		logger.Debug("join_chat ignored for user %s on chat %s: %v", client.UserID, ref.ChatID, err)
		return
	}

	m.JoinRoom(ref.ChatID, client)
	logger.Info("User %s joined chat room %s", client.UserID, ref.ChatID)
}

func (m *Manager) handleLeaveChat(client *Client, data json.RawMessage) {
	var ref ChatRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.ChatID == "" {
		m.sendError(client, "Missing chat_id")
		return
	}

	m.LeaveRoom(ref.ChatID, client)
	logger.Info("User %s left chat room %s", client.UserID, ref.ChatID)
}

// handleSendMessage delegates to the chat service, which persists the
// message and fans it out. Nothing is broadcast when persistence fails.
func (m *Manager) handleSendMessage(client *Client, data json.RawMessage) {
	var in SendMessageData
	if err := json.Unmarshal(data, &in); err != nil || in.ChatID == "" {
		m.sendError(client, "Invalid send_message payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	_, err := m.chat.SendChatMessage(ctx, client.UserID, OutboundMessage{
		ChatID:     in.ChatID,
		Content:    in.Content,
		Kind:       in.Kind,
		ProductRef: in.ProductRef,
		ImageURL:   in.ImageURL,
	})
	if err != nil {
		logger.Warn("send_message failed for user %s on chat %s: %v", client.UserID, in.ChatID, err)
		m.sendOperationError(client, err, "Failed to send message")
	}
}

// handleTyping broadcasts a typing indicator to the rest of the room.
// Fire and forget: nothing is persisted and failures are not reported.
func (m *Manager) handleTyping(client *Client, data json.RawMessage, start bool) {
	var ref ChatRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.ChatID == "" {
		return
	}

	if !m.chat.AllowTyping(client.UserID) {
		return
	}

	// Room membership was verified at join_chat time; clients not in the
	// room receive nothing.
	if !m.InRoom(ref.ChatID, client.UserID) {
		return
	}

	eventType := EventUserTyping
	if !start {
		eventType = EventUserStopTyping
	}

	payload := encodeEvent(eventType, TypingData{
		UserID: client.UserID,
		ChatID: ref.ChatID,
	})
	m.broadcastToRoom(ref.ChatID, payload, client.UserID)
}

func (m *Manager) handleMarkMessagesRead(client *Client, data json.RawMessage) {
	var ref ChatRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.ChatID == "" {
		m.sendError(client, "Missing chat_id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if _, err := m.chat.MarkMessagesRead(ctx, client.UserID, ref.ChatID); err != nil {
		logger.Warn("mark_messages_read failed for user %s on chat %s: %v", client.UserID, ref.ChatID, err)
		m.sendOperationError(client, err, "Failed to mark messages read")
	}
}

// sendError emits an error event to the originating connection only.
func (m *Manager) sendError(client *Client, message string) {
	client.Deliver(encodeEvent(EventError, ErrorData{Message: message}))
}

// sendOperationError surfaces the error code so the client can tell a
// lifecycle rejection (chat ended, not found) from a transient failure
// worth retrying. Still to the originating connection only.
func (m *Manager) sendOperationError(client *Client, err error, fallback string) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		client.Deliver(encodeEvent(EventError, ErrorData{Code: appErr.Code, Message: appErr.Message}))
		return
	}
	m.sendError(client, fallback)
}
