package usecase

import (
	"context"
	"time"

	"sociomart/internal/domain/entity"
	"sociomart/internal/domain/repository"
	"sociomart/internal/infrastructure/ratelimit"
	ws "sociomart/internal/infrastructure/websocket"
	"sociomart/pkg/errors"
	"sociomart/pkg/logger"
)

// DeliveryChannel is the fan-out port. The websocket manager implements
// it; tests use a recorder. Every method is best effort and called only
// after the corresponding store write committed.
type DeliveryChannel interface {
	BroadcastNewMessage(chat *entity.Chat, message *entity.Message)
	BroadcastMessagesRead(chatID, readerID string)
	NotifyChatEnded(chat *entity.Chat)
}

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	channel     DeliveryChannel
	rateLimiter *ratelimit.RateLimiter
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	channel DeliveryChannel,
) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &ChatUseCase{
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		productRepo: productRepo,
		channel:     channel,
		rateLimiter: rateLimiter,
	}
}

type CreateChatInput struct {
	ParticipantID string
	ProductID     string
}

type SendMessageInput struct {
	ChatID     string
	Content    string
	Kind       string // "text", "image", "product"
	ProductRef string
	ImageURL   string
}

type ChatResponse struct {
	*entity.Chat
	Product            *entity.Product `json:"product,omitempty"`
	OtherUser          *entity.User    `json:"other_user,omitempty"`
	Unread             int             `json:"unreadCount"`
	LastMessageContent string          `json:"lastMessageContent"`
	LastMessageTime    time.Time       `json:"lastMessageTime"`
}

type MessageResponse struct {
	*entity.Message
	Sender *entity.User `json:"sender,omitempty"`
}

type MessagesPage struct {
	Messages []*MessageResponse `json:"messages"`
	Total    int64              `json:"total"`
	HasMore  bool               `json:"hasMore"`
}

// FindOrCreateChat returns the existing chat for the unordered
// (caller, participant) pair plus product context, or creates one.
// Concurrent calls with the same key resolve to a single chat.
func (uc *ChatUseCase) FindOrCreateChat(ctx context.Context, userID string, input CreateChatInput) (*ChatResponse, error) {
	allowed, waitTime := uc.rateLimiter.Allow(userID, "create_chat")
	if !allowed {
		logger.Warn("FindOrCreateChat rate limited: user %s must wait %v", userID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before creating another chat", waitTime)
	}

	if userID == input.ParticipantID {
		return nil, errors.BadRequest("You cannot create a chat with yourself", nil)
	}

	_, err := uc.userRepo.GetByID(ctx, input.ParticipantID)
	if err != nil {
		logger.Warn("FindOrCreateChat: recipient %s not found: %v", input.ParticipantID, err)
		return nil, errors.NotFound("Recipient", err)
	}

	var product *entity.Product
	if input.ProductID != "" {
		product, err = uc.productRepo.GetByID(ctx, input.ProductID)
		if err != nil {
			logger.Warn("FindOrCreateChat: product %s not found: %v", input.ProductID, err)
			return nil, errors.NotFound("Product", err)
		}
	}

	chat, created, err := uc.chatRepo.FindOrCreate(ctx, entity.NewChat(userID, input.ParticipantID, input.ProductID))
	if err != nil {
		logger.Error("FindOrCreateChat: repository error: %v", err)
		return nil, err
	}
	if created {
		logger.Info("Created chat %s between %s and %s", chat.ID, userID, input.ParticipantID)
	}

	return uc.annotateChat(ctx, chat, userID, product), nil
}

// ListChats returns all non-deleted chats the user participates in,
// newest activity first, annotated with the caller's unread count.
func (uc *ChatUseCase) ListChats(ctx context.Context, userID string) ([]*ChatResponse, error) {
	chats, err := uc.chatRepo.ListByUserID(ctx, userID)
	if err != nil {
		logger.Error("ListChats: failed to list chats for user %s: %v", userID, err)
		return nil, err
	}

	responses := make([]*ChatResponse, 0, len(chats))
	for _, chat := range chats {
		responses = append(responses, uc.annotateChat(ctx, chat, userID, nil))
	}
	return responses, nil
}

func (uc *ChatUseCase) annotateChat(ctx context.Context, chat *entity.Chat, userID string, product *entity.Product) *ChatResponse {
	resp := &ChatResponse{
		Chat:               chat,
		Product:            product,
		Unread:             chat.UnreadCount[userID],
		LastMessageContent: chat.LastMessage,
		LastMessageTime:    chat.LastMessageAt,
	}

	if resp.Product == nil && chat.ProductID != "" {
		if p, err := uc.productRepo.GetByID(ctx, chat.ProductID); err == nil {
			resp.Product = p
		} else {
			logger.Warn("annotateChat: product %s not found for chat %s: %v", chat.ProductID, chat.ID, err)
		}
	}

	if otherID := chat.OtherParticipant(userID); otherID != "" {
		if other, err := uc.userRepo.GetByID(ctx, otherID); err == nil {
			resp.OtherUser = other
		} else {
			logger.Warn("annotateChat: user %s not found for chat %s: %v", otherID, chat.ID, err)
		}
	}

	return resp
}

// getParticipantChat loads a chat and hides its existence from
// non-participants: an absent chat and a foreign chat both come back as
// NotFound.
func (uc *ChatUseCase) getParticipantChat(ctx context.Context, chatID, userID string) (*entity.Chat, error) {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, errors.NotFound("Chat", nil)
	}
	return chat, nil
}

// GetMessages returns one page of history, newest page first but each page
// in chronological order. Side effect: every returned message the
// requester had not read is marked read in one batched write, and the
// other participant is told.
func (uc *ChatUseCase) GetMessages(ctx context.Context, userID, chatID string, page, pageSize int) (*MessagesPage, error) {
	chat, err := uc.getParticipantChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	messages, total, err := uc.chatRepo.GetMessagesPage(ctx, chatID, pageSize, offset)
	if err != nil {
		logger.Error("GetMessages: failed to fetch messages for chat %s: %v", chatID, err)
		return nil, err
	}

	// Repository returns newest first; flip to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	uc.markReturnedRead(ctx, chat, userID, messages)

	responses := make([]*MessageResponse, 0, len(messages))
	senders := make(map[string]*entity.User)
	for _, message := range messages {
		resp := &MessageResponse{Message: message}
		if sender, ok := senders[message.SenderID]; ok {
			resp.Sender = sender
		} else if sender, err := uc.userRepo.GetByID(ctx, message.SenderID); err == nil {
			senders[message.SenderID] = sender
			resp.Sender = sender
		}
		responses = append(responses, resp)
	}

	return &MessagesPage{
		Messages: responses,
		Total:    total,
		HasMore:  int64(offset+len(messages)) < total,
	}, nil
}

// markReturnedRead is a best-effort side channel of GetMessages: a failed
// receipt write must not fail the history fetch.
func (uc *ChatUseCase) markReturnedRead(ctx context.Context, chat *entity.Chat, userID string, messages []*entity.Message) {
	now := time.Now()
	var newlyRead []*entity.Message
	for _, message := range messages {
		if message.SenderID == userID {
			continue
		}
		if message.MarkRead(userID, now) {
			newlyRead = append(newlyRead, message)
		}
	}
	if len(newlyRead) == 0 {
		return
	}

	if err := uc.chatRepo.MarkMessagesRead(ctx, chat.ID, userID, newlyRead); err != nil {
		logger.Warn("GetMessages: failed to persist read receipts for chat %s: %v", chat.ID, err)
		return
	}
	uc.channel.BroadcastMessagesRead(chat.ID, userID)
}

// SendMessage validates, persists and fans out one message. No broadcast
// happens unless the store write committed.
func (uc *ChatUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*MessageResponse, error) {
	allowed, waitTime := uc.rateLimiter.Allow(senderID, "send_message")
	if !allowed {
		logger.Warn("SendMessage rate limited: user %s must wait %v", senderID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", waitTime)
	}

	chat, err := uc.getParticipantChat(ctx, input.ChatID, senderID)
	if err != nil {
		return nil, err
	}
	if !chat.CanAppend() {
		return nil, errors.InvalidState("Chat is no longer active", nil)
	}

	message, err := entity.NewMessage(input.ChatID, senderID, input.Content, input.Kind, input.ProductRef, input.ImageURL)
	if err != nil {
		return nil, err
	}

	if message.Kind == entity.MessageKindProduct {
		if _, err := uc.productRepo.GetByID(ctx, message.ProductRef); err != nil {
			logger.Warn("SendMessage: product ref %s not found: %v", message.ProductRef, err)
			return nil, errors.NotFound("Product", err)
		}
	}

	stored, err := uc.chatRepo.AppendMessage(ctx, input.ChatID, message)
	if err != nil {
		logger.Error("SendMessage: failed to append message to chat %s: %v", input.ChatID, err)
		return nil, err
	}

	uc.channel.BroadcastNewMessage(chat, stored)

	resp := &MessageResponse{Message: stored}
	if sender, err := uc.userRepo.GetByID(ctx, senderID); err == nil {
		resp.Sender = sender
	}
	return resp, nil
}

// MarkMessagesRead marks every unread message in the chat as read by
// readerID and notifies the room. Returns how many were newly marked.
func (uc *ChatUseCase) MarkMessagesRead(ctx context.Context, readerID, chatID string) (int, error) {
	chat, err := uc.getParticipantChat(ctx, chatID, readerID)
	if err != nil {
		return 0, err
	}

	unread, err := uc.chatRepo.ListUnread(ctx, chatID, readerID)
	if err != nil {
		logger.Error("MarkMessagesRead: failed to list unread for chat %s: %v", chatID, err)
		return 0, err
	}
	if len(unread) == 0 {
		return 0, nil
	}

	now := time.Now()
	for _, message := range unread {
		message.MarkRead(readerID, now)
	}

	if err := uc.chatRepo.MarkMessagesRead(ctx, chatID, readerID, unread); err != nil {
		logger.Error("MarkMessagesRead: failed to persist receipts for chat %s: %v", chatID, err)
		return 0, err
	}

	uc.channel.BroadcastMessagesRead(chat.ID, readerID)
	return len(unread), nil
}

// EndChat transitions the chat to ended. Either participant may end;
// the other one is notified best-effort.
func (uc *ChatUseCase) EndChat(ctx context.Context, userID, chatID string) (*entity.Chat, error) {
	chat, err := uc.getParticipantChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	if err := chat.End(userID); err != nil {
		return nil, err
	}
	if err := uc.chatRepo.Update(ctx, chat); err != nil {
		logger.Error("EndChat: failed to persist chat %s: %v", chatID, err)
		return nil, err
	}

	uc.channel.NotifyChatEnded(chat)
	logger.Info("Chat %s ended by %s", chatID, userID)
	return chat, nil
}

// ReportChat flags an ended chat. Only the participant who did not end it
// may report, and only once.
func (uc *ChatUseCase) ReportChat(ctx context.Context, userID, chatID, reason string) (*entity.Chat, error) {
	if reason == "" {
		return nil, errors.BadRequest("Report reason is required", nil)
	}

	chat, err := uc.getParticipantChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	if err := chat.Report(userID, reason); err != nil {
		return nil, err
	}
	if err := uc.chatRepo.Update(ctx, chat); err != nil {
		logger.Error("ReportChat: failed to persist chat %s: %v", chatID, err)
		return nil, err
	}

	logger.Info("Chat %s reported by %s", chatID, userID)
	return chat, nil
}

// DeleteChat marks an ended chat deleted. The document is retained.
func (uc *ChatUseCase) DeleteChat(ctx context.Context, userID, chatID string) error {
	chat, err := uc.getParticipantChat(ctx, chatID, userID)
	if err != nil {
		return err
	}

	if err := chat.MarkDeleted(userID); err != nil {
		return err
	}
	if err := uc.chatRepo.Update(ctx, chat); err != nil {
		logger.Error("DeleteChat: failed to persist chat %s: %v", chatID, err)
		return err
	}

	logger.Info("Chat %s deleted by %s", chatID, userID)
	return nil
}

// VerifyParticipant implements the delivery channel's join_chat check.
func (uc *ChatUseCase) VerifyParticipant(ctx context.Context, chatID, userID string) error {
	_, err := uc.getParticipantChat(ctx, chatID, userID)
	return err
}

// SendChatMessage adapts an inbound send_message event to SendMessage.
func (uc *ChatUseCase) SendChatMessage(ctx context.Context, senderID string, msg ws.OutboundMessage) (*entity.Message, error) {
	resp, err := uc.SendMessage(ctx, senderID, SendMessageInput{
		ChatID:     msg.ChatID,
		Content:    msg.Content,
		Kind:       msg.Kind,
		ProductRef: msg.ProductRef,
		ImageURL:   msg.ImageURL,
	})
	if err != nil {
		return nil, err
	}
	return resp.Message, nil
}

// AllowTyping rate-limits typing indicators per user.
func (uc *ChatUseCase) AllowTyping(userID string) bool {
	allowed, _ := uc.rateLimiter.Allow(userID, "typing")
	return allowed
}
