package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sociomart/internal/domain/entity"
	"sociomart/internal/domain/repository"
	"sociomart/pkg/errors"
	"sociomart/pkg/logger"
)

const (
	chatsCollection    = "chats"
	chatKeysCollection = "chat_keys"
	messagesCollection = "messages"
)

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

// chatKeyDoc maps a pair key to the chat that owns it. Creating it inside
// the transaction is the uniqueness guarantee: the second concurrent
// creator fails on AlreadyExists and reads the winner's chat instead.
type chatKeyDoc struct {
	ChatID string `firestore:"chatId"`
}

func (r *firestoreChatRepository) FindOrCreate(ctx context.Context, chat *entity.Chat) (*entity.Chat, bool, error) {
	keyRef := r.client.Collection(chatKeysCollection).Doc(chat.PairKey)

	var result *entity.Chat
	var created bool

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		keySnap, err := tx.Get(keyRef)
		if err == nil {
			var key chatKeyDoc
			if err := keySnap.DataTo(&key); err != nil {
				return errors.Internal("Failed to parse chat key", err)
			}
			chatSnap, err := tx.Get(r.client.Collection(chatsCollection).Doc(key.ChatID))
			if err != nil {
				return errors.Internal("Failed to load existing chat", err)
			}
			existing := &entity.Chat{}
			if err := chatSnap.DataTo(existing); err != nil {
				return errors.Internal("Failed to parse chat data", err)
			}
			result = existing
			created = false
			return nil
		}
		if status.Code(err) != codes.NotFound {
			return errors.Internal("Failed to look up chat key", err)
		}

		now := time.Now()
		chat.ID = uuid.New().String()
		chat.CreatedAt = now
		chat.UpdatedAt = now

		if err := tx.Create(keyRef, chatKeyDoc{ChatID: chat.ID}); err != nil {
			return err
		}
		if err := tx.Set(r.client.Collection(chatsCollection).Doc(chat.ID), chat); err != nil {
			return err
		}
		result = chat
		created = true
		return nil
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, false, appErr
		}
		return nil, false, errors.Internal("Failed to create chat", err)
	}

	return result, created, nil
}

func (r *firestoreChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	doc, err := r.client.Collection(chatsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Chat", nil)
		}
		return nil, errors.Internal("Failed to get chat", err)
	}

	var chat entity.Chat
	if err := doc.DataTo(&chat); err != nil {
		return nil, errors.Internal("Failed to parse chat data", err)
	}
	return &chat, nil
}

func (r *firestoreChatRepository) ListByUserID(ctx context.Context, userID string) ([]*entity.Chat, error) {
	query := r.client.Collection(chatsCollection).
		Where("participants", "array-contains", userID).
		Where("isActive", "==", true).
		OrderBy("lastMessageAt", firestore.Desc)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while fetching chats for user %s: %v", userID, err)
		return nil, errors.Internal("Failed to fetch chats", err)
	}

	var chats []*entity.Chat
	for _, doc := range docs {
		var chat entity.Chat
		if err := doc.DataTo(&chat); err != nil {
			logger.Warn("Skipping malformed chat document %s: %v", doc.Ref.ID, err)
			continue
		}
		chats = append(chats, &chat)
	}
	return chats, nil
}

func (r *firestoreChatRepository) Update(ctx context.Context, chat *entity.Chat) error {
	chat.UpdatedAt = time.Now()

	_, err := r.client.Collection(chatsCollection).Doc(chat.ID).Set(ctx, chat)
	if err != nil {
		return errors.Internal("Failed to update chat", err)
	}
	return nil
}

// AppendMessage writes the message and the chat's last-message bookkeeping
// in one transaction. The chat document write serializes concurrent
// appends per chat, so commit order is append order.
func (r *firestoreChatRepository) AppendMessage(ctx context.Context, chatID string, message *entity.Message) (*entity.Message, error) {
	chatRef := r.client.Collection(chatsCollection).Doc(chatID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		chatSnap, err := tx.Get(chatRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Chat", nil)
			}
			return errors.Internal("Failed to get chat", err)
		}

		var chat entity.Chat
		if err := chatSnap.DataTo(&chat); err != nil {
			return errors.Internal("Failed to parse chat data", err)
		}
		if !chat.CanAppend() {
			return errors.InvalidState("Chat is no longer active", nil)
		}

		message.ID = uuid.New().String()
		message.CreatedAt = time.Now()

		msgRef := chatRef.Collection(messagesCollection).Doc(message.ID)
		if err := tx.Create(msgRef, message); err != nil {
			return errors.Internal("Failed to create message", err)
		}

		chat.LastMessage = message.Content
		chat.LastMessageAt = message.CreatedAt
		chat.UpdatedAt = message.CreatedAt
		if chat.UnreadCount == nil {
			chat.UnreadCount = make(map[string]int)
		}
		if other := chat.OtherParticipant(message.SenderID); other != "" {
			chat.UnreadCount[other]++
		}

		return tx.Set(chatRef, &chat)
	})
	if err != nil {
		return nil, err
	}

	return message, nil
}

func (r *firestoreChatRepository) GetMessagesPage(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	base := r.client.Collection(chatsCollection).Doc(chatID).Collection(messagesCollection).
		OrderBy("createdAt", firestore.Desc)

	// Server-side count; the page query below is the only document read.
	aggregation, err := base.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		logger.Error("Firestore error while counting messages for chat %s: %v", chatID, err)
		return nil, 0, errors.Internal("Failed to count messages", err)
	}
	var total int64
	if v, ok := aggregation["total"].(*firestorepb.Value); ok {
		total = v.GetIntegerValue()
	}

	query := base
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages for chat %s: %v", chatID, err)
			return nil, 0, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			logger.Warn("Skipping malformed message document %s: %v", doc.Ref.ID, err)
			continue
		}
		messages = append(messages, &message)
	}

	return messages, total, nil
}

func (r *firestoreChatRepository) ListUnread(ctx context.Context, chatID, userID string) ([]*entity.Message, error) {
	query := r.client.Collection(chatsCollection).Doc(chatID).Collection(messagesCollection).
		Where("senderId", "!=", userID)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to query unread messages", err)
	}

	var unread []*entity.Message
	for _, doc := range docs {
		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			continue
		}
		if !message.IsReadBy(userID) {
			unread = append(unread, &message)
		}
	}
	return unread, nil
}

// MarkMessagesRead persists receipts with a BulkWriter and clamps the
// reader's unread counter down in a follow-up transaction.
func (r *firestoreChatRepository) MarkMessagesRead(ctx context.Context, chatID, readerID string, messages []*entity.Message) error {
	if len(messages) == 0 {
		return nil
	}

	chatRef := r.client.Collection(chatsCollection).Doc(chatID)

	bw := r.client.BulkWriter(ctx)
	for _, message := range messages {
		if _, err := bw.Set(chatRef.Collection(messagesCollection).Doc(message.ID), message); err != nil {
			bw.End()
			return errors.Internal("Failed to queue read receipt write", err)
		}
	}
	bw.End()

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		chatSnap, err := tx.Get(chatRef)
		if err != nil {
			return err
		}
		var chat entity.Chat
		if err := chatSnap.DataTo(&chat); err != nil {
			return err
		}
		if chat.UnreadCount == nil {
			return nil
		}
		remaining := chat.UnreadCount[readerID] - len(messages)
		if remaining < 0 {
			remaining = 0
		}
		chat.UnreadCount[readerID] = remaining
		return tx.Set(chatRef, &chat)
	})
	if err != nil {
		return errors.Internal("Failed to update unread counter", err)
	}
	return nil
}
