package repository

import (
	"context"

	"sociomart/internal/domain/entity"
)

type ChatRepository interface {
	// FindOrCreate returns the chat for chat.PairKey if one already exists,
	// otherwise persists chat. The created result is true when a new chat
	// was stored. Concurrent calls with the same pair key must yield a
	// single chat.
	FindOrCreate(ctx context.Context, chat *entity.Chat) (*entity.Chat, bool, error)
	GetByID(ctx context.Context, id string) (*entity.Chat, error)
	ListByUserID(ctx context.Context, userID string) ([]*entity.Chat, error)
	Update(ctx context.Context, chat *entity.Chat) error

	// AppendMessage stores message and updates the chat's last-message
	// fields and unread counters in a single transaction. The chat must be
	// active; append order is the transaction commit order.
	AppendMessage(ctx context.Context, chatID string, message *entity.Message) (*entity.Message, error)
	GetMessagesPage(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error)

	// ListUnread returns the messages in chatID that userID has not read
	// and did not send, oldest first.
	ListUnread(ctx context.Context, chatID, userID string) ([]*entity.Message, error)

	// MarkMessagesRead persists read receipts for the given messages in one
	// batched write and decrements the reader's unread counter.
	MarkMessagesRead(ctx context.Context, chatID, readerID string, messages []*entity.Message) error
}
