package entity

import (
	"time"

	"sociomart/pkg/errors"
)

const (
	MessageKindText    = "text"
	MessageKindImage   = "image"
	MessageKindProduct = "product"
)

type ReadReceipt struct {
	UserID string    `json:"user_id" firestore:"userId"`
	ReadAt time.Time `json:"read_at" firestore:"readAt"`
}

type Message struct {
	ID         string        `json:"id" firestore:"id"`
	ChatID     string        `json:"chat_id" firestore:"chatId"`
	SenderID   string        `json:"sender_id" firestore:"senderId"`
	Content    string        `json:"content,omitempty" firestore:"content,omitempty"`
	Kind       string        `json:"message_type" firestore:"messageType"` // "text", "image", "product"
	ProductRef string        `json:"product_ref,omitempty" firestore:"productRef,omitempty"`
	ImageURL   string        `json:"image_url,omitempty" firestore:"imageUrl,omitempty"`
	ReadBy     []ReadReceipt `json:"read_by" firestore:"readBy"`
	CreatedAt  time.Time     `json:"created_at" firestore:"createdAt"`
}

// NewMessage validates the kind-specific payload up front so a message with
// a missing payload cannot be constructed.
func NewMessage(chatID, senderID, content, kind, productRef, imageURL string) (*Message, error) {
	if kind == "" {
		kind = MessageKindText
	}

	switch kind {
	case MessageKindText:
		if content == "" {
			return nil, errors.BadRequest("Message content is required", nil)
		}
	case MessageKindImage:
		if imageURL == "" {
			return nil, errors.BadRequest("image_url is required for image messages", nil)
		}
		productRef = ""
	case MessageKindProduct:
		if productRef == "" {
			return nil, errors.BadRequest("product_ref is required for product messages", nil)
		}
		imageURL = ""
	default:
		return nil, errors.BadRequest("Unknown message type", nil)
	}

	return &Message{
		ChatID:     chatID,
		SenderID:   senderID,
		Content:    content,
		Kind:       kind,
		ProductRef: productRef,
		ImageURL:   imageURL,
		ReadBy:     []ReadReceipt{},
	}, nil
}

func (m *Message) IsReadBy(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// MarkRead appends a read receipt for userID. Receipts grow monotonically;
// marking twice is a no-op and reads are never un-marked.
func (m *Message) MarkRead(userID string, at time.Time) bool {
	if m.IsReadBy(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, ReadReceipt{UserID: userID, ReadAt: at})
	return true
}
