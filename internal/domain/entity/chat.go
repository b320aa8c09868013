package entity

import (
	"sort"
	"strings"
	"time"

	"sociomart/pkg/errors"
)

const (
	ChatTypeDirect         = "direct"
	ChatTypeProductInquiry = "product_inquiry"
)

const (
	ChatStatusActive  = "active"
	ChatStatusEnded   = "ended"
	ChatStatusDeleted = "deleted"
)

type Chat struct {
	ID            string         `json:"id" firestore:"id"`
	PairKey       string         `json:"-" firestore:"pairKey"`
	Participants  []string       `json:"participants" firestore:"participants"`
	ProductID     string         `json:"product_id,omitempty" firestore:"productId,omitempty"`
	ChatType      string         `json:"chat_type" firestore:"chatType"` // "direct", "product_inquiry"
	Status        string         `json:"status" firestore:"status"`      // "active", "ended", "deleted"
	IsActive      bool           `json:"is_active" firestore:"isActive"`
	LastMessage   string         `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt time.Time      `json:"last_message_at" firestore:"lastMessageAt"`
	UnreadCount   map[string]int `json:"unread_count" firestore:"unreadCount"` // Map of userID to unread count
	EndedBy       string         `json:"ended_by,omitempty" firestore:"endedBy,omitempty"`
	EndedAt       time.Time      `json:"ended_at,omitempty" firestore:"endedAt,omitempty"`
	ReportedBy    string         `json:"reported_by,omitempty" firestore:"reportedBy,omitempty"`
	ReportReason  string         `json:"report_reason,omitempty" firestore:"reportReason,omitempty"`
	ReportedAt    time.Time      `json:"reported_at,omitempty" firestore:"reportedAt,omitempty"`
	CreatedAt     time.Time      `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time      `json:"updated_at" firestore:"updatedAt"`
}

// NewChat builds an active chat between two users. ChatType is derived from
// the presence of a product context.
func NewChat(userA, userB, productID string) *Chat {
	chatType := ChatTypeDirect
	if productID != "" {
		chatType = ChatTypeProductInquiry
	}

	return &Chat{
		PairKey:       ChatPairKey(userA, userB, productID),
		Participants:  []string{userA, userB},
		ProductID:     productID,
		ChatType:      chatType,
		Status:        ChatStatusActive,
		IsActive:      true,
		UnreadCount:   make(map[string]int),
		LastMessageAt: time.Now(),
	}
}

// ChatPairKey is the dedup key for a chat: the unordered participant pair
// plus the optional product context.
func ChatPairKey(userA, userB, productID string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	if productID == "" {
		return strings.Join(pair, "_")
	}
	return strings.Join(pair, "_") + "_" + productID
}

func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID. Chats are
// strictly two-party, so there is exactly one.
func (c *Chat) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// End transitions active -> ended. Ending is unilateral: either participant
// may do it, but only once.
func (c *Chat) End(userID string) error {
	if !c.HasParticipant(userID) {
		return errors.Forbidden("User is not a participant in this chat", nil)
	}
	if c.Status == ChatStatusEnded {
		return errors.InvalidState("Chat is already ended", nil)
	}
	if c.Status != ChatStatusActive {
		return errors.InvalidState("Chat cannot be ended in its current state", nil)
	}

	c.Status = ChatStatusEnded
	c.EndedBy = userID
	c.EndedAt = time.Now()
	return nil
}

// Report flags an ended chat. Only the participant who did not end the chat
// may report it, and only once; status stays ended.
func (c *Chat) Report(userID, reason string) error {
	if !c.HasParticipant(userID) {
		return errors.Forbidden("User is not a participant in this chat", nil)
	}
	if c.Status != ChatStatusEnded {
		return errors.InvalidState("Chat must be ended before it can be reported", nil)
	}
	if userID == c.EndedBy {
		return errors.Forbidden("The participant who ended the chat cannot report it", nil)
	}
	if c.ReportedBy != "" {
		return errors.InvalidState("Chat has already been reported", nil)
	}

	c.ReportedBy = userID
	c.ReportReason = reason
	c.ReportedAt = time.Now()
	return nil
}

// MarkDeleted transitions ended -> deleted. The chat document is kept;
// deleted is a terminal status, not row removal.
func (c *Chat) MarkDeleted(userID string) error {
	if !c.HasParticipant(userID) {
		return errors.Forbidden("User is not a participant in this chat", nil)
	}
	if c.Status != ChatStatusEnded {
		return errors.InvalidState("Chat must be ended before deletion", nil)
	}

	c.Status = ChatStatusDeleted
	c.IsActive = false
	return nil
}

// CanAppend reports whether new messages are accepted.
func (c *Chat) CanAppend() bool {
	return c.Status == ChatStatusActive
}
