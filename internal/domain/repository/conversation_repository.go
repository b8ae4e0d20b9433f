package repository

import (
	"context"

	"pairchat/internal/domain/entity"
)

// ConversationRepository is the storage contract for conversations and their
// message subcollection. Implementations must keep the denormalized fields
// (lastMessage, lastMessageTimestamp, unreadCount) consistent with the message
// set under concurrent mutation; the per-method comments state which writes
// have to be atomic together.
type ConversationRepository interface {
	// GetOrCreate returns the conversation for the canonical pair id, creating
	// it with zeroed counters and profile snapshots when absent. Concurrent
	// calls for the same pair converge to exactly one document.
	GetOrCreate(ctx context.Context, currentUserID, targetUserID string) (*entity.Conversation, error)

	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error)

	// AppendMessage writes the message and the conversation summary update
	// (lastMessage, lastMessageTimestamp, receiver unread increment) as one
	// atomic unit. Both land or neither does.
	AppendMessage(ctx context.Context, msg *entity.Message, receiverID, summary string) error

	// DeleteMessage removes the message and, when it was the most recent,
	// recomputes the summary from the runner-up (or clears it when no message
	// remains). The "top two" pre-read happens outside the transaction.
	DeleteMessage(ctx context.Context, conversationID, messageID string) error

	// ToggleReaction applies the (userID, emoji) involution on the message's
	// reactions map under a transaction.
	ToggleReaction(ctx context.Context, conversationID, messageID, userID, emoji string) error

	// EditMessage updates text and isEdited, and the conversation's
	// lastMessage when the edited message is currently the most recent,
	// atomically. lastMessageTimestamp is never touched.
	EditMessage(ctx context.Context, conversationID, messageID, newText string) error

	GetMessageByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error)
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)

	// MarkAsRead resets unreadCount[userID] to zero. Single-field write, no
	// transaction needed.
	MarkAsRead(ctx context.Context, conversationID, userID string) error

	// SetTyping merge-writes one typing flag. Best effort, last write wins.
	SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) error

	// MarkMessagesRead flips status to read for each id in one best-effort
	// batch. Partial failure surfaces as a single aggregate error.
	MarkMessagesRead(ctx context.Context, conversationID string, messageIDs []string) error

	SetFavorite(ctx context.Context, conversationID string, isFavorite bool) error

	// SubscribeMessages streams a full snapshot of the conversation's messages
	// (timestamp ascending) on every change. The returned stop function
	// releases the underlying listener; the channel closes afterwards.
	SubscribeMessages(ctx context.Context, conversationID string) (<-chan []*entity.Message, func(), error)

	// SubscribeConversations streams the user's conversation list ordered by
	// recency on every change, with the same teardown contract.
	SubscribeConversations(ctx context.Context, userID string) (<-chan []*entity.Conversation, func(), error)
}
