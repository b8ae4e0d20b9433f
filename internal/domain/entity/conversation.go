package entity

import (
	"sort"
	"strings"
	"time"
)

type Conversation struct {
	ID                   string            `json:"id" firestore:"id"`
	ParticipantIDs       []string          `json:"participant_ids" firestore:"participantIds"`
	ParticipantNames     map[string]string `json:"participant_names" firestore:"participantNames"`
	ParticipantPhotoURLs map[string]string `json:"participant_photo_urls" firestore:"participantPhotoUrls"`
	LastMessage          string            `json:"last_message" firestore:"lastMessage"`
	LastMessageTimestamp *time.Time        `json:"last_message_timestamp,omitempty" firestore:"lastMessageTimestamp,omitempty"`
	UnreadCount          map[string]int64  `json:"unread_count" firestore:"unreadCount"`
	TypingStatus         map[string]bool   `json:"typing_status,omitempty" firestore:"typingStatus,omitempty"`
	IsFavorite           bool              `json:"is_favorite" firestore:"isFavorite"`
	CreatedAt            time.Time         `json:"created_at" firestore:"createdAt"`
}

// ConversationID derives the canonical document id for a pair of users.
// The result is identical regardless of argument order, which makes
// conversation creation idempotent without a lookup index.
func ConversationID(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// SortedParticipants returns the pair in canonical (lexicographic) order.
func SortedParticipants(userA, userB string) []string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return ids
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipant resolves the receiver for a message sent by senderID.
// Returns false when the participant list is corrupted or senderID is not
// part of the pair.
func (c *Conversation) OtherParticipant(senderID string) (string, bool) {
	if len(c.ParticipantIDs) != 2 {
		return "", false
	}
	switch senderID {
	case c.ParticipantIDs[0]:
		return c.ParticipantIDs[1], true
	case c.ParticipantIDs[1]:
		return c.ParticipantIDs[0], true
	}
	return "", false
}
