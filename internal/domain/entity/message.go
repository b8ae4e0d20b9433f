package entity

import "time"

const (
	MessageStatusSent = "sent"
	MessageStatusRead = "read"
)

// ImagePlaceholder is the conversation summary shown for attachment messages.
const ImagePlaceholder = "📷 Photo"

type Message struct {
	ID             string            `json:"id" firestore:"id"`
	ConversationID string            `json:"conversation_id" firestore:"conversationId"`
	SenderID       string            `json:"sender_id" firestore:"senderId"`
	Text           string            `json:"text,omitempty" firestore:"text,omitempty"`
	ImageURL       string            `json:"image_url,omitempty" firestore:"imageUrl,omitempty"`
	Timestamp      time.Time         `json:"timestamp" firestore:"timestamp,serverTimestamp"`
	Reactions      map[string]string `json:"reactions,omitempty" firestore:"reactions,omitempty"`
	IsEdited       bool              `json:"is_edited" firestore:"isEdited"`
	Status         string            `json:"status" firestore:"status"`
}

// Summary is the denormalized last-message text stored on the conversation.
func (m *Message) Summary() string {
	if m.ImageURL != "" {
		if m.Text != "" {
			return "📷 " + m.Text
		}
		return ImagePlaceholder
	}
	return m.Text
}
