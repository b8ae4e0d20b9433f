package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"
	"time"

	"pairchat/internal/domain/entity"
	"pairchat/internal/domain/repository"
	ws "pairchat/internal/infrastructure/websocket"
	"pairchat/pkg/errors"
)

type ChatUseCase struct {
	convRepo  repository.ConversationRepository
	userRepo  repository.UserRepository
	uploader  Uploader
	wsManager *ws.Manager
}

func NewChatUseCase(
	convRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	uploader Uploader,
	wsManager *ws.Manager,
) *ChatUseCase {
	return &ChatUseCase{
		convRepo:  convRepo,
		userRepo:  userRepo,
		uploader:  uploader,
		wsManager: wsManager,
	}
}

type SendMessageInput struct {
	ConversationID string
	Text           string
}

type SendImageInput struct {
	ConversationID string
	Caption        string
	ContentType    string
	File           io.Reader
}

type ConversationResponse struct {
	*entity.Conversation
	OtherUser *entity.User `json:"other_user,omitempty"`
}

func (uc *ChatUseCase) GetOrCreateConversation(ctx context.Context, currentUserID, targetUserID string) (*ConversationResponse, error) {
	if strings.TrimSpace(currentUserID) == "" || strings.TrimSpace(targetUserID) == "" {
		return nil, errors.Validation("Participant ids must not be blank", nil)
	}
	if currentUserID == targetUserID {
		log.Printf("GetOrCreateConversation Error: User %s attempted a self-conversation", currentUserID)
		return nil, errors.Validation("You cannot start a conversation with yourself", nil)
	}

	conv, err := uc.convRepo.GetOrCreate(ctx, currentUserID, targetUserID)
	if err != nil {
		log.Printf("GetOrCreateConversation Error: Failed for pair (%s, %s): %v", currentUserID, targetUserID, err)
		return nil, err
	}

	resp := &ConversationResponse{Conversation: conv}
	if otherUser, err := uc.userRepo.GetByID(ctx, targetUserID); err == nil {
		resp.OtherUser = otherUser
	}
	return resp, nil
}

func (uc *ChatUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*entity.Message, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, errors.Validation("Message must carry text or an image", nil)
	}

	msg := &entity.Message{
		ConversationID: input.ConversationID,
		SenderID:       senderID,
		Text:           input.Text,
	}
	return uc.appendMessage(ctx, msg)
}

// SendImageMessage durably stores the attachment first; only once a URL
// exists does the append proceed. An upload failure mutates nothing; an
// append failure leaves at most an orphaned blob, which is cleaned up on a
// best-effort basis.
func (uc *ChatUseCase) SendImageMessage(ctx context.Context, senderID string, input SendImageInput) (*entity.Message, error) {
	if input.File == nil {
		return nil, errors.Validation("Message must carry text or an image", nil)
	}

	imageURL, err := uc.uploader.UploadFile(ctx, input.File, input.ContentType, "chat-images/"+input.ConversationID)
	if err != nil {
		log.Printf("SendImageMessage Error: Upload failed for conversation %s: %v", input.ConversationID, err)
		return nil, errors.Unavailable("Failed to store attachment", err)
	}

	msg := &entity.Message{
		ConversationID: input.ConversationID,
		SenderID:       senderID,
		Text:           input.Caption,
		ImageURL:       imageURL,
	}

	created, err := uc.appendMessage(ctx, msg)
	if err != nil {
		if cleanupErr := uc.uploader.DeleteFile(ctx, imageURL); cleanupErr != nil {
			log.Printf("SendImageMessage Warning: Orphaned blob %s not cleaned up: %v", imageURL, cleanupErr)
		}
		return nil, err
	}
	return created, nil
}

func (uc *ChatUseCase) appendMessage(ctx context.Context, msg *entity.Message) (*entity.Message, error) {
	conv, err := uc.conversationForParticipant(ctx, msg.ConversationID, msg.SenderID)
	if err != nil {
		return nil, err
	}

	receiverID, ok := conv.OtherParticipant(msg.SenderID)
	if !ok {
		log.Printf("SendMessage Error: Corrupted participant list on conversation %s", conv.ID)
		return nil, errors.Internal("Conversation participant list is invalid", nil)
	}

	if err := uc.convRepo.AppendMessage(ctx, msg, receiverID, msg.Summary()); err != nil {
		log.Printf("SendMessage Error: Failed to append message to conversation %s: %v", conv.ID, err)
		return nil, err
	}

	uc.notifyConversation(conv.ID, msg.SenderID, map[string]interface{}{
		"type":            "new_message",
		"conversation_id": conv.ID,
		"message":         msg,
	})
	uc.wsManager.SendToUser(receiverID, mustJSON(map[string]interface{}{
		"type":            "conversation_update",
		"conversation_id": conv.ID,
		"last_message":    msg.Summary(),
		"sender_id":       msg.SenderID,
	}))

	return msg, nil
}

func (uc *ChatUseCase) DeleteMessage(ctx context.Context, userID, conversationID, messageID string) error {
	if _, err := uc.conversationForParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	msg, err := uc.convRepo.GetMessageByID(ctx, conversationID, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return errors.Forbidden("Only the sender can delete a message", nil)
	}

	if err := uc.convRepo.DeleteMessage(ctx, conversationID, messageID); err != nil {
		log.Printf("DeleteMessage Error: Failed to delete message %s in conversation %s: %v", messageID, conversationID, err)
		return err
	}

	uc.notifyConversation(conversationID, userID, map[string]interface{}{
		"type":            "message_deleted",
		"conversation_id": conversationID,
		"message_id":      messageID,
	})
	return nil
}

func (uc *ChatUseCase) EditMessage(ctx context.Context, userID, conversationID, messageID, newText string) error {
	if strings.TrimSpace(newText) == "" {
		return errors.Validation("Edited text must not be blank", nil)
	}
	if _, err := uc.conversationForParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	msg, err := uc.convRepo.GetMessageByID(ctx, conversationID, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return errors.Forbidden("Only the sender can edit a message", nil)
	}

	if err := uc.convRepo.EditMessage(ctx, conversationID, messageID, newText); err != nil {
		log.Printf("EditMessage Error: Failed to edit message %s in conversation %s: %v", messageID, conversationID, err)
		return err
	}

	uc.notifyConversation(conversationID, userID, map[string]interface{}{
		"type":            "message_edited",
		"conversation_id": conversationID,
		"message_id":      messageID,
		"text":            newText,
	})
	return nil
}

func (uc *ChatUseCase) ToggleReaction(ctx context.Context, userID, conversationID, messageID, emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return errors.Validation("Reaction emoji must not be blank", nil)
	}
	if _, err := uc.conversationForParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	if err := uc.convRepo.ToggleReaction(ctx, conversationID, messageID, userID, emoji); err != nil {
		log.Printf("ToggleReaction Error: Failed on message %s in conversation %s: %v", messageID, conversationID, err)
		return err
	}

	uc.notifyConversation(conversationID, "", map[string]interface{}{
		"type":            "reaction_update",
		"conversation_id": conversationID,
		"message_id":      messageID,
		"user_id":         userID,
		"emoji":           emoji,
	})
	return nil
}

func (uc *ChatUseCase) MarkAsRead(ctx context.Context, userID, conversationID string) error {
	if _, err := uc.conversationForParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	if err := uc.convRepo.MarkAsRead(ctx, conversationID, userID); err != nil {
		log.Printf("MarkAsRead Error: Failed for user %s on conversation %s: %v", userID, conversationID, err)
		return err
	}
	return nil
}

func (uc *ChatUseCase) SetTyping(ctx context.Context, userID, conversationID string, isTyping bool) {
	conv, err := uc.conversationForParticipant(ctx, conversationID, userID)
	if err != nil {
		return
	}

	// Best effort: a lost typing flag is harmless.
	if err := uc.convRepo.SetTyping(ctx, conversationID, userID, isTyping); err != nil {
		log.Printf("SetTyping Warning: Failed for user %s on conversation %s: %v", userID, conversationID, err)
	}

	uc.notifyConversation(conv.ID, userID, map[string]interface{}{
		"type":            "typing_indicator",
		"conversation_id": conv.ID,
		"user_id":         userID,
		"is_typing":       isTyping,
	})
}

func (uc *ChatUseCase) MarkMessagesRead(ctx context.Context, userID, conversationID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return errors.Validation("No message ids given", nil)
	}
	if _, err := uc.conversationForParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	if err := uc.convRepo.MarkMessagesRead(ctx, conversationID, messageIDs); err != nil {
		log.Printf("MarkMessagesRead Error: Batch failed for conversation %s: %v", conversationID, err)
		return err
	}

	uc.notifyConversation(conversationID, userID, map[string]interface{}{
		"type":            "messages_read",
		"conversation_id": conversationID,
		"message_ids":     messageIDs,
		"reader_id":       userID,
	})
	return nil
}

func (uc *ChatUseCase) SetFavorite(ctx context.Context, userID, conversationID string, isFavorite bool) error {
	if _, err := uc.conversationForParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	return uc.convRepo.SetFavorite(ctx, conversationID, isFavorite)
}

func (uc *ChatUseCase) GetConversation(ctx context.Context, userID, conversationID string) (*ConversationResponse, error) {
	conv, err := uc.conversationForParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	resp := &ConversationResponse{Conversation: conv}
	if otherID, ok := conv.OtherParticipant(userID); ok {
		if otherUser, err := uc.userRepo.GetByID(ctx, otherID); err == nil {
			resp.OtherUser = otherUser
		}
	}
	return resp, nil
}

func (uc *ChatUseCase) ListConversations(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error) {
	return uc.convRepo.ListByUserID(ctx, userID, limit, offset)
}

func (uc *ChatUseCase) ListMessages(ctx context.Context, userID, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	if _, err := uc.conversationForParticipant(ctx, conversationID, userID); err != nil {
		return nil, 0, err
	}
	return uc.convRepo.ListMessages(ctx, conversationID, limit, offset)
}

// StreamMessages registers a snapshot listener for the conversation. The
// returned stop function must be called to release the listener.
func (uc *ChatUseCase) StreamMessages(ctx context.Context, userID, conversationID string) (<-chan []*entity.Message, func(), error) {
	if _, err := uc.conversationForParticipant(ctx, conversationID, userID); err != nil {
		return nil, nil, err
	}
	return uc.convRepo.SubscribeMessages(ctx, conversationID)
}

func (uc *ChatUseCase) StreamConversations(ctx context.Context, userID string) (<-chan []*entity.Conversation, func(), error) {
	return uc.convRepo.SubscribeConversations(ctx, userID)
}

func (uc *ChatUseCase) conversationForParticipant(ctx context.Context, conversationID, userID string) (*entity.Conversation, error) {
	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, errors.Forbidden("User is not a participant in this conversation", nil)
	}
	return conv, nil
}

func (uc *ChatUseCase) notifyConversation(conversationID, excludeUserID string, payload map[string]interface{}) {
	payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	uc.wsManager.SendToConversation(conversationID, mustJSON(payload), excludeUserID)
}

func mustJSON(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}
