package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pairchat/internal/domain/entity"
	"pairchat/internal/domain/repository"
	"pairchat/pkg/errors"
	"pairchat/pkg/logger"
)

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) conversations() *firestore.CollectionRef {
	return r.client.Collection("conversations")
}

func (r *firestoreConversationRepository) messages(conversationID string) *firestore.CollectionRef {
	return r.conversations().Doc(conversationID).Collection("messages")
}

// mapStoreError classifies Firestore failures into the application taxonomy.
// Aborted surfaces here only after RunTransaction has exhausted its retries.
func mapStoreError(resource string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return errors.NotFound(resource, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return errors.Unavailable(fmt.Sprintf("Store temporarily unavailable for %s", resource), err)
	}
	return errors.Internal(fmt.Sprintf("Store operation failed for %s", resource), err)
}

func (r *firestoreConversationRepository) GetOrCreate(ctx context.Context, currentUserID, targetUserID string) (*entity.Conversation, error) {
	convID := entity.ConversationID(currentUserID, targetUserID)
	participants := entity.SortedParticipants(currentUserID, targetUserID)
	convRef := r.conversations().Doc(convID)

	var conv entity.Conversation

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(convRef)
		if err == nil {
			// Already exists: pure idempotent read, no writes.
			return snap.DataTo(&conv)
		}
		if status.Code(err) != codes.NotFound {
			return err
		}

		// Snapshot both profiles inside the same transaction. A missing
		// profile is tolerated with empty display fields.
		names := make(map[string]string, 2)
		photos := make(map[string]string, 2)
		unread := make(map[string]int64, 2)
		for _, id := range participants {
			names[id] = ""
			photos[id] = ""
			unread[id] = 0

			usnap, err := tx.Get(r.client.Collection("users").Doc(id))
			if err != nil {
				if status.Code(err) == codes.NotFound {
					continue
				}
				return err
			}
			var user entity.User
			if err := usnap.DataTo(&user); err != nil {
				return err
			}
			names[id] = user.Username
			photos[id] = user.PhotoURL
		}

		conv = entity.Conversation{
			ID:                   convID,
			ParticipantIDs:       participants,
			ParticipantNames:     names,
			ParticipantPhotoURLs: photos,
			LastMessage:          "",
			UnreadCount:          unread,
			CreatedAt:            time.Now(),
		}
		return tx.Set(convRef, &conv)
	})
	if err != nil {
		return nil, mapStoreError("Conversation", err)
	}

	return &conv, nil
}

func (r *firestoreConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.conversations().Doc(id).Get(ctx)
	if err != nil {
		return nil, mapStoreError("Conversation", err)
	}

	var conv entity.Conversation
	if err := doc.DataTo(&conv); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	return &conv, nil
}

func (r *firestoreConversationRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error) {
	// No OrderBy to avoid a composite index; recency sort happens in memory.
	iter := r.conversations().Where("participantIds", "array-contains", userID).Documents(ctx)
	defer iter.Stop()

	var convs []*entity.Conversation
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while fetching conversations for user %s: %v", userID, err)
			return nil, 0, mapStoreError("Conversations", err)
		}

		var conv entity.Conversation
		if err := doc.DataTo(&conv); err != nil {
			logger.Warn("Skipping malformed conversation %s: %v", doc.Ref.ID, err)
			continue
		}
		convs = append(convs, &conv)
	}
	sortConversationsByRecency(convs)

	total := int64(len(convs))

	start := offset
	if start > len(convs) {
		start = len(convs)
	}
	end := len(convs)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	return convs[start:end], total, nil
}

func sortConversationsByRecency(convs []*entity.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		ti, tj := convs[i].CreatedAt, convs[j].CreatedAt
		if convs[i].LastMessageTimestamp != nil {
			ti = *convs[i].LastMessageTimestamp
		}
		if convs[j].LastMessageTimestamp != nil {
			tj = *convs[j].LastMessageTimestamp
		}
		return ti.After(tj)
	})
}

func (r *firestoreConversationRepository) AppendMessage(ctx context.Context, msg *entity.Message, receiverID, summary string) error {
	msgRef := r.messages(msg.ConversationID).NewDoc()
	msg.ID = msgRef.ID
	msg.Status = entity.MessageStatusSent

	// One atomic write batch: message create plus summary/unread update.
	// The zero Timestamp makes the serverTimestamp tag assign server time.
	batch := r.client.Batch()
	batch.Set(msgRef, msg)
	batch.Update(r.conversations().Doc(msg.ConversationID), []firestore.Update{
		{Path: "lastMessage", Value: summary},
		{Path: "lastMessageTimestamp", Value: firestore.ServerTimestamp},
		{Path: "unreadCount." + receiverID, Value: firestore.Increment(1)},
	})

	wrs, err := batch.Commit(ctx)
	if err != nil {
		return mapStoreError("Message", err)
	}
	// The serverTimestamp field resolves to the commit time; reflect it on
	// the returned value so callers never serialize a zero timestamp.
	msg.Timestamp = wrs[0].UpdateTime
	return nil
}

func (r *firestoreConversationRepository) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	// Bounded pre-read of the two most recent messages, deliberately outside
	// the transaction. A send racing in between is tolerated: the delete
	// itself is unaffected and the next append rewrites the summary.
	top, err := r.topMessages(ctx, conversationID, 2)
	if err != nil {
		return err
	}

	msgRef := r.messages(conversationID).Doc(messageID)
	convRef := r.conversations().Doc(conversationID)

	err = r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(msgRef); err != nil {
			return err
		}
		if err := tx.Delete(msgRef); err != nil {
			return err
		}

		if len(top) == 0 || top[0].ID != messageID {
			// Not the most recent message; summary stays untouched.
			return nil
		}

		updates := []firestore.Update{
			{Path: "lastMessage", Value: ""},
			{Path: "lastMessageTimestamp", Value: firestore.Delete},
		}
		if len(top) > 1 {
			updates = []firestore.Update{
				{Path: "lastMessage", Value: top[1].Summary()},
				{Path: "lastMessageTimestamp", Value: top[1].Timestamp},
			}
		}
		return tx.Update(convRef, updates)
	})
	if err != nil {
		return mapStoreError("Message", err)
	}
	return nil
}

func (r *firestoreConversationRepository) topMessages(ctx context.Context, conversationID string, n int) ([]*entity.Message, error) {
	docs, err := r.messages(conversationID).
		OrderBy("timestamp", firestore.Desc).
		Limit(n).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, mapStoreError("Messages", err)
	}

	var msgs []*entity.Message
	for _, doc := range docs {
		var msg entity.Message
		if err := doc.DataTo(&msg); err != nil {
			return nil, errors.Internal("Failed to parse message data", err)
		}
		msgs = append(msgs, &msg)
	}
	return msgs, nil
}

func (r *firestoreConversationRepository) ToggleReaction(ctx context.Context, conversationID, messageID, userID, emoji string) error {
	msgRef := r.messages(conversationID).Doc(messageID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(msgRef)
		if err != nil {
			return err
		}

		var msg entity.Message
		if err := snap.DataTo(&msg); err != nil {
			return err
		}

		reactions := msg.Reactions
		if reactions == nil {
			reactions = make(map[string]string)
		}
		if reactions[userID] == emoji {
			delete(reactions, userID)
		} else {
			reactions[userID] = emoji
		}

		return tx.Update(msgRef, []firestore.Update{
			{Path: "reactions", Value: reactions},
		})
	})
	if err != nil {
		return mapStoreError("Message", err)
	}
	return nil
}

func (r *firestoreConversationRepository) EditMessage(ctx context.Context, conversationID, messageID, newText string) error {
	msgRef := r.messages(conversationID).Doc(messageID)

	snap, err := msgRef.Get(ctx)
	if err != nil {
		return mapStoreError("Message", err)
	}
	var msg entity.Message
	if err := snap.DataTo(&msg); err != nil {
		return errors.Internal("Failed to parse message data", err)
	}

	// Prior read, not inside the atomic unit: is the edited message currently
	// the most recent one?
	top, err := r.topMessages(ctx, conversationID, 1)
	if err != nil {
		return err
	}

	batch := r.client.Batch()
	batch.Update(msgRef, []firestore.Update{
		{Path: "text", Value: newText},
		{Path: "isEdited", Value: true},
	})
	if len(top) > 0 && top[0].ID == messageID {
		msg.Text = newText
		batch.Update(r.conversations().Doc(conversationID), []firestore.Update{
			{Path: "lastMessage", Value: msg.Summary()},
		})
	}

	if _, err := batch.Commit(ctx); err != nil {
		return mapStoreError("Message", err)
	}
	return nil
}

func (r *firestoreConversationRepository) GetMessageByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	doc, err := r.messages(conversationID).Doc(messageID).Get(ctx)
	if err != nil {
		return nil, mapStoreError("Message", err)
	}

	var msg entity.Message
	if err := doc.DataTo(&msg); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &msg, nil
}

func (r *firestoreConversationRepository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	allDocs, err := r.messages(conversationID).
		OrderBy("timestamp", firestore.Desc).
		Documents(ctx).
		GetAll()
	if err != nil {
		logger.Error("Firestore error while fetching messages for conversation %s: %v", conversationID, err)
		return nil, 0, mapStoreError("Messages", err)
	}

	total := int64(len(allDocs))

	start := offset
	if start > len(allDocs) {
		start = len(allDocs)
	}
	end := len(allDocs)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	var msgs []*entity.Message
	for _, doc := range allDocs[start:end] {
		var msg entity.Message
		if err := doc.DataTo(&msg); err != nil {
			logger.Warn("Skipping malformed message %s in conversation %s: %v", doc.Ref.ID, conversationID, err)
			continue
		}
		msgs = append(msgs, &msg)
	}

	return msgs, total, nil
}

func (r *firestoreConversationRepository) MarkAsRead(ctx context.Context, conversationID, userID string) error {
	// A reset needs no read-modify-write; a plain field overwrite suffices.
	_, err := r.conversations().Doc(conversationID).Update(ctx, []firestore.Update{
		{Path: "unreadCount." + userID, Value: 0},
	})
	if err != nil {
		return mapStoreError("Conversation", err)
	}
	return nil
}

func (r *firestoreConversationRepository) SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	_, err := r.conversations().Doc(conversationID).Set(ctx, map[string]interface{}{
		"typingStatus": map[string]bool{userID: isTyping},
	}, firestore.MergeAll)
	if err != nil {
		return mapStoreError("Conversation", err)
	}
	return nil
}

func (r *firestoreConversationRepository) MarkMessagesRead(ctx context.Context, conversationID string, messageIDs []string) error {
	// Best-effort batch without cross-document validation; failures are
	// reported as one aggregate error.
	bw := r.client.BulkWriter(ctx)

	var jobs []*firestore.BulkWriterJob
	failed := 0
	for _, id := range messageIDs {
		job, err := bw.Update(r.messages(conversationID).Doc(id), []firestore.Update{
			{Path: "status", Value: entity.MessageStatusRead},
		})
		if err != nil {
			failed++
			continue
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			failed++
		}
	}

	if failed > 0 {
		return errors.Unavailable(fmt.Sprintf("%d of %d message status updates failed", failed, len(messageIDs)), nil)
	}
	return nil
}

func (r *firestoreConversationRepository) SetFavorite(ctx context.Context, conversationID string, isFavorite bool) error {
	_, err := r.conversations().Doc(conversationID).Update(ctx, []firestore.Update{
		{Path: "isFavorite", Value: isFavorite},
	})
	if err != nil {
		return mapStoreError("Conversation", err)
	}
	return nil
}

func (r *firestoreConversationRepository) SubscribeMessages(ctx context.Context, conversationID string) (<-chan []*entity.Message, func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	iter := r.messages(conversationID).
		OrderBy("timestamp", firestore.Asc).
		Snapshots(ctx)

	ch := make(chan []*entity.Message, 1)
	go func() {
		defer close(ch)
		for {
			qsnap, err := iter.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					logger.Warn("Message listener for conversation %s stopped: %v", conversationID, err)
				}
				return
			}

			docs, err := qsnap.Documents.GetAll()
			if err != nil {
				logger.Warn("Message listener for conversation %s failed to read snapshot: %v", conversationID, err)
				return
			}

			msgs := make([]*entity.Message, 0, len(docs))
			for _, doc := range docs {
				var msg entity.Message
				if err := doc.DataTo(&msg); err != nil {
					continue
				}
				msgs = append(msgs, &msg)
			}

			select {
			case ch <- msgs:
			case <-ctx.Done():
				return
			}
		}
	}()

	stop := func() {
		cancel()
		iter.Stop()
	}
	return ch, stop, nil
}

func (r *firestoreConversationRepository) SubscribeConversations(ctx context.Context, userID string) (<-chan []*entity.Conversation, func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	iter := r.conversations().
		Where("participantIds", "array-contains", userID).
		Snapshots(ctx)

	ch := make(chan []*entity.Conversation, 1)
	go func() {
		defer close(ch)
		for {
			qsnap, err := iter.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					logger.Warn("Conversation listener for user %s stopped: %v", userID, err)
				}
				return
			}

			docs, err := qsnap.Documents.GetAll()
			if err != nil {
				logger.Warn("Conversation listener for user %s failed to read snapshot: %v", userID, err)
				return
			}

			convs := make([]*entity.Conversation, 0, len(docs))
			for _, doc := range docs {
				var conv entity.Conversation
				if err := doc.DataTo(&conv); err != nil {
					continue
				}
				convs = append(convs, &conv)
			}
			sortConversationsByRecency(convs)

			select {
			case ch <- convs:
			case <-ctx.Done():
				return
			}
		}
	}()

	stop := func() {
		cancel()
		iter.Stop()
	}
	return ch, stop, nil
}
