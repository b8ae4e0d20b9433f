package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/internal/adapter/api"
	"pairchat/internal/domain/entity"
	"pairchat/internal/infrastructure/websocket"
	"pairchat/internal/usecase"
	"pairchat/pkg/errors"
	"pairchat/pkg/response"
)

// stubConvRepo serves one fixed conversation between alice and bob.
type stubConvRepo struct {
	conv *entity.Conversation
	msg  *entity.Message
}

func newStubConvRepo() *stubConvRepo {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &stubConvRepo{
		conv: &entity.Conversation{
			ID:             "alice_bob",
			ParticipantIDs: []string{"alice", "bob"},
			UnreadCount:    map[string]int64{"alice": 0, "bob": 0},
			CreatedAt:      now,
		},
		msg: &entity.Message{
			ID:             "m1",
			ConversationID: "alice_bob",
			SenderID:       "alice",
			Text:           "Hi",
			Status:         entity.MessageStatusSent,
			Timestamp:      now,
		},
	}
}

func (s *stubConvRepo) GetOrCreate(ctx context.Context, currentUserID, targetUserID string) (*entity.Conversation, error) {
	if entity.ConversationID(currentUserID, targetUserID) == s.conv.ID {
		return s.conv, nil
	}
	return &entity.Conversation{
		ID:             entity.ConversationID(currentUserID, targetUserID),
		ParticipantIDs: entity.SortedParticipants(currentUserID, targetUserID),
		UnreadCount:    map[string]int64{currentUserID: 0, targetUserID: 0},
	}, nil
}

func (s *stubConvRepo) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	if id != s.conv.ID {
		return nil, errors.NotFound("Conversation", nil)
	}
	return s.conv, nil
}

func (s *stubConvRepo) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error) {
	return []*entity.Conversation{s.conv}, 1, nil
}

func (s *stubConvRepo) AppendMessage(ctx context.Context, msg *entity.Message, receiverID, summary string) error {
	msg.ID = "m2"
	msg.Status = entity.MessageStatusSent
	return nil
}

func (s *stubConvRepo) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	return nil
}

func (s *stubConvRepo) ToggleReaction(ctx context.Context, conversationID, messageID, userID, emoji string) error {
	return nil
}

func (s *stubConvRepo) EditMessage(ctx context.Context, conversationID, messageID, newText string) error {
	return nil
}

func (s *stubConvRepo) GetMessageByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	if messageID != s.msg.ID {
		return nil, errors.NotFound("Message", nil)
	}
	return s.msg, nil
}

func (s *stubConvRepo) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	return []*entity.Message{s.msg}, 1, nil
}

func (s *stubConvRepo) MarkAsRead(ctx context.Context, conversationID, userID string) error {
	s.conv.UnreadCount[userID] = 0
	return nil
}

func (s *stubConvRepo) SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	return nil
}

func (s *stubConvRepo) MarkMessagesRead(ctx context.Context, conversationID string, messageIDs []string) error {
	return nil
}

func (s *stubConvRepo) SetFavorite(ctx context.Context, conversationID string, isFavorite bool) error {
	return nil
}

func (s *stubConvRepo) SubscribeMessages(ctx context.Context, conversationID string) (<-chan []*entity.Message, func(), error) {
	ch := make(chan []*entity.Message, 1)
	ch <- []*entity.Message{s.msg}
	close(ch)
	return ch, func() {}, nil
}

func (s *stubConvRepo) SubscribeConversations(ctx context.Context, userID string) (<-chan []*entity.Conversation, func(), error) {
	ch := make(chan []*entity.Conversation, 1)
	ch <- []*entity.Conversation{s.conv}
	close(ch)
	return ch, func() {}, nil
}

type stubUserRepo struct{}

func (s *stubUserRepo) Create(ctx context.Context, user *entity.User) error { return nil }
func (s *stubUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return nil, errors.NotFound("User", nil)
}
func (s *stubUserRepo) Update(ctx context.Context, user *entity.User) error { return nil }

func newTestHandler() *ChatHandler {
	uc := usecase.NewChatUseCase(newStubConvRepo(), &stubUserRepo{}, nil, websocket.NewManager())
	return NewChatHandler(uc)
}

func newTestWebSocketHandler() (*WebSocketHandler, *websocket.Manager) {
	wsManager := websocket.NewManager()
	uc := usecase.NewChatUseCase(newStubConvRepo(), &stubUserRepo{}, nil, wsManager)
	return NewWebSocketHandler(wsManager, uc), wsManager
}

func newTestContext(t *testing.T, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	e.Validator = api.NewValidator()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/", reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()

	var env response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestCreateConversation(t *testing.T) {
	h := newTestHandler()

	c, rec := newTestContext(t, http.MethodPost, `{"recipient_id":"bob"}`)
	c.Set("uid", "alice")

	require.NoError(t, h.CreateConversation(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
}

func TestCreateConversationRequiresRecipient(t *testing.T) {
	h := newTestHandler()

	c, rec := newTestContext(t, http.MethodPost, "")
	c.Set("uid", "alice")

	require.NoError(t, h.CreateConversation(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestCreateConversationRejectsSelf(t *testing.T) {
	h := newTestHandler()

	c, rec := newTestContext(t, http.MethodPost, `{"recipient_id":"alice"}`)
	c.Set("uid", "alice")

	require.NoError(t, h.CreateConversation(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestGetConversationForbiddenForOutsider(t *testing.T) {
	h := newTestHandler()

	c, rec := newTestContext(t, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues("alice_bob")
	c.Set("uid", "mallory")

	require.NoError(t, h.GetConversation(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestGetConversationNotFound(t *testing.T) {
	h := newTestHandler()

	c, rec := newTestContext(t, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues("carol_dave")
	c.Set("uid", "carol")

	require.NoError(t, h.GetConversation(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestSendMessage(t *testing.T) {
	h := newTestHandler()

	c, rec := newTestContext(t, http.MethodPost, `{"text":"Hi"}`)
	c.SetParamNames("id")
	c.SetParamValues("alice_bob")
	c.Set("uid", "alice")

	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSendMessageRequiresText(t *testing.T) {
	h := newTestHandler()

	c, rec := newTestContext(t, http.MethodPost, "")
	c.SetParamNames("id")
	c.SetParamValues("alice_bob")
	c.Set("uid", "alice")

	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleReactionRequiresEmoji(t *testing.T) {
	h := newTestHandler()

	c, rec := newTestContext(t, http.MethodPost, "")
	c.SetParamNames("id", "messageId")
	c.SetParamValues("alice_bob", "m1")
	c.Set("uid", "alice")

	require.NoError(t, h.ToggleReaction(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkMessagesReadRequiresIDs(t *testing.T) {
	h := newTestHandler()

	c, rec := newTestContext(t, http.MethodPut, `{"message_ids":[]}`)
	c.SetParamNames("id")
	c.SetParamValues("alice_bob")
	c.Set("uid", "bob")

	require.NoError(t, h.MarkMessagesRead(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinConversationRejectsNonParticipant(t *testing.T) {
	h, wsManager := newTestWebSocketHandler()

	mallory := &websocket.Client{UserID: "mallory", Send: make(chan []byte, 1)}
	h.handleFrame(mallory, []byte(`{"type":"join_conversation","conversation_id":"alice_bob"}`))

	wsManager.SendToConversation("alice_bob", []byte("private"), "")
	select {
	case <-mallory.Send:
		t.Fatal("non-participant received room traffic")
	default:
	}
}

func TestJoinConversationAdmitsParticipant(t *testing.T) {
	h, wsManager := newTestWebSocketHandler()

	alice := &websocket.Client{UserID: "alice", Send: make(chan []byte, 1)}
	h.handleFrame(alice, []byte(`{"type":"join_conversation","conversation_id":"alice_bob"}`))

	wsManager.SendToConversation("alice_bob", []byte("room update"), "")
	select {
	case msg := <-alice.Send:
		assert.Equal(t, "room update", string(msg))
	default:
		t.Fatal("participant did not receive room traffic")
	}
}

func TestStreamMessagesEmitsEvents(t *testing.T) {
	h := newTestHandler()

	c, rec := newTestContext(t, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues("alice_bob")
	c.Set("uid", "alice")

	require.NoError(t, h.StreamMessages(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Body.String(), "data: ")
	assert.Contains(t, rec.Body.String(), `"text":"Hi"`)
}

func TestStreamMessagesForbiddenForOutsider(t *testing.T) {
	h := newTestHandler()

	c, rec := newTestContext(t, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues("alice_bob")
	c.Set("uid", "mallory")

	require.NoError(t, h.StreamMessages(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStreamConversationsEmitsEvents(t *testing.T) {
	h := newTestHandler()

	c, rec := newTestContext(t, http.MethodGet, "")
	c.Set("uid", "alice")

	require.NoError(t, h.StreamConversations(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"alice_bob"`)
}

func TestDeleteMessageForbiddenForNonSender(t *testing.T) {
	h := newTestHandler()

	c, rec := newTestContext(t, http.MethodDelete, "")
	c.SetParamNames("id", "messageId")
	c.SetParamValues("alice_bob", "m1")
	c.Set("uid", "bob")

	require.NoError(t, h.DeleteMessage(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
