package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"pairchat/internal/usecase"
	"pairchat/pkg/errors"
	"pairchat/pkg/response"
	"pairchat/pkg/utils"

	"github.com/labstack/echo/v4"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type createConversationRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

type editMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

type reactionRequest struct {
	Emoji string `json:"emoji" validate:"required"`
}

type favoriteRequest struct {
	IsFavorite bool `json:"is_favorite"`
}

type typingRequest struct {
	IsTyping bool `json:"is_typing"`
}

type markMessagesReadRequest struct {
	MessageIDs []string `json:"message_ids" validate:"required,min=1"`
}

// CreateConversation gets or creates the conversation with the recipient.
// Repeated calls with the same pair converge to the same conversation.
func (h *ChatHandler) CreateConversation(c echo.Context) error {
	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	conv, err := h.chatUseCase.GetOrCreateConversation(c.Request().Context(), userID, req.RecipientID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, conv)
}

func (h *ChatHandler) ListConversations(c echo.Context) error {
	userID := c.Get("uid").(string)
	p := utils.GetPaginationParams(c)

	convs, total, err := h.chatUseCase.ListConversations(c.Request().Context(), userID, p.Limit, p.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, convs, total, p.Limit, p.Offset)
}

func (h *ChatHandler) GetConversation(c echo.Context) error {
	userID := c.Get("uid").(string)

	conv, err := h.chatUseCase.GetConversation(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conv)
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	msg, err := h.chatUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		ConversationID: c.Param("id"),
		Text:           req.Text,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, msg)
}

// SendImageMessage accepts a multipart upload; the attachment is stored in
// the blob store before any message is written.
func (h *ChatHandler) SendImageMessage(c echo.Context) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return response.Error(c, errors.Validation("An image file is required", err))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.Internal("Failed to open uploaded file", err))
	}
	defer file.Close()

	userID := c.Get("uid").(string)

	msg, err := h.chatUseCase.SendImageMessage(c.Request().Context(), userID, usecase.SendImageInput{
		ConversationID: c.Param("id"),
		Caption:        c.FormValue("caption"),
		ContentType:    fileHeader.Header.Get("Content-Type"),
		File:           file,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, msg)
}

func (h *ChatHandler) ListMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	p := utils.GetPaginationParams(c)

	msgs, total, err := h.chatUseCase.ListMessages(c.Request().Context(), userID, c.Param("id"), p.Limit, p.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, msgs, total, p.Limit, p.Offset)
}

func (h *ChatHandler) EditMessage(c echo.Context) error {
	var req editMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	if err := h.chatUseCase.EditMessage(c.Request().Context(), userID, c.Param("id"), c.Param("messageId"), req.Text); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "edited"})
}

func (h *ChatHandler) DeleteMessage(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.chatUseCase.DeleteMessage(c.Request().Context(), userID, c.Param("id"), c.Param("messageId")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "deleted"})
}

func (h *ChatHandler) ToggleReaction(c echo.Context) error {
	var req reactionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	if err := h.chatUseCase.ToggleReaction(c.Request().Context(), userID, c.Param("id"), c.Param("messageId"), req.Emoji); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "toggled"})
}

func (h *ChatHandler) MarkAsRead(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.chatUseCase.MarkAsRead(c.Request().Context(), userID, c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "read"})
}

func (h *ChatHandler) MarkMessagesRead(c echo.Context) error {
	var req markMessagesReadRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	if err := h.chatUseCase.MarkMessagesRead(c.Request().Context(), userID, c.Param("id"), req.MessageIDs); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "read"})
}

func (h *ChatHandler) SetFavorite(c echo.Context) error {
	var req favoriteRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	if err := h.chatUseCase.SetFavorite(c.Request().Context(), userID, c.Param("id"), req.IsFavorite); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]bool{"is_favorite": req.IsFavorite})
}

// StreamMessages pushes message-list snapshots as server-sent events until
// the client disconnects; the listener is released on return.
func (h *ChatHandler) StreamMessages(c echo.Context) error {
	userID := c.Get("uid").(string)

	ch, stop, err := h.chatUseCase.StreamMessages(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	defer stop()

	resp := startEventStream(c)
	for msgs := range ch {
		writeEvent(resp, msgs)
	}
	return nil
}

func (h *ChatHandler) StreamConversations(c echo.Context) error {
	userID := c.Get("uid").(string)

	ch, stop, err := h.chatUseCase.StreamConversations(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}
	defer stop()

	resp := startEventStream(c)
	for convs := range ch {
		writeEvent(resp, convs)
	}
	return nil
}

func startEventStream(c echo.Context) *echo.Response {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	return resp
}

func writeEvent(resp *echo.Response, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(resp, "data: %s\n\n", data)
	resp.Flush()
}

func (h *ChatHandler) SetTyping(c echo.Context) error {
	var req typingRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	h.chatUseCase.SetTyping(c.Request().Context(), userID, c.Param("id"), req.IsTyping)
	return response.Success(c, map[string]bool{"is_typing": req.IsTyping})
}
