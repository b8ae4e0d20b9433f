package handler

import (
	"context"
	"encoding/json"
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	ws "pairchat/internal/infrastructure/websocket"
	"pairchat/internal/usecase"
	"pairchat/pkg/errors"
	"pairchat/pkg/logger"
)

type WebSocketHandler struct {
	wsManager   *ws.Manager
	chatUseCase *usecase.ChatUseCase
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // You should restrict this in production
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, chatUseCase *usecase.ChatUseCase) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:   wsManager,
		chatUseCase: chatUseCase,
	}
}

type wsFrame struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversation_id,omitempty"`
	MessageIDs     []string `json:"message_ids,omitempty"`
}

func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	userID, ok := c.Get("uid").(string)
	if !ok || userID == "" {
		return errors.Unauthorized("Authentication required", nil)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	h.wsManager.Register <- client

	go client.ReadPump(h.wsManager, h.handleFrame)
	go client.WritePump()

	return nil
}

func (h *WebSocketHandler) handleFrame(client *ws.Client, message []byte) {
	var frame wsFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		logger.Warn("WebSocket: Invalid frame from %s: %v", client.UserID, err)
		return
	}

	ctx := context.Background()

	switch frame.Type {
	case "join_conversation":
		// Room traffic carries full message payloads; only participants may
		// join, same as every REST path.
		if _, err := h.chatUseCase.GetConversation(ctx, client.UserID, frame.ConversationID); err != nil {
			logger.Warn("WebSocket: join rejected for %s on %s: %v", client.UserID, frame.ConversationID, err)
			return
		}
		h.wsManager.JoinConversation(frame.ConversationID, client)

	case "leave_conversation":
		h.wsManager.LeaveConversation(frame.ConversationID, client)

	case "typing_start":
		h.chatUseCase.SetTyping(ctx, client.UserID, frame.ConversationID, true)

	case "typing_stop":
		h.chatUseCase.SetTyping(ctx, client.UserID, frame.ConversationID, false)

	case "mark_read":
		if err := h.chatUseCase.MarkAsRead(ctx, client.UserID, frame.ConversationID); err != nil {
			logger.Warn("WebSocket: mark_read failed for %s on %s: %v", client.UserID, frame.ConversationID, err)
		}

	case "mark_messages_read":
		if err := h.chatUseCase.MarkMessagesRead(ctx, client.UserID, frame.ConversationID, frame.MessageIDs); err != nil {
			logger.Warn("WebSocket: mark_messages_read failed for %s on %s: %v", client.UserID, frame.ConversationID, err)
		}

	default:
		logger.Warn("WebSocket: Unknown frame type '%s' from %s", frame.Type, client.UserID)
	}
}
