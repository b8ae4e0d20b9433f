package router

import (
	"github.com/labstack/echo/v4"

	"pairchat/internal/adapter/api/handler"
	"pairchat/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all conversation and message routes
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	convGroup := e.Group("/v1/conversations")
	convGroup.Use(authMiddleware.Authenticate)

	// Conversation management
	convGroup.POST("", chatHandler.CreateConversation)
	convGroup.GET("", chatHandler.ListConversations)
	convGroup.GET("/stream", chatHandler.StreamConversations)
	convGroup.GET("/:id", chatHandler.GetConversation)
	convGroup.GET("/:id/stream", chatHandler.StreamMessages)
	convGroup.PUT("/:id/read", chatHandler.MarkAsRead)
	convGroup.PUT("/:id/favorite", chatHandler.SetFavorite)
	convGroup.PUT("/:id/typing", chatHandler.SetTyping)

	// Message management
	convGroup.POST("/:id/messages", chatHandler.SendMessage)
	convGroup.POST("/:id/images", chatHandler.SendImageMessage)
	convGroup.GET("/:id/messages", chatHandler.ListMessages)
	convGroup.PUT("/:id/messages/read", chatHandler.MarkMessagesRead)
	convGroup.PUT("/:id/messages/:messageId", chatHandler.EditMessage)
	convGroup.DELETE("/:id/messages/:messageId", chatHandler.DeleteMessage)
	convGroup.POST("/:id/messages/:messageId/reactions", chatHandler.ToggleReaction)
}
