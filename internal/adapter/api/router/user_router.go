package router

import (
	"github.com/labstack/echo/v4"

	"pairchat/internal/adapter/api/handler"
	"pairchat/internal/adapter/api/middleware"
)

func SetupUserRouter(e *echo.Echo, userHandler *handler.UserHandler, authMiddleware *middleware.AuthMiddleware) {
	userGroup := e.Group("/v1/users")
	userGroup.Use(authMiddleware.Authenticate)

	userGroup.PUT("/me", userHandler.SyncProfile)
	userGroup.GET("/:id", userHandler.GetProfile)
}
