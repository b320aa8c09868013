package router

import (
	"sociomart/internal/adapter/api/handler"
	"sociomart/internal/adapter/api/middleware"

	"github.com/labstack/echo/v4"
)

func SetupChatRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	chatHandler := handler.GetChatHandler()
	tokenHandler := handler.GetTokenHandler()

	chats := e.Group("/v1/chats")
	chats.Use(authMiddleware.Authenticate)

	chats.GET("", chatHandler.ListChats)
	chats.POST("", chatHandler.CreateChat)
	chats.POST("/token", tokenHandler.IssueDeliveryToken)
	chats.GET("/:id/messages", chatHandler.GetMessages)
	chats.POST("/:id/messages", chatHandler.SendMessage)
	chats.POST("/:id/read", chatHandler.MarkMessagesRead)
	chats.PUT("/:id/end", chatHandler.EndChat)
	chats.POST("/:id/report", chatHandler.ReportChat)
	chats.DELETE("/:id", chatHandler.DeleteChat)
}
