package router

import (
	"sociomart/internal/adapter/api/handler"

	"github.com/labstack/echo/v4"
)

// SetupWebSocketRouter registers the delivery channel endpoint. Auth is
// handled inside the handler via the delivery token, not the session
// middleware, because browsers cannot set headers on websocket dials.
func SetupWebSocketRouter(e *echo.Echo) {
	webSocketHandler := handler.GetWebSocketHandler()
	e.GET("/ws/chat", webSocketHandler.HandleConnection)
}
