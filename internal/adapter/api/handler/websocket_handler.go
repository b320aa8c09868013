package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"sociomart/internal/domain/repository"
	"sociomart/internal/infrastructure/token"
	ws "sociomart/internal/infrastructure/websocket"
	"sociomart/pkg/errors"
	"sociomart/pkg/logger"
	"sociomart/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	manager  *ws.Manager
	tokens   *token.DeliveryTokenService
	userRepo repository.UserRepository
}

func NewWebSocketHandler(manager *ws.Manager, tokens *token.DeliveryTokenService, userRepo repository.UserRepository) *WebSocketHandler {
	return &WebSocketHandler{
		manager:  manager,
		tokens:   tokens,
		userRepo: userRepo,
	}
}

// HandleConnection authenticates the delivery token from the query string,
// upgrades to a websocket and hands the connection to the manager. Auth
// failures are rejected before the upgrade.
func (h *WebSocketHandler) HandleConnection(c echo.Context) error {
	tokenString := c.QueryParam("token")
	if tokenString == "" {
		return response.Error(c, errors.Unauthorized("Missing delivery token", nil))
	}

	userID, err := h.tokens.Verify(tokenString)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if _, err := h.userRepo.GetByID(ctx, userID); err != nil {
		logger.Warn("WebSocket connect rejected: user %s not found", userID)
		return response.Error(c, errors.Unauthorized("Unknown user", nil))
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed for user %s: %v", userID, err)
		return err
	}

	client := ws.NewClient(userID, conn)
	h.manager.HandleConnect(client)

	go client.WritePump()
	go client.ReadPump(h.manager)

	return nil
}
