package handler

import (
	"sociomart/internal/domain/repository"
	"sociomart/internal/infrastructure/token"
	ws "sociomart/internal/infrastructure/websocket"
	"sociomart/internal/usecase"
)

var (
	chatHandler      *ChatHandler
	webSocketHandler *WebSocketHandler
	tokenHandler     *TokenHandler
	healthHandler    *HealthHandler
)

func Setup(
	chatUseCase *usecase.ChatUseCase,
	manager *ws.Manager,
	tokens *token.DeliveryTokenService,
	userRepo repository.UserRepository,
) {
	chatHandler = NewChatHandler(chatUseCase)
	webSocketHandler = NewWebSocketHandler(manager, tokens, userRepo)
	tokenHandler = NewTokenHandler(tokens)
	healthHandler = NewHealthHandler(manager)
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetWebSocketHandler() *WebSocketHandler {
	return webSocketHandler
}

func GetTokenHandler() *TokenHandler {
	return tokenHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}
