package handler

import (
	"github.com/labstack/echo/v4"

	"sociomart/internal/infrastructure/token"
	"sociomart/pkg/response"
)

type TokenHandler struct {
	tokens *token.DeliveryTokenService
}

func NewTokenHandler(tokens *token.DeliveryTokenService) *TokenHandler {
	return &TokenHandler{
		tokens: tokens,
	}
}

// IssueDeliveryToken mints a short-lived websocket credential for the
// session-authenticated caller.
func (h *TokenHandler) IssueDeliveryToken(c echo.Context) error {
	userID := c.Get("uid").(string)

	signed, err := h.tokens.Issue(userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"token": signed,
	})
}
