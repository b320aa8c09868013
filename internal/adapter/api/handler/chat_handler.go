package handler

import (
	"sociomart/internal/usecase"
	"sociomart/pkg/response"
	"sociomart/pkg/utils"

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

type createChatRequest struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	ProductID     string `json:"product_id"`
}

type sendMessageRequest struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type" validate:"required,oneof=text image product"`
	ProductRef  string `json:"product_ref"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

type reportChatRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CreateChat finds or creates the chat for the (caller, participant,
// product) key. An existing chat returns 200, a fresh one 201.
func (h *ChatHandler) CreateChat(c echo.Context) error {
	var req createChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	chat, err := h.chatUseCase.FindOrCreateChat(c.Request().Context(), userID, usecase.CreateChatInput{
		ParticipantID: req.ParticipantID,
		ProductID:     req.ProductID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, chat)
}

func (h *ChatHandler) ListChats(c echo.Context) error {
	userID := c.Get("uid").(string)

	chats, err := h.chatUseCase.ListChats(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, chats)
}

func (h *ChatHandler) GetMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	chatID := c.Param("id")

	params := utils.GetPaginationParams(c)

	page, err := h.chatUseCase.GetMessages(c.Request().Context(), userID, chatID, params.Page, params.PageSize)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, page.Messages, page.Total, params.Page, params.PageSize)
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
	chatID := c.Param("id")

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		ChatID:     chatID,
		Content:    req.Content,
		Kind:       req.MessageType,
		ProductRef: req.ProductRef,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ChatHandler) MarkMessagesRead(c echo.Context) error {
	userID := c.Get("uid").(string)
	chatID := c.Param("id")

	count, err := h.chatUseCase.MarkMessagesRead(c.Request().Context(), userID, chatID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"marked_read": count,
	})
}

func (h *ChatHandler) EndChat(c echo.Context) error {
	userID := c.Get("uid").(string)
	chatID := c.Param("id")

	chat, err := h.chatUseCase.EndChat(c.Request().Context(), userID, chatID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, chat)
}

func (h *ChatHandler) ReportChat(c echo.Context) error {
	var req reportChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	chatID := c.Param("id")

	chat, err := h.chatUseCase.ReportChat(c.Request().Context(), userID, chatID, req.Reason)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, chat)
}

func (h *ChatHandler) DeleteChat(c echo.Context) error {
	userID := c.Get("uid").(string)
	chatID := c.Param("id")

	if err := h.chatUseCase.DeleteChat(c.Request().Context(), userID, chatID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"deleted": true,
	})
}
