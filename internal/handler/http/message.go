package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ephemeral-chat/internal/domain"
	"ephemeral-chat/internal/dto"
	"ephemeral-chat/internal/service"
)

// MessageHandler 处理消息发送和历史查询
type MessageHandler struct {
	messageService *service.MessageService
}

// NewMessageHandler 创建 MessageHandler 实例
func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	if messageService == nil {
		panic("MessageService cannot be nil for MessageHandler")
	}
	return &MessageHandler{messageService: messageService}
}

// SendMessage POST /api/messages/send
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.RoomCode == "" || req.UserName == "" || req.Message == "" {
		ErrorResponse(c, http.StatusBadRequest, service.KindValidation, "Missing required fields")
		return
	}

	msg, err := h.messageService.SendMessage(c.Request.Context(), req.RoomCode, req.UserName, req.Message)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.SendMessageResponse{Success: true, Message: msg})
}

// GetMessages GET /api/messages/:code?limit=
func (h *MessageHandler) GetMessages(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		ErrorResponse(c, http.StatusBadRequest, service.KindValidation, "Room code required")
		return
	}
	limit := domain.MessageWindow
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ErrorResponse(c, http.StatusBadRequest, service.KindValidation, "limit must be a positive integer")
			return
		}
		limit = n
	}

	messages, err := h.messageService.GetMessages(c.Request.Context(), code, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.MessagesResponse{
		Success:  true,
		Messages: messages,
		Count:    len(messages),
	})
}
