package dto

import "ephemeral-chat/internal/domain"

type SendMessageRequest struct {
	RoomCode string `json:"roomCode"`
	UserName string `json:"userName"`
	Message  string `json:"message"`
}

type SendMessageResponse struct {
	Success bool            `json:"success"`
	Message *domain.Message `json:"message"`
}

type MessagesResponse struct {
	Success  bool             `json:"success"`
	Messages []domain.Message `json:"messages"`
	Count    int              `json:"count"`
}

// ErrorResponse 所有错误响应的结构
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
