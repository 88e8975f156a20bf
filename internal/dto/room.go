package dto

import (
	"time"

	"ephemeral-chat/internal/domain"
)

// CreateRoomRequest 创建房间。participantsCount 省略时使用默认值 5。
type CreateRoomRequest struct {
	Name              string `json:"name"`
	Duration          int    `json:"duration"`
	ParticipantsCount int    `json:"participantsCount"`
}

type CreateRoomResponse struct {
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RoomMemberRequest 用于加入和离开
type RoomMemberRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type JoinRoomResponse struct {
	Message string       `json:"message"`
	Room    *domain.Room `json:"room"`
}

type ExtendRoomRequest struct {
	Code    string `json:"code"`
	Minutes int    `json:"minutes"`
}

type ExtendRoomResponse struct {
	Success   bool      `json:"success"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type RoomExistsResponse struct {
	Exists bool `json:"exists"`
}

type OnlineUsersResponse struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
