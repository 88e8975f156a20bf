package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/dto"
	"ephemeral-chat/internal/service"
)

// RoomHandler 封装了与房间管理相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService     *service.RoomService
	presenceService *service.PresenceService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService, presenceService *service.PresenceService) *RoomHandler {
	if roomService == nil || presenceService == nil {
		panic("RoomService and PresenceService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService, presenceService: presenceService}
}

// CreateRoom POST /api/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), req.Name, req.Duration, req.ParticipantsCount)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithField("room_code", room.Code).Debug("Handler.CreateRoom: Room created")
	SuccessResponse(c, http.StatusOK, dto.CreateRoomResponse{
		Message:   "Room Created Successfully",
		Code:      room.Code,
		ExpiresAt: room.ExpiresAt,
	})
}

// JoinRoom POST /api/rooms/join
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req dto.RoomMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	room, err := h.roomService.JoinRoom(c.Request.Context(), req.Code, req.Name)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.JoinRoomResponse{
		Message: "Joined the Room Successfully",
		Room:    room,
	})
}

// LeaveRoom POST /api/rooms/leave
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	var req dto.RoomMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.roomService.LeaveRoom(c.Request.Context(), req.Code, req.Name); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.SuccessResponse{Success: true})
}

// ExtendRoom POST /api/rooms/extend
func (h *RoomHandler) ExtendRoom(c *gin.Context) {
	var req dto.ExtendRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	expiresAt, err := h.roomService.ExtendRoomTime(c.Request.Context(), req.Code, req.Minutes)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.ExtendRoomResponse{Success: true, ExpiresAt: expiresAt})
}

// GetRoomInfo GET /api/rooms/:code
func (h *RoomHandler) GetRoomInfo(c *gin.Context) {
	info, err := h.roomService.GetRoomInfo(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, info)
}

// RoomExists GET /api/rooms/:code/exists
func (h *RoomHandler) RoomExists(c *gin.Context) {
	exists := h.roomService.RoomExists(c.Request.Context(), c.Param("code"))
	SuccessResponse(c, http.StatusOK, dto.RoomExistsResponse{Exists: exists})
}

// OnlineUsers GET /api/rooms/:code/online
func (h *RoomHandler) OnlineUsers(c *gin.Context) {
	users, err := h.presenceService.OnlineUsers(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.OnlineUsersResponse{Users: users, Count: len(users)})
}
