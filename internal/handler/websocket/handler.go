package websocket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/domain"
	"ephemeral-chat/internal/hub"
	"ephemeral-chat/internal/service"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	roomService *service.RoomService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。allowedOrigin 为空或 "*" 时允许所有来源。
func NewWebSocketHandler(hub *hub.Hub, roomService *service.RoomService, allowedOrigin string) *WebSocketHandler {
	if hub == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return &WebSocketHandler{
		upgrader:    upgrader,
		hub:         hub,
		roomService: roomService,
	}
}

// HandleConnection 处理 WebSocket 连接请求
// URL 格式: /ws/rooms/:code?name=<userName>
// 只有房间成员才能订阅，成员资格通过 POST /api/rooms/join 获得。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	code := c.Param("code")
	name := strings.TrimSpace(c.Query("name"))
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "user_name": name})

	if !domain.ValidRoomCode(code) || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid room code and name are required", "kind": service.KindValidation})
		return
	}

	room, err := h.roomService.GetRoom(c.Request.Context(), code)
	if err != nil {
		kind := service.ErrorKind(err)
		if kind == service.KindNotFound {
			logCtx.Warn("WS Handler: Room not found")
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": kind})
		} else {
			logCtx.WithError(err).Error("WS Handler: Error checking room existence")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate room", "kind": service.KindInternal})
		}
		return
	}
	if !room.HasParticipant(name) {
		logCtx.Warn("WS Handler: User is not a participant")
		c.JSON(http.StatusForbidden, gin.H{"error": "join the room before subscribing", "kind": service.KindForbidden})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写入了 HTTP 错误响应
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, code, name)
	if !client.Register() {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		_ = conn.Close()
		return
	}
	client.Run()
	logCtx.Info("WS Handler: Client connected")
}
