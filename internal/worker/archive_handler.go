package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/service"
	"ephemeral-chat/internal/tasks"
)

// ArchiveHandler 处理归档任务，把缓存中的写操作落到持久化存储。
// 返回错误时 asynq 会按 MaxRetry 重试。
type ArchiveHandler struct {
	archive *service.ArchiveService
}

// NewArchiveHandler 创建 Handler 实例
func NewArchiveHandler(archive *service.ArchiveService) *ArchiveHandler {
	if archive == nil {
		panic("ArchiveService cannot be nil for ArchiveHandler")
	}
	return &ArchiveHandler{archive: archive}
}

// Register 在 mux 上注册全部归档任务
func (h *ArchiveHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(tasks.TypeRoomArchive, h.ProcessRoom)
	mux.HandleFunc(tasks.TypeParticipantArchive, h.ProcessParticipant)
	mux.HandleFunc(tasks.TypeExpiryArchive, h.ProcessExpiry)
	mux.HandleFunc(tasks.TypeMessageArchive, h.ProcessMessage)
}

// ProcessRoom 写入新建的房间
func (h *ArchiveHandler) ProcessRoom(ctx context.Context, t *asynq.Task) error {
	var payload tasks.RoomArchivePayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	logCtx := taskLogger(ctx, t).WithField("room_code", payload.Room.Code)
	if err := h.archive.PersistRoom(ctx, &payload.Room); err != nil {
		logCtx.WithError(err).Error("Failed to archive room")
		return err
	}
	logCtx.Debug("Room archived")
	return nil
}

// ProcessParticipant 更新成员状态
func (h *ArchiveHandler) ProcessParticipant(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ParticipantArchivePayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	logCtx := taskLogger(ctx, t).WithFields(logrus.Fields{"room_code": payload.RoomCode, "user_name": payload.UserName})
	if err := h.archive.PersistParticipant(ctx, payload.RoomCode, payload.UserName, payload.Online, payload.At); err != nil {
		logCtx.WithError(err).Error("Failed to archive participant")
		return err
	}
	logCtx.Debug("Participant archived")
	return nil
}

// ProcessExpiry 同步延长后的过期时间
func (h *ArchiveHandler) ProcessExpiry(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ExpiryArchivePayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	logCtx := taskLogger(ctx, t).WithField("room_code", payload.RoomCode)
	if err := h.archive.PersistExpiry(ctx, payload.RoomCode, payload.ExpiresAt, payload.Duration); err != nil {
		logCtx.WithError(err).Error("Failed to archive room expiry")
		return err
	}
	logCtx.Debug("Room expiry archived")
	return nil
}

// ProcessMessage 保存消息并更新计数
func (h *ArchiveHandler) ProcessMessage(ctx context.Context, t *asynq.Task) error {
	var payload tasks.MessageArchivePayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	logCtx := taskLogger(ctx, t).WithFields(logrus.Fields{"room_code": payload.RoomCode, "message_id": payload.Message.ID})
	if err := h.archive.PersistMessage(ctx, payload.RoomCode, payload.Message); err != nil {
		logCtx.WithError(err).Error("Failed to archive message")
		return err
	}
	logCtx.Debug("Message archived")
	return nil
}

// decode 解析 payload，格式错误的任务不重试
func decode(t *asynq.Task, v interface{}) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		logrus.WithField("task_type", t.Type()).WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	return nil
}

func taskLogger(ctx context.Context, t *asynq.Task) *logrus.Entry {
	taskID, _ := asynq.GetTaskID(ctx)
	retry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     retry,
		"max_retry": maxRetry,
	})
}
