package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/domain"
	"ephemeral-chat/internal/metrics"
	"ephemeral-chat/internal/repository"
)

// Archiver 把缓存中的写操作复制到持久化存储。调用方不关心结果，
// 实现可以同步写入 (InlineArchiver) 或投递到任务队列 (tasks.Enqueuer)。
type Archiver interface {
	ArchiveRoom(ctx context.Context, room domain.Room)
	ArchiveParticipant(ctx context.Context, code, userName string, online bool, at time.Time)
	ArchiveExpiry(ctx context.Context, code string, expiresAt time.Time, duration int)
	ArchiveMessage(ctx context.Context, code string, msg domain.Message)
}

// ArchiveService 执行具体的持久化写入并返回错误，供同步归档和后台任务共用。
type ArchiveService struct {
	rooms    repository.RoomRepository
	messages repository.MessageRepository
}

// NewArchiveService 创建 ArchiveService
func NewArchiveService(rooms repository.RoomRepository, messages repository.MessageRepository) *ArchiveService {
	if rooms == nil || messages == nil {
		panic("RoomRepository and MessageRepository cannot be nil for ArchiveService")
	}
	return &ArchiveService{rooms: rooms, messages: messages}
}

// PersistRoom 写入房间和初始成员，房间已存在视为成功
func (s *ArchiveService) PersistRoom(ctx context.Context, room *domain.Room) error {
	room.IsActive = true
	err := s.rooms.Create(ctx, room)
	if err != nil && !errors.Is(err, repository.ErrDuplicateEntry) {
		return fmt.Errorf("persist room %s: %w", room.Code, err)
	}
	return nil
}

// PersistParticipant 更新成员的在线状态
func (s *ArchiveService) PersistParticipant(ctx context.Context, code, userName string, online bool, at time.Time) error {
	if err := s.rooms.UpsertParticipant(ctx, code, userName, online, at); err != nil {
		return fmt.Errorf("persist participant %q of room %s: %w", userName, code, err)
	}
	return nil
}

// PersistExpiry 同步延长后的过期时间
func (s *ArchiveService) PersistExpiry(ctx context.Context, code string, expiresAt time.Time, duration int) error {
	if err := s.rooms.UpdateExpiry(ctx, code, expiresAt, duration); err != nil {
		return fmt.Errorf("persist expiry of room %s: %w", code, err)
	}
	return nil
}

// PersistMessage 保存消息并重新计算房间的消息数
func (s *ArchiveService) PersistMessage(ctx context.Context, code string, msg domain.Message) error {
	if err := s.messages.Save(ctx, code, msg); err != nil {
		return fmt.Errorf("persist message %s: %w", msg.ID, err)
	}
	count, err := s.messages.CountByRoom(ctx, code)
	if err != nil {
		return fmt.Errorf("count messages of room %s: %w", code, err)
	}
	if err := s.rooms.UpdateMessageCount(ctx, code, count); err != nil {
		return fmt.Errorf("update message count of room %s: %w", code, err)
	}
	return nil
}

// InlineArchiver 在请求路径上同步写入持久化存储，失败只记录日志。
type InlineArchiver struct {
	svc *ArchiveService
}

// NewInlineArchiver 创建 InlineArchiver
func NewInlineArchiver(svc *ArchiveService) *InlineArchiver {
	return &InlineArchiver{svc: svc}
}

func (a *InlineArchiver) ArchiveRoom(ctx context.Context, room domain.Room) {
	if err := a.svc.PersistRoom(ctx, &room); err != nil {
		archiveFailed("room", room.Code, err)
	}
}

func (a *InlineArchiver) ArchiveParticipant(ctx context.Context, code, userName string, online bool, at time.Time) {
	if err := a.svc.PersistParticipant(ctx, code, userName, online, at); err != nil {
		archiveFailed("participant", code, err)
	}
}

func (a *InlineArchiver) ArchiveExpiry(ctx context.Context, code string, expiresAt time.Time, duration int) {
	if err := a.svc.PersistExpiry(ctx, code, expiresAt, duration); err != nil {
		archiveFailed("expiry", code, err)
	}
}

func (a *InlineArchiver) ArchiveMessage(ctx context.Context, code string, msg domain.Message) {
	if err := a.svc.PersistMessage(ctx, code, msg); err != nil {
		archiveFailed("message", code, err)
	}
}

func archiveFailed(kind, code string, err error) {
	metrics.ArchiveFailures.WithLabelValues(kind).Inc()
	logrus.WithFields(logrus.Fields{
		"room_code": code,
		"operation": "archive_" + kind,
	}).WithError(err).Warn("Durable store write failed, cache remains authoritative")
}
