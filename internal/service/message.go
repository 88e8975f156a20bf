package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/domain"
	"ephemeral-chat/internal/metrics"
	"ephemeral-chat/internal/repository"
)

// 广播等待的上限，超时只影响广播，不影响已写入的消息
const notifyTimeout = 3 * time.Second

// MessageService 负责消息的写入、读取和广播。
// 缓存中只保留每个房间最近 domain.MessageWindow 条消息。
type MessageService struct {
	state    repository.StateRepository
	rooms    repository.RoomRepository    // 可选
	messages repository.MessageRepository // 可选
	archiver Archiver                     // 可选
	notifier Notifier                     // 可选
	now      func() time.Time
}

// MessageServiceDeps 是 MessageService 的可选依赖。未配置持久化存储时 Rooms 和 Messages 为 nil。
type MessageServiceDeps struct {
	Rooms    repository.RoomRepository
	Messages repository.MessageRepository
	Archiver Archiver
	Notifier Notifier
	Clock    func() time.Time
}

// NewMessageService 创建 MessageService
func NewMessageService(state repository.StateRepository, deps MessageServiceDeps) *MessageService {
	if state == nil {
		panic("StateRepository cannot be nil for MessageService")
	}
	now := deps.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MessageService{
		state:    state,
		rooms:    deps.Rooms,
		messages: deps.Messages,
		archiver: deps.Archiver,
		notifier: deps.Notifier,
		now:      now,
	}
}

// AddMessage 校验并追加一条消息。房间不存在或已过期时返回 ErrRoomNotFound。
func (s *MessageService) AddMessage(ctx context.Context, code, userName, text string) (*domain.Message, error) {
	code, err := validateRoomCode(code)
	if err != nil {
		return nil, err
	}
	name, err := validateUserName(userName)
	if err != nil {
		return nil, err
	}
	body, err := validateMessageText(text)
	if err != nil {
		return nil, err
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "user_name": name, "operation": "add_message"})

	ttl, err := s.state.RoomTTL(ctx, code)
	if err != nil {
		logCtx.WithError(err).Error("Failed to read room TTL")
		return nil, ErrInternalServer
	}
	if ttl <= 0 {
		return nil, ErrRoomNotFound
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		User:      name,
		Message:   body,
		Timestamp: s.now(),
	}
	if err := s.state.PushMessage(ctx, code, msg, domain.MessageWindow, ttl); err != nil {
		logCtx.WithError(err).Error("Failed to push message to cache")
		return nil, ErrInternalServer
	}
	metrics.MessagesSent.Inc()

	if s.archiver != nil {
		s.archiver.ArchiveMessage(ctx, code, msg)
	}
	logCtx.WithField("message_id", msg.ID).Debug("Message added")
	return &msg, nil
}

// SendMessage 追加消息并广播。广播失败只记录日志。
func (s *MessageService) SendMessage(ctx context.Context, code, userName, text string) (*domain.Message, error) {
	msg, err := s.AddMessage(ctx, code, userName, text)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if s.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyMessage(notifyCtx, code, *msg); err != nil {
			metrics.BroadcastFailures.Inc()
			logrus.WithFields(logrus.Fields{
				"room_code":  code,
				"message_id": msg.ID,
				"operation":  "broadcast",
			}).WithError(err).Warn("Failed to broadcast message")
		}
	}
	return msg, nil
}

// GetMessages 按从旧到新返回最近 limit 条消息。
// 缓存非空时视为完整结果；缓存为空且房间仍有效时从持久化存储读取并回填缓存。
func (s *MessageService) GetMessages(ctx context.Context, code string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = domain.DefaultMessagePageLimit
	}
	if limit > domain.MessageWindow {
		limit = domain.MessageWindow
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "operation": "get_messages"})

	cached, err := s.state.RecentMessages(ctx, code, limit)
	if err != nil {
		logCtx.WithError(err).Error("Failed to read messages from cache")
		return nil, ErrInternalServer
	}
	if len(cached) > 0 {
		reverseMessages(cached)
		return cached, nil
	}
	if s.messages == nil {
		return []domain.Message{}, nil
	}

	ttl, live := s.liveTTL(ctx, code)
	if !live {
		return []domain.Message{}, nil
	}
	rows, err := s.messages.Recent(ctx, code, domain.MessageWindow)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to read messages from durable store")
		return []domain.Message{}, nil
	}
	if len(rows) == 0 {
		return []domain.Message{}, nil
	}
	logCtx.WithField("count", len(rows)).Debug("Message cache empty, served from durable store")

	if err := s.state.ReplaceMessages(ctx, code, rows, ttl); err != nil {
		logCtx.WithError(err).Warn("Failed to repopulate message cache")
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]domain.Message, len(rows))
	copy(out, rows)
	reverseMessages(out)
	return out, nil
}

// CountMessages 返回房间当前可见的消息数
func (s *MessageService) CountMessages(ctx context.Context, code string) (int64, error) {
	n, err := s.state.MessageCount(ctx, code)
	if err != nil {
		logrus.WithField("room_code", code).WithError(err).Error("Failed to count cached messages")
		return 0, ErrInternalServer
	}
	if n > 0 || s.messages == nil {
		return n, nil
	}
	count, err := s.messages.CountByRoom(ctx, code)
	if err != nil {
		logrus.WithField("room_code", code).WithError(err).Warn("Failed to count durable messages")
		return 0, nil
	}
	if count > domain.MessageWindow {
		count = domain.MessageWindow
	}
	return count, nil
}

// liveTTL 返回房间剩余时间，房间已不存在时 live 为 false
func (s *MessageService) liveTTL(ctx context.Context, code string) (time.Duration, bool) {
	ttl, err := s.state.RoomTTL(ctx, code)
	if err == nil && ttl > 0 {
		return ttl, true
	}
	if s.rooms == nil {
		return 0, false
	}
	room, err := s.rooms.FindByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, repository.ErrRoomNotFound) {
			logrus.WithField("room_code", code).WithError(err).Warn("Failed to load room from durable store")
		}
		return 0, false
	}
	now := s.now()
	if !room.IsLive(now) {
		return 0, false
	}
	return room.ExpiresAt.Sub(now), true
}

func reverseMessages(msgs []domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
