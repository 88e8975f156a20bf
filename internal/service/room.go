package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/domain"
	"ephemeral-chat/internal/metrics"
	"ephemeral-chat/internal/repository"
)

// joinLockLease 严格加入模式下房间锁的租期
const joinLockLease = 3 * time.Second

// RoomOptions 房间生命周期的可配置项
type RoomOptions struct {
	// MaxExtendMinutes 单次延长的上限，0 表示不限制
	MaxExtendMinutes int
	// MaxRoomLifetimeMinutes 房间累计时长的上限，0 表示不限制
	MaxRoomLifetimeMinutes int
	// StrictJoin 为 true 时用 Redis 租约串行化同一房间的加入操作
	StrictJoin bool
	Clock      func() time.Time
}

// RoomService 负责房间的创建、查询、加入、离开和延长。
// 缓存是权威数据源；rooms 为 nil 表示没有配置持久化存储。
type RoomService struct {
	state    repository.StateRepository
	rooms    repository.RoomRepository
	presence *PresenceService
	messages *MessageService
	archiver Archiver
	opts     RoomOptions
	now      func() time.Time
}

// NewRoomService 创建 RoomService。rooms 和 archiver 可以为 nil。
func NewRoomService(
	state repository.StateRepository,
	rooms repository.RoomRepository,
	presence *PresenceService,
	messages *MessageService,
	archiver Archiver,
	opts RoomOptions,
) *RoomService {
	if state == nil || presence == nil || messages == nil {
		panic("StateRepository, PresenceService and MessageService cannot be nil for RoomService")
	}
	now := opts.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &RoomService{
		state:    state,
		rooms:    rooms,
		presence: presence,
		messages: messages,
		archiver: archiver,
		opts:     opts,
		now:      now,
	}
}

// CreateRoom 创建一个新房间，创建者自动成为第一个成员并上线。
// maxParticipants 为 0 时使用默认值。
func (s *RoomService) CreateRoom(ctx context.Context, userName string, durationMinutes, maxParticipants int) (*domain.Room, error) {
	name, err := validateUserName(userName)
	if err != nil {
		return nil, err
	}
	if err := validateDuration(durationMinutes); err != nil {
		return nil, err
	}
	capacity, err := normalizeParticipants(maxParticipants)
	if err != nil {
		return nil, err
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_name": name, "operation": "create_room"})

	code, err := s.allocateRoomCode(ctx)
	if err != nil {
		if errors.Is(err, ErrCodeAllocation) {
			logCtx.WithError(err).Error("Failed to allocate room code")
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to check room code uniqueness")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("room_code", code)

	now := s.now()
	ttl := time.Duration(durationMinutes) * time.Minute
	room := &domain.Room{
		Code:              code,
		Creator:           name,
		Participants:      []string{name},
		CreatedAt:         now,
		ExpiresAt:         now.Add(ttl),
		Duration:          durationMinutes,
		ParticipantsCount: capacity,
		MessageCount:      0,
		IsActive:          true,
	}

	if err := s.state.SaveRoom(ctx, room, ttl); err != nil {
		logCtx.WithError(err).Error("Failed to save room to cache")
		return nil, ErrInternalServer
	}
	if err := s.presence.MarkOnline(ctx, code, name, ttl); err != nil {
		logCtx.WithError(err).Error("Failed to add creator to presence set")
		return nil, ErrInternalServer
	}
	if s.archiver != nil {
		s.archiver.ArchiveRoom(ctx, *room)
	}

	metrics.RoomsCreated.Inc()
	logCtx.WithField("expires_at", room.ExpiresAt).Info("Room created successfully")
	return room, nil
}

// GetRoom 读取房间。缓存未命中时回退到持久化存储，只返回未过期的房间并回填缓存。
func (s *RoomService) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "operation": "get_room"})

	room, err := s.state.GetRoom(ctx, code)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repository.ErrRoomNotFound) {
		logCtx.WithError(err).Error("Failed to read room from cache")
		return nil, ErrInternalServer
	}
	if s.rooms == nil {
		return nil, ErrRoomNotFound
	}

	room, err = s.rooms.FindByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.WithError(err).Warn("Failed to read room from durable store")
		}
		return nil, ErrRoomNotFound
	}
	now := s.now()
	if !room.IsLive(now) {
		return nil, ErrRoomNotFound
	}

	if err := s.state.SaveRoom(ctx, room, room.ExpiresAt.Sub(now)); err != nil {
		logCtx.WithError(err).Warn("Failed to repopulate room cache")
	} else {
		logCtx.Debug("Room cache repopulated from durable store")
	}
	return room, nil
}

// GetRoomInfo 返回房间、剩余秒数、在线用户和实时消息数
func (s *RoomService) GetRoomInfo(ctx context.Context, code string) (*domain.RoomInfo, error) {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	ttl, err := s.state.RoomTTL(ctx, code)
	if err != nil {
		logrus.WithField("room_code", code).WithError(err).Error("Failed to read room TTL")
		return nil, ErrInternalServer
	}
	remaining := int64(ttl / time.Second)
	if ttl <= 0 {
		remaining = int64(room.ExpiresAt.Sub(s.now()) / time.Second)
		if remaining < 0 {
			remaining = 0
		}
	}

	online, err := s.presence.OnlineUsers(ctx, code)
	if err != nil {
		return nil, err
	}
	count, err := s.messages.CountMessages(ctx, code)
	if err != nil {
		return nil, err
	}
	room.MessageCount = count

	return &domain.RoomInfo{
		Room:             *room,
		RemainingSeconds: remaining,
		OnlineUsers:      online,
	}, nil
}

// JoinRoom 把用户加入房间。已是成员时只刷新在线状态。
func (s *RoomService) JoinRoom(ctx context.Context, code, userName string) (*domain.Room, error) {
	code, err := validateRoomCode(code)
	if err != nil {
		return nil, err
	}
	name, err := validateUserName(userName)
	if err != nil {
		return nil, err
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "user_name": name, "operation": "join_room"})

	if s.opts.StrictJoin {
		locked, err := s.state.TryLockRoom(ctx, code, joinLockLease)
		if err != nil {
			logCtx.WithError(err).Error("Failed to acquire room lock")
			return nil, ErrInternalServer
		}
		if !locked {
			metrics.RoomJoins.WithLabelValues("busy").Inc()
			return nil, ErrRoomBusy
		}
		defer func() {
			if err := s.state.UnlockRoom(ctx, code); err != nil {
				logCtx.WithError(err).Warn("Failed to release room lock")
			}
		}()
	}

	room, err := s.GetRoom(ctx, code)
	if err != nil {
		metrics.RoomJoins.WithLabelValues("not_found").Inc()
		return nil, err
	}

	if !room.HasParticipant(name) {
		if room.IsFull() {
			metrics.RoomJoins.WithLabelValues("full").Inc()
			logCtx.WithField("capacity", room.ParticipantsCount).Info("Join rejected: room is full")
			return nil, ErrRoomFull
		}
		room.Participants = append(room.Participants, name)
	}

	ttl, err := s.state.RoomTTL(ctx, code)
	if err != nil {
		logCtx.WithError(err).Error("Failed to read room TTL")
		return nil, ErrInternalServer
	}
	if ttl <= 0 {
		metrics.RoomJoins.WithLabelValues("expired").Inc()
		return nil, ErrRoomExpired
	}

	if err := s.state.SaveRoom(ctx, room, ttl); err != nil {
		logCtx.WithError(err).Error("Failed to save room to cache")
		return nil, ErrInternalServer
	}
	if err := s.presence.MarkOnline(ctx, code, name, ttl); err != nil {
		logCtx.WithError(err).Error("Failed to add user to presence set")
		return nil, ErrInternalServer
	}
	if s.archiver != nil {
		s.archiver.ArchiveParticipant(ctx, code, name, true, s.now())
	}

	metrics.RoomJoins.WithLabelValues("ok").Inc()
	logCtx.Info("User joined room successfully")
	return room, nil
}

// LeaveRoom 只移除在线状态，成员资格保留。
func (s *RoomService) LeaveRoom(ctx context.Context, code, userName string) error {
	code, err := validateRoomCode(code)
	if err != nil {
		return err
	}
	name, err := validateUserName(userName)
	if err != nil {
		return err
	}
	if err := s.presence.MarkOffline(ctx, code, name); err != nil {
		logrus.WithFields(logrus.Fields{"room_code": code, "user_name": name}).WithError(err).Error("Failed to remove user from presence set")
		return ErrInternalServer
	}
	if s.archiver != nil {
		s.archiver.ArchiveParticipant(ctx, code, name, false, s.now())
	}
	return nil
}

// ExtendRoomTime 延长房间时间，三个缓存 key 的 TTL 同步更新。返回新的过期时间。
func (s *RoomService) ExtendRoomTime(ctx context.Context, code string, additionalMinutes int) (time.Time, error) {
	code, err := validateRoomCode(code)
	if err != nil {
		return time.Time{}, err
	}
	if additionalMinutes < 1 {
		return time.Time{}, newValidationError("minutes", "must be at least 1")
	}
	if s.opts.MaxExtendMinutes > 0 && additionalMinutes > s.opts.MaxExtendMinutes {
		return time.Time{}, newValidationError("minutes", "exceeds the per-extension limit")
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "operation": "extend_room"})

	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return time.Time{}, err
	}
	newDuration := room.Duration + additionalMinutes
	if s.opts.MaxRoomLifetimeMinutes > 0 && newDuration > s.opts.MaxRoomLifetimeMinutes {
		return time.Time{}, newValidationError("minutes", "exceeds the maximum room lifetime")
	}

	ttl, err := s.state.RoomTTL(ctx, code)
	if err != nil {
		logCtx.WithError(err).Error("Failed to read room TTL")
		return time.Time{}, ErrInternalServer
	}
	if ttl <= 0 {
		return time.Time{}, ErrRoomExpired
	}

	extra := time.Duration(additionalMinutes) * time.Minute
	newTTL := ttl + extra
	room.ExpiresAt = room.ExpiresAt.Add(extra)
	room.Duration = newDuration

	if err := s.state.SaveRoom(ctx, room, newTTL); err != nil {
		logCtx.WithError(err).Error("Failed to save extended room")
		return time.Time{}, ErrInternalServer
	}
	if err := s.state.ExpireRoom(ctx, code, newTTL); err != nil {
		logCtx.WithError(err).Error("Failed to extend presence and message TTL")
		return time.Time{}, ErrInternalServer
	}
	if s.archiver != nil {
		s.archiver.ArchiveExpiry(ctx, code, room.ExpiresAt, room.Duration)
	}

	logCtx.WithFields(logrus.Fields{"added_minutes": additionalMinutes, "expires_at": room.ExpiresAt}).Info("Room extended")
	return room.ExpiresAt, nil
}

// RoomExists 缓存中存在，或持久化存储中有未过期的记录
func (s *RoomService) RoomExists(ctx context.Context, code string) bool {
	exists, err := s.state.RoomExists(ctx, code)
	if err != nil {
		logrus.WithField("room_code", code).WithError(err).Warn("Failed to check room in cache")
	}
	if exists {
		return true
	}
	if s.rooms == nil {
		return false
	}
	room, err := s.rooms.FindByCode(ctx, code)
	if err != nil {
		return false
	}
	return room.IsLive(s.now())
}

// allocateRoomCode 生成一个在缓存和持久化存储中都未被占用的房间码
func (s *RoomService) allocateRoomCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateRoomCode()
		if err != nil {
			return "", err
		}
		exists, err := s.state.RoomExists(ctx, code)
		if err != nil {
			return "", err
		}
		if exists {
			logrus.WithField("room_code", code).Warnf("Generated room code already exists, retrying (attempt %d)", attempt+1)
			continue
		}
		if s.rooms != nil {
			taken, err := s.rooms.IsCodeExists(ctx, code)
			if err != nil {
				logrus.WithField("room_code", code).WithError(err).Warn("Durable store check failed, relying on cache only")
			} else if taken {
				logrus.WithField("room_code", code).Warnf("Room code taken in durable store, retrying (attempt %d)", attempt+1)
				continue
			}
		}
		return code, nil
	}
	return "", ErrCodeAllocation
}
