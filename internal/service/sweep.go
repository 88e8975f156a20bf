package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/metrics"
	"ephemeral-chat/internal/repository"
)

// SweepResult 是一次清理的结果
type SweepResult struct {
	DeletedCount int      `json:"deletedCount"`
	PurgedCount  int      `json:"purgedCount"` // 没有过期时间的缓存房间
	Errors       []string `json:"errors"`
}

// SweepService 从持久化存储中删除已过期的房间，并清理缓存中残留的房间 key。
// 仍有 TTL 的缓存房间保持不动，由 Redis 自行过期。
type SweepService struct {
	rooms repository.RoomRepository  // 可选
	state repository.StateRepository // 可选
	now   func() time.Time
}

// NewSweepService rooms 和 state 都可以为 nil，为 nil 的一侧不做清理
func NewSweepService(rooms repository.RoomRepository, state repository.StateRepository, clock func() time.Time) *SweepService {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &SweepService{rooms: rooms, state: state, now: clock}
}

// Sweep 先把过期房间标记为不活跃，再逐个删除。单个房间删除失败不会中止整个清理。
// 之后扫描缓存，删除没有过期时间的房间 key。
func (s *SweepService) Sweep(ctx context.Context) (SweepResult, error) {
	result := SweepResult{Errors: []string{}}
	if s.rooms != nil {
		if err := s.sweepDurable(ctx, &result); err != nil {
			return result, err
		}
	}
	if s.state != nil {
		s.purgeUnboundedCache(ctx, &result)
	}
	return result, nil
}

func (s *SweepService) sweepDurable(ctx context.Context, result *SweepResult) error {
	now := s.now()
	logCtx := logrus.WithField("operation", "sweep")

	marked, err := s.rooms.MarkInactive(ctx, now)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to mark expired rooms inactive")
		result.Errors = append(result.Errors, fmt.Sprintf("failed to mark inactive rooms: %v", err))
	} else if marked > 0 {
		logCtx.WithField("count", marked).Debug("Marked expired rooms inactive")
	}

	expired, err := s.rooms.FindExpired(ctx, now)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list expired rooms")
		result.Errors = append(result.Errors, fmt.Sprintf("error during cleanup: %v", err))
		return fmt.Errorf("list expired rooms: %w", err)
	}
	logCtx.WithField("count", len(expired)).Info("Found expired rooms to clean up")

	for _, room := range expired {
		if err := s.rooms.DeleteByCode(ctx, room.Code); err != nil {
			msg := fmt.Sprintf("failed to delete room %s: %v", room.Code, err)
			result.Errors = append(result.Errors, msg)
			logCtx.WithField("room_code", room.Code).WithError(err).Error("Failed to delete expired room")
			continue
		}
		result.DeletedCount++
		metrics.RoomsSwept.Inc()
		logCtx.WithField("room_code", room.Code).Debug("Deleted expired room")
		s.dropCacheIfExpired(ctx, room.Code, result)
	}
	return nil
}

// dropCacheIfExpired 删除已删除房间残留的缓存 key (锁、在线集合等)。
// 缓存中房间仍有剩余时间时说明延长还没有同步到持久化存储，不删除。
func (s *SweepService) dropCacheIfExpired(ctx context.Context, code string, result *SweepResult) {
	if s.state == nil {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"operation": "sweep", "room_code": code})
	ttl, err := s.state.RoomTTL(ctx, code)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to read cache TTL of swept room")
		return
	}
	if ttl > 0 {
		logCtx.WithField("ttl", ttl).Warn("Swept room is still live in cache, keeping cache keys")
		return
	}
	if err := s.state.DeleteRoom(ctx, code); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to delete cache keys of room %s: %v", code, err))
		logCtx.WithError(err).Warn("Failed to delete cache keys of swept room")
	}
}

// purgeUnboundedCache 删除没有过期时间的房间记录，这类 key 永远不会被 Redis 回收
func (s *SweepService) purgeUnboundedCache(ctx context.Context, result *SweepResult) {
	logCtx := logrus.WithField("operation", "sweep_cache")
	codes, err := s.state.ListRoomCodes(ctx)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to scan cached rooms")
		result.Errors = append(result.Errors, fmt.Sprintf("failed to scan cached rooms: %v", err))
		return
	}
	for _, code := range codes {
		ttl, err := s.state.RoomTTL(ctx, code)
		if err != nil || ttl != -1 {
			continue
		}
		if err := s.state.DeleteRoom(ctx, code); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to purge cached room %s: %v", code, err))
			logCtx.WithField("room_code", code).WithError(err).Warn("Failed to purge cached room without TTL")
			continue
		}
		result.PurgedCount++
		logCtx.WithField("room_code", code).Info("Purged cached room without TTL")
	}
}
