package service

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/repository"
)

// PresenceService 维护房间的在线用户集合，集合的 TTL 与房间一致。
type PresenceService struct {
	state repository.StateRepository
}

// NewPresenceService 创建 PresenceService
func NewPresenceService(state repository.StateRepository) *PresenceService {
	if state == nil {
		panic("StateRepository cannot be nil for PresenceService")
	}
	return &PresenceService{state: state}
}

// MarkOnline 把用户加入在线集合并刷新集合 TTL
func (s *PresenceService) MarkOnline(ctx context.Context, code, userName string, ttl time.Duration) error {
	return s.state.AddOnlineUser(ctx, code, userName, ttl)
}

// MarkOffline 把用户移出在线集合
func (s *PresenceService) MarkOffline(ctx context.Context, code, userName string) error {
	return s.state.RemoveOnlineUser(ctx, code, userName)
}

// IsUserOnline 用户是否在线
func (s *PresenceService) IsUserOnline(ctx context.Context, code, userName string) (bool, error) {
	online, err := s.state.IsUserOnline(ctx, code, userName)
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_code": code, "user_name": userName}).WithError(err).Error("IsUserOnline: state error")
		return false, ErrInternalServer
	}
	return online, nil
}

// OnlineUsers 返回去重并排序后的在线用户
func (s *PresenceService) OnlineUsers(ctx context.Context, code string) ([]string, error) {
	members, err := s.state.OnlineUsers(ctx, code)
	if err != nil {
		logrus.WithField("room_code", code).WithError(err).Error("OnlineUsers: state error")
		return nil, ErrInternalServer
	}
	seen := make(map[string]struct{}, len(members))
	users := make([]string, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		users = append(users, m)
	}
	sort.Strings(users)
	return users, nil
}
