package repository

import (
	"context"
	"time"

	"ephemeral-chat/internal/domain"
)

// StateRepository 定义了房间在缓存中的实时状态操作，由 Redis 实现。
// 房间记录、在线集合、消息列表是三个独立的 key，TTL 需要由调用方保持一致。
type StateRepository interface {
	// === Room Record ===

	// SaveRoom 写入房间记录并设置过期时间。
	SaveRoom(ctx context.Context, room *domain.Room, ttl time.Duration) error

	// GetRoom 读取房间记录，不存在时返回 ErrRoomNotFound。
	GetRoom(ctx context.Context, code string) (*domain.Room, error)

	// RoomExists 检查房间记录是否存在。
	RoomExists(ctx context.Context, code string) (bool, error)

	// RoomTTL 返回房间记录剩余的生存时间。key 不存在或没有过期时间时返回值 <= 0。
	RoomTTL(ctx context.Context, code string) (time.Duration, error)

	// ExpireRoom 为房间记录、在线集合和消息列表统一设置新的过期时间。
	ExpireRoom(ctx context.Context, code string, ttl time.Duration) error

	// DeleteRoom 删除房间相关的全部 key。
	DeleteRoom(ctx context.Context, code string) error

	// ListRoomCodes 扫描当前缓存中所有存活的房间码。
	ListRoomCodes(ctx context.Context) ([]string, error)

	// === Presence ===

	// AddOnlineUser 将用户加入在线集合，并刷新集合的过期时间。
	AddOnlineUser(ctx context.Context, code, userName string, ttl time.Duration) error

	// RemoveOnlineUser 将用户移出在线集合，用户不在集合中不视为错误。
	RemoveOnlineUser(ctx context.Context, code, userName string) error

	// IsUserOnline 检查用户是否在在线集合中。
	IsUserOnline(ctx context.Context, code, userName string) (bool, error)

	// OnlineUsers 返回在线集合的全部成员。
	OnlineUsers(ctx context.Context, code string) ([]string, error)

	// === Message History ===

	// PushMessage 将消息放到列表头部，只保留最近 window 条，并设置列表过期时间。
	PushMessage(ctx context.Context, code string, msg domain.Message, window int, ttl time.Duration) error

	// RecentMessages 返回最近 limit 条消息，按从新到旧排序。
	RecentMessages(ctx context.Context, code string, limit int) ([]domain.Message, error)

	// MessageCount 返回缓存中的消息条数。
	MessageCount(ctx context.Context, code string) (int64, error)

	// ReplaceMessages 用给定消息（从新到旧）整体替换消息列表，用于回填缓存。
	ReplaceMessages(ctx context.Context, code string, newestFirst []domain.Message, ttl time.Duration) error

	// === Locking & Rate Limiting ===

	// TryLockRoom 尝试获取房间的短期互斥租约。
	TryLockRoom(ctx context.Context, code string, lease time.Duration) (bool, error)

	// UnlockRoom 释放房间互斥租约。
	UnlockRoom(ctx context.Context, code string) error

	// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
	// 返回 true 如果超限。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
