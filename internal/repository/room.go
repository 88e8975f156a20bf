package repository

import (
	"context"
	"time"

	"ephemeral-chat/internal/domain"
)

// RoomRepository 定义了房间和成员在持久化存储中的操作。
// 持久化存储只是缓存的尽力而为副本，在缓存未命中时作为回退读取来源。
type RoomRepository interface {
	// Create 在一个事务中写入房间和创建者成员记录。
	// 房间码已存在时返回 ErrDuplicateEntry。
	Create(ctx context.Context, room *domain.Room) error

	// FindByCode 根据房间码查找房间，Participants 按加入顺序填充。
	// 如果房间不存在，返回 ErrRoomNotFound。
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// IsCodeExists 检查房间码是否已存在（不论是否过期）。
	IsCodeExists(ctx context.Context, code string) (bool, error)

	// UpdateExpiry 更新房间的过期时间和总时长。
	UpdateExpiry(ctx context.Context, code string, expiresAt time.Time, duration int) error

	// UpdateMessageCount 更新房间记录中的消息数。
	UpdateMessageCount(ctx context.Context, code string, count int64) error

	// UpsertParticipant 按忽略大小写的用户名新增或更新成员记录，同时更新在线状态。
	UpsertParticipant(ctx context.Context, code, userName string, online bool, at time.Time) error

	// FindExpired 返回 expires_at 早于 now 的全部房间。
	FindExpired(ctx context.Context, now time.Time) ([]domain.Room, error)

	// MarkInactive 将已过期的房间标记为不活跃，返回受影响的行数。
	MarkInactive(ctx context.Context, now time.Time) (int64, error)

	// DeleteByCode 删除房间及其成员、消息。
	DeleteByCode(ctx context.Context, code string) error
}
