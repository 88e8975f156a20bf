package repository

import (
	"context"

	"ephemeral-chat/internal/domain"
)

// MessageRepository 定义了消息在持久化存储中的归档和查询。
type MessageRepository interface {
	// Save 保存一条消息。相同 ID 重复保存视为成功（任务重试时可能发生）。
	Save(ctx context.Context, code string, msg domain.Message) error

	// Recent 返回房间最近 limit 条消息，按时间从新到旧排序。
	Recent(ctx context.Context, code string, limit int) ([]domain.Message, error)

	// CountByRoom 返回房间的消息总数。
	CountByRoom(ctx context.Context, code string) (int64, error)
}
