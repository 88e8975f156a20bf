package service

import (
	"context"

	"ephemeral-chat/internal/domain"
)

// Notifier 把新消息广播给房间的订阅者。发送是尽力而为的，失败不回滚消息写入。
type Notifier interface {
	NotifyMessage(ctx context.Context, code string, msg domain.Message) error
}
