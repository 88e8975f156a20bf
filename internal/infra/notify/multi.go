package notify

import (
	"context"
	"errors"

	"ephemeral-chat/internal/domain"
)

// MessageNotifier 与 service.Notifier 方法集相同
type MessageNotifier interface {
	NotifyMessage(ctx context.Context, code string, msg domain.Message) error
}

// Multi 依次调用所有 notifier，单个失败不影响其他。
type Multi []MessageNotifier

// NotifyMessage 返回所有失败的合并错误
func (m Multi) NotifyMessage(ctx context.Context, code string, msg domain.Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyMessage(ctx, code, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
