package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"ephemeral-chat/internal/domain"
)

// RedisNotifier 通过 Redis PUBLISH 把消息广播到 chat-<code> 频道，
// 所有实例上的 hub 通过 PSUBSCRIBE chat-* 接收。
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier 创建 RedisNotifier
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	if client == nil {
		panic("redis client cannot be nil for RedisNotifier")
	}
	return &RedisNotifier{client: client}
}

// NotifyMessage 发布 incoming-message 事件
func (n *RedisNotifier) NotifyMessage(ctx context.Context, code string, msg domain.Message) error {
	env := domain.Envelope{
		Channel: domain.ChannelName(code),
		Event:   domain.EventIncomingMessage,
		Data:    msg,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("notify: marshal envelope for room %s: %w", code, err)
	}
	if err := n.client.Publish(ctx, env.Channel, payload).Err(); err != nil {
		return fmt.Errorf("notify: publish to %s: %w", env.Channel, err)
	}
	return nil
}
