package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/domain"
	"ephemeral-chat/internal/repository"
)

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "chat:"
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---
func (r *RedisStateRepository) roomKey(code string) string {
	return r.keyPrefix + "room:" + code
}

func (r *RedisStateRepository) onlineKey(code string) string {
	return r.keyPrefix + "online:" + code
}

func (r *RedisStateRepository) messagesKey(code string) string {
	return r.keyPrefix + "messages:" + code
}

func (r *RedisStateRepository) lockKey(code string) string {
	return r.keyPrefix + "lock:" + code
}

// --- Room Record ---

// SaveRoom 写入房间记录 (SET EX)
func (r *RedisStateRepository) SaveRoom(ctx context.Context, room *domain.Room, ttl time.Duration) error {
	key := r.roomKey(room.Code)
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal room %s: %w", room.Code, err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to save room %s on key %s: %w", room.Code, key, err)
	}
	return nil
}

// GetRoom 读取房间记录
func (r *RedisStateRepository) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	key := r.roomKey(code)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("redis: failed to get room %s from %s: %w", code, key, err)
	}
	var room domain.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal room %s from %s: %w", code, key, err)
	}
	return &room, nil
}

// RoomExists 检查房间记录是否存在
func (r *RedisStateRepository) RoomExists(ctx context.Context, code string) (bool, error) {
	n, err := r.client.Exists(ctx, r.roomKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check room %s existence: %w", code, err)
	}
	return n == 1, nil
}

// RoomTTL 返回房间记录的剩余时间。key 不存在时 Redis 返回 -2，没有过期时间时返回 -1。
func (r *RedisStateRepository) RoomTTL(ctx context.Context, code string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, r.roomKey(code)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to get ttl for room %s: %w", code, err)
	}
	return ttl, nil
}

// ExpireRoom 在一个事务管道中刷新房间三个 key 的过期时间
func (r *RedisStateRepository) ExpireRoom(ctx context.Context, code string, ttl time.Duration) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, r.roomKey(code), ttl)
		pipe.Expire(ctx, r.onlineKey(code), ttl)
		pipe.Expire(ctx, r.messagesKey(code), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to expire keys for room %s: %w", code, err)
	}
	return nil
}

// DeleteRoom 删除房间相关的全部 key
func (r *RedisStateRepository) DeleteRoom(ctx context.Context, code string) error {
	err := r.client.Del(ctx, r.roomKey(code), r.onlineKey(code), r.messagesKey(code), r.lockKey(code)).Err()
	if err != nil {
		return fmt.Errorf("redis: failed to delete keys for room %s: %w", code, err)
	}
	return nil
}

// ListRoomCodes 使用 SCAN 遍历 room:* key
func (r *RedisStateRepository) ListRoomCodes(ctx context.Context) ([]string, error) {
	prefix := r.roomKey("")
	codes := make([]string, 0)
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		codes = append(codes, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: failed to scan room keys with prefix %s: %w", prefix, err)
	}
	return codes, nil
}

// --- Presence ---

// AddOnlineUser 加入在线集合并刷新过期时间
func (r *RedisStateRepository) AddOnlineUser(ctx context.Context, code, userName string, ttl time.Duration) error {
	key := r.onlineKey(code)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, userName)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to add online user %q to %s: %w", userName, key, err)
	}
	return nil
}

// RemoveOnlineUser 移出在线集合
func (r *RedisStateRepository) RemoveOnlineUser(ctx context.Context, code, userName string) error {
	key := r.onlineKey(code)
	if err := r.client.SRem(ctx, key, userName).Err(); err != nil {
		return fmt.Errorf("redis: failed to remove online user %q from %s: %w", userName, key, err)
	}
	return nil
}

// IsUserOnline 检查在线集合成员
func (r *RedisStateRepository) IsUserOnline(ctx context.Context, code, userName string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.onlineKey(code), userName).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check online user %q in room %s: %w", userName, code, err)
	}
	return ok, nil
}

// OnlineUsers 返回在线集合全部成员
func (r *RedisStateRepository) OnlineUsers(ctx context.Context, code string) ([]string, error) {
	users, err := r.client.SMembers(ctx, r.onlineKey(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get online users for room %s: %w", code, err)
	}
	return users, nil
}

// --- Message History ---

// PushMessage LPUSH + LTRIM + EXPIRE，列表头部是最新消息
func (r *RedisStateRepository) PushMessage(ctx context.Context, code string, msg domain.Message, window int, ttl time.Duration) error {
	key := r.messagesKey(code)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal message %s: %w", msg.ID, err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(window-1))
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to push message to %s: %w", key, err)
	}
	return nil
}

// RecentMessages 返回最近 limit 条消息 (从新到旧)
func (r *RedisStateRepository) RecentMessages(ctx context.Context, code string, limit int) ([]domain.Message, error) {
	key := r.messagesKey(code)
	raws, err := r.client.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get recent messages for room %s from %s: %w", code, key, err)
	}
	messages := make([]domain.Message, 0, len(raws))
	for _, raw := range raws {
		var msg domain.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			logrus.Warnf("redis: failed to unmarshal message for room %s: %v, data: %s", code, err, raw)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// MessageCount 返回列表长度
func (r *RedisStateRepository) MessageCount(ctx context.Context, code string) (int64, error) {
	n, err := r.client.LLen(ctx, r.messagesKey(code)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to get message count for room %s: %w", code, err)
	}
	return n, nil
}

// ReplaceMessages 用 DEL + RPUSH 重建列表，保持头部为最新消息
func (r *RedisStateRepository) ReplaceMessages(ctx context.Context, code string, newestFirst []domain.Message, ttl time.Duration) error {
	key := r.messagesKey(code)
	values := make([]interface{}, 0, len(newestFirst))
	for _, msg := range newestFirst {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("redis: failed to marshal message %s: %w", msg.ID, err)
		}
		values = append(values, data)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to replace messages on %s: %w", key, err)
	}
	return nil
}

// --- Locking & Rate Limiting ---

// TryLockRoom SET NX 获取租约
func (r *RedisStateRepository) TryLockRoom(ctx context.Context, code string, lease time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.lockKey(code), "1", lease).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to lock room %s: %w", code, err)
	}
	return ok, nil
}

// UnlockRoom 释放租约
func (r *RedisStateRepository) UnlockRoom(ctx context.Context, code string) error {
	if err := r.client.Del(ctx, r.lockKey(code)).Err(); err != nil {
		return fmt.Errorf("redis: failed to unlock room %s: %w", code, err)
	}
	return nil
}

// CheckRateLimit 固定窗口计数: 窗口内第一次 INCR 时设置过期时间，之后的请求不再刷新窗口。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.keyPrefix + "ratelimit:" + key
	count, err := r.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to incr rate limit counter %s: %w", fullKey, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return false, fmt.Errorf("redis: failed to set rate limit window on %s: %w", fullKey, err)
		}
	} else if ttl, err := r.client.TTL(ctx, fullKey).Result(); err == nil && ttl == -1 {
		// 上一次 EXPIRE 失败时计数器没有过期时间，补上，避免永久限流
		_ = r.client.Expire(ctx, fullKey, window).Err()
	}
	return count > int64(limit), nil
}
