package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"ephemeral-chat/internal/domain"
)

// GormMessageRepository 是 MessageRepository 接口的 GORM 实现
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GormMessageRepository 实例
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMessageRepository")
	}
	return &GormMessageRepository{db: db}
}

// Save 保存消息，主键冲突视为已保存
func (r *GormMessageRepository) Save(ctx context.Context, code string, msg domain.Message) error {
	msg.RoomCode = code
	err := r.db.WithContext(ctx).Create(&msg).Error
	if err != nil {
		if isDuplicateEntryError(err) {
			return nil
		}
		return fmt.Errorf("gorm: save message %s for room '%s': %w", msg.ID, code, err)
	}
	return nil
}

// Recent 返回最近的 limit 条消息 (timestamp DESC)
func (r *GormMessageRepository) Recent(ctx context.Context, code string, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.WithContext(ctx).
		Where("room_code = ?", code).
		Order("timestamp DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find recent messages for room '%s': %w", code, err)
	}
	return messages, nil
}

// CountByRoom 统计房间消息总数
func (r *GormMessageRepository) CountByRoom(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Message{}).Where("room_code = ?", code).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count messages for room '%s': %w", code, err)
	}
	return count, nil
}
