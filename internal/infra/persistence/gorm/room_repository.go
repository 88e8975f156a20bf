package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ephemeral-chat/internal/domain"
	"ephemeral-chat/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// Create 在一个事务中写入房间和初始成员
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
			return err
		}
		for _, name := range room.Participants {
			p := domain.Participant{
				RoomCode:   room.Code,
				UserName:   name,
				JoinedAt:   room.CreatedAt,
				IsOnline:   true,
				LastSeenAt: room.CreatedAt,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room %s: %w", room.Code, err)
	}
	return nil
}

// FindByCode 根据房间码查找房间，并按加入顺序填充成员列表
func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code '%s': %w", code, err)
	}

	var participants []domain.Participant
	err = r.db.WithContext(ctx).
		Where("room_code = ?", code).
		Order("joined_at ASC").Order("id ASC").
		Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find participants of room '%s': %w", code, err)
	}
	room.Participants = make([]string, 0, len(participants))
	for _, p := range participants {
		room.Participants = append(room.Participants, p.UserName)
	}
	return &room, nil
}

// IsCodeExists 检查房间码是否已被占用
func (r *GormRoomRepository) IsCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by code '%s': %w", code, err)
	}
	return count > 0, nil
}

// UpdateExpiry 更新过期时间和总时长
func (r *GormRoomRepository) UpdateExpiry(ctx context.Context, code string, expiresAt time.Time, duration int) error {
	result := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"expires_at": expiresAt,
			"duration":   duration,
			"is_active":  true,
		})
	if result.Error != nil {
		return fmt.Errorf("gorm: update expiry of room '%s': %w", code, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}

// UpdateMessageCount 更新消息数
func (r *GormRoomRepository) UpdateMessageCount(ctx context.Context, code string, count int64) error {
	err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("code = ?", code).
		Update("message_count", count).Error
	if err != nil {
		return fmt.Errorf("gorm: update message count of room '%s': %w", code, err)
	}
	return nil
}

// UpsertParticipant 按忽略大小写的用户名新增或更新成员
func (r *GormRoomRepository) UpsertParticipant(ctx context.Context, code, userName string, online bool, at time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Participant
		err := tx.Where("room_code = ? AND LOWER(user_name) = LOWER(?)", code, userName).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if !online {
				// 从未加入过的用户离开，不需要记录
				return nil
			}
			return tx.Create(&domain.Participant{
				RoomCode:   code,
				UserName:   userName,
				JoinedAt:   at,
				IsOnline:   true,
				LastSeenAt: at,
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&existing).Updates(map[string]interface{}{
			"is_online":    online,
			"last_seen_at": at,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("gorm: upsert participant %q of room '%s': %w", userName, code, err)
	}
	return nil
}

// FindExpired 查询 expires_at < now 的房间
func (r *GormRoomRepository) FindExpired(ctx context.Context, now time.Time) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).Where("expires_at < ?", now).Order("expires_at ASC").Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find expired rooms: %w", err)
	}
	return rooms, nil
}

// MarkInactive 将过期但仍标记为活跃的房间置为不活跃
func (r *GormRoomRepository) MarkInactive(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("expires_at < ? AND is_active = ?", now, true).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: mark inactive rooms: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteByCode 在一个事务中依次删除消息、成员和房间。
// SQLite 默认不启用外键，所以不能只依赖级联删除。
func (r *GormRoomRepository) DeleteByCode(ctx context.Context, code string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_code = ?", code).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_code = ?", code).Delete(&domain.Participant{}).Error; err != nil {
			return err
		}
		return tx.Where("code = ?", code).Delete(&domain.Room{}).Error
	})
	if err != nil {
		return fmt.Errorf("gorm: delete room '%s': %w", code, err)
	}
	return nil
}
