package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ephemeral-chat/internal/domain"
)

// MigrateDB 创建或更新 rooms、participants、messages 三张表。
// rooms 必须先于另外两张表创建，外键引用 rooms.code。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	if err := db.AutoMigrate(&domain.Room{}); err != nil {
		logrus.Errorf("Failed to auto-migrate rooms table: %v", err)
		return fmt.Errorf("failed to migrate rooms table: %w", err)
	}
	if err := db.AutoMigrate(&domain.Participant{}, &domain.Message{}); err != nil {
		logrus.Errorf("Failed to auto-migrate participants/messages tables: %v", err)
		return fmt.Errorf("failed to migrate participants/messages tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
