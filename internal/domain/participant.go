package domain

import "time"

// Participant 是 participants 表的行，记录成员资格和最近一次在线状态。
type Participant struct {
	ID         uint      `gorm:"primaryKey"`
	RoomCode   string    `gorm:"size:7;index;not null"`
	UserName   string    `gorm:"size:100;index;not null"`
	JoinedAt   time.Time `gorm:"not null"`
	IsOnline   bool      `gorm:"index;not null;default:true"`
	LastSeenAt time.Time `gorm:"not null"`
}
