package domain

import (
	"regexp"
	"strings"
	"time"
)

// 房间相关的取值范围
const (
	RoomCodeLength          = 7 // "ABC-123"
	MinDurationMinutes      = 1
	MaxDurationMinutes      = 1440
	MinParticipants         = 2
	MaxParticipants         = 50
	DefaultParticipants     = 5
	MaxUserNameLength       = 50
	MaxMessageLength        = 1000
	MessageWindow           = 100 // 每个房间在缓存中保留的最近消息数
	DefaultMessagePageLimit = 50
)

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{3}-[A-Z0-9]{3}$`)

// ValidRoomCode 检查房间码是否符合 XXX-XXX 格式。
func ValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

// Room 表示一个限时聊天房间。
// 同一个结构体既是 Redis 中的 JSON 表示，也是数据库 rooms 表的模型。
type Room struct {
	ID                uint      `json:"-" gorm:"primaryKey"`
	Code              string    `json:"code" gorm:"uniqueIndex;size:7;not null"`
	Creator           string    `json:"creator" gorm:"size:100;not null"`
	Participants      []string  `json:"participants" gorm:"-"` // 按加入顺序，只增不减
	CreatedAt         time.Time `json:"createdAt" gorm:"not null"`
	ExpiresAt         time.Time `json:"expiresAt" gorm:"index;not null"`
	Duration          int       `json:"duration" gorm:"not null"` // 分钟
	ParticipantsCount int       `json:"participantsCount" gorm:"not null;default:5"`
	MessageCount      int64     `json:"messageCount" gorm:"not null;default:0"`
	IsActive          bool      `json:"-" gorm:"index;not null;default:true"`

	// 仅用于建表时声明外键级联
	ParticipantRows []Participant `json:"-" gorm:"foreignKey:RoomCode;references:Code;constraint:OnDelete:CASCADE"`
	MessageRows     []Message     `json:"-" gorm:"foreignKey:RoomCode;references:Code;constraint:OnDelete:CASCADE"`
}

// IsLive 判断房间在给定时间点是否仍然有效。
func (r *Room) IsLive(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// HasParticipant 忽略大小写检查用户是否已是房间成员。
func (r *Room) HasParticipant(userName string) bool {
	for _, p := range r.Participants {
		if strings.EqualFold(p, userName) {
			return true
		}
	}
	return false
}

// IsFull 房间成员数是否已达到上限。
func (r *Room) IsFull() bool {
	return len(r.Participants) >= r.ParticipantsCount
}

// RoomInfo 在 Room 基础上附加剩余时间、在线用户和实时消息数。
type RoomInfo struct {
	Room
	RemainingSeconds int64    `json:"remainingSeconds"`
	OnlineUsers      []string `json:"onlineUsers"`
}
