package domain

import "time"

// 广播相关常量
const (
	EventIncomingMessage = "incoming-message"
	channelPrefix        = "chat-"
)

// ChannelName 返回房间对应的广播频道名。
func ChannelName(roomCode string) string {
	return channelPrefix + roomCode
}

// RoomCodeFromChannel 从频道名中解析房间码，格式不符时返回 false。
func RoomCodeFromChannel(channel string) (string, bool) {
	if len(channel) <= len(channelPrefix) || channel[:len(channelPrefix)] != channelPrefix {
		return "", false
	}
	return channel[len(channelPrefix):], true
}

// Message 表示房间中的一条聊天消息。
type Message struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	RoomCode  string    `json:"-" gorm:"size:7;index;not null"`
	User      string    `json:"user" gorm:"column:user_name;size:100;not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"index;not null"`
}

// Envelope 是推送给订阅者的消息封装。
type Envelope struct {
	Channel string  `json:"channel"`
	Event   string  `json:"event"`
	Data    Message `json:"data"`
}
