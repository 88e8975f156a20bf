package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"ephemeral-chat/internal/domain"
)

// 任务类型
const (
	TypeRoomArchive        = "room:archive"
	TypeParticipantArchive = "participant:archive"
	TypeExpiryArchive      = "room:extend"
	TypeMessageArchive     = "message:archive"
	TypeRoomSweep          = "room:sweep"
)

// 队列
const (
	QueueDefault = "default"
	QueueLow     = "low"
)

// RoomArchivePayload 新建房间
type RoomArchivePayload struct {
	Room domain.Room `json:"room"`
}

// ParticipantArchivePayload 成员加入或离开
type ParticipantArchivePayload struct {
	RoomCode string    `json:"roomCode"`
	UserName string    `json:"userName"`
	Online   bool      `json:"online"`
	At       time.Time `json:"at"`
}

// ExpiryArchivePayload 房间延长
type ExpiryArchivePayload struct {
	RoomCode  string    `json:"roomCode"`
	ExpiresAt time.Time `json:"expiresAt"`
	Duration  int       `json:"duration"`
}

// MessageArchivePayload 新消息
type MessageArchivePayload struct {
	RoomCode string         `json:"roomCode"`
	Message  domain.Message `json:"message"`
}

// NewRoomArchiveTask 创建房间归档任务
func NewRoomArchiveTask(room domain.Room) (*asynq.Task, error) {
	return newTask(TypeRoomArchive, RoomArchivePayload{Room: room})
}

// NewParticipantArchiveTask 创建成员归档任务
func NewParticipantArchiveTask(code, userName string, online bool, at time.Time) (*asynq.Task, error) {
	return newTask(TypeParticipantArchive, ParticipantArchivePayload{
		RoomCode: code,
		UserName: userName,
		Online:   online,
		At:       at,
	})
}

// NewExpiryArchiveTask 创建过期时间归档任务
func NewExpiryArchiveTask(code string, expiresAt time.Time, duration int) (*asynq.Task, error) {
	return newTask(TypeExpiryArchive, ExpiryArchivePayload{
		RoomCode:  code,
		ExpiresAt: expiresAt,
		Duration:  duration,
	})
}

// NewMessageArchiveTask 创建消息归档任务
func NewMessageArchiveTask(code string, msg domain.Message) (*asynq.Task, error) {
	return newTask(TypeMessageArchive, MessageArchivePayload{RoomCode: code, Message: msg})
}

// NewRoomSweepTask 创建清理过期房间的周期任务，没有 payload
func NewRoomSweepTask() *asynq.Task {
	return asynq.NewTask(TypeRoomSweep, nil, asynq.Queue(QueueLow), asynq.MaxRetry(1))
}

func newTask(typename string, payload interface{}) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, payloadBytes, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}
