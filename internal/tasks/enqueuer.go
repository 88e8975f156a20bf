package tasks

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/domain"
	"ephemeral-chat/internal/metrics"
)

// TaskClient 是 asynq.Client 中用到的方法
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer 把持久化写入投递到 asynq 队列，由 worker 异步执行并在失败时重试。
// 实现了 service.Archiver。
type Enqueuer struct {
	client TaskClient
}

// NewEnqueuer 创建 Enqueuer
func NewEnqueuer(client TaskClient) *Enqueuer {
	if client == nil {
		panic("asynq client cannot be nil for Enqueuer")
	}
	return &Enqueuer{client: client}
}

func (e *Enqueuer) ArchiveRoom(ctx context.Context, room domain.Room) {
	task, err := NewRoomArchiveTask(room)
	e.enqueue(ctx, task, err, room.Code)
}

func (e *Enqueuer) ArchiveParticipant(ctx context.Context, code, userName string, online bool, at time.Time) {
	task, err := NewParticipantArchiveTask(code, userName, online, at)
	e.enqueue(ctx, task, err, code)
}

func (e *Enqueuer) ArchiveExpiry(ctx context.Context, code string, expiresAt time.Time, duration int) {
	task, err := NewExpiryArchiveTask(code, expiresAt, duration)
	e.enqueue(ctx, task, err, code)
}

func (e *Enqueuer) ArchiveMessage(ctx context.Context, code string, msg domain.Message) {
	task, err := NewMessageArchiveTask(code, msg)
	e.enqueue(ctx, task, err, code)
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task, buildErr error, code string) {
	logCtx := logrus.WithField("room_code", code)
	if buildErr != nil {
		metrics.ArchiveFailures.WithLabelValues("enqueue").Inc()
		logCtx.WithError(buildErr).Error("Failed to build archive task payload")
		return
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		metrics.ArchiveFailures.WithLabelValues("enqueue").Inc()
		logCtx.WithError(err).WithField("task_type", task.Type()).Error("Failed to enqueue archive task")
		return
	}
	logCtx.WithFields(logrus.Fields{"task_id": info.ID, "task_type": task.Type()}).Debug("Archive task enqueued")
}
