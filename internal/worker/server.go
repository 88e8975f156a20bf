package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/service"
	"ephemeral-chat/internal/tasks"
)

// WorkerServer 封装了 Asynq Worker Server 的启动和关闭逻辑
type WorkerServer struct {
	server  *asynq.Server
	log     *logrus.Entry
	archive *service.ArchiveService // 为 nil 时不注册归档任务
	sweeper *service.SweepService
}

// NewWorkerServer 创建一个新的 WorkerServer 实例
func NewWorkerServer(redisOpt asynq.RedisClientOpt, concurrency int, archive *service.ArchiveService, sweeper *service.SweepService, logger *logrus.Logger) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")
	if concurrency <= 0 {
		concurrency = 10
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				tasks.QueueDefault: 6,
				tasks.QueueLow:     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID, _ := asynq.GetTaskID(ctx)
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
			Logger: logEntry,
		},
	)

	return &WorkerServer{
		server:  server,
		log:     logEntry,
		archive: archive,
		sweeper: sweeper,
	}
}

// NewServeMux 注册任务处理器
func (ws *WorkerServer) NewServeMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	if ws.archive != nil {
		NewArchiveHandler(ws.archive).Register(mux)
	}
	if ws.sweeper != nil {
		mux.HandleFunc(tasks.TypeRoomSweep, NewSweepHandler(ws.sweeper).ProcessTask)
	}
	return mux
}

// Start 启动 Worker Server，非阻塞。信号处理由调用方负责。
func (ws *WorkerServer) Start() error {
	ws.log.Info("Worker server starting...")
	if err := ws.server.Start(ws.NewServeMux()); err != nil {
		if errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Info("Worker server already stopped.")
			return nil
		}
		ws.log.Errorf("Could not start worker server: %v", err)
		return err
	}
	return nil
}

// Shutdown 优雅地关闭 Worker Server
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
