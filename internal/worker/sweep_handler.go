package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/service"
)

// SweepHandler 处理周期性的过期房间清理任务
type SweepHandler struct {
	sweeper *service.SweepService
}

// NewSweepHandler 创建 Handler 实例
func NewSweepHandler(sweeper *service.SweepService) *SweepHandler {
	if sweeper == nil {
		panic("SweepService cannot be nil for SweepHandler")
	}
	return &SweepHandler{sweeper: sweeper}
}

// ProcessTask 实现 asynq.Handler 接口。单个房间删除失败只记录，不让整个任务失败。
func (h *SweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)
	logCtx.Info("Processing expired room sweep task...")

	result, err := h.sweeper.Sweep(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Sweep failed")
		return err
	}
	if len(result.Errors) > 0 {
		logCtx.WithField("errors", result.Errors).Warn("Sweep finished with errors")
	}
	logCtx.WithFields(logrus.Fields{"deleted_count": result.DeletedCount, "purged_count": result.PurgedCount}).Info("Sweep task processed successfully")
	return nil
}
