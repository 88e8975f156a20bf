package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/service"
)

// CleanupHandler 手动触发过期房间清理，路由需要 CronAuth 保护
type CleanupHandler struct {
	sweeper *service.SweepService
}

// NewCleanupHandler 创建 CleanupHandler 实例
func NewCleanupHandler(sweeper *service.SweepService) *CleanupHandler {
	if sweeper == nil {
		panic("SweepService cannot be nil for CleanupHandler")
	}
	return &CleanupHandler{sweeper: sweeper}
}

// Cleanup POST /api/cron/cleanup。即使部分失败也返回 200 和结果。
func (h *CleanupHandler) Cleanup(c *gin.Context) {
	result, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Handler.Cleanup: sweep did not complete")
	}
	SuccessResponse(c, http.StatusOK, result)
}
