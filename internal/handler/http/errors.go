package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/service"
)

// HandleServiceError 把 service 层错误映射为 HTTP 状态码和错误分类
func HandleServiceError(c *gin.Context, err error) {
	kind := service.ErrorKind(err)
	switch kind {
	case service.KindValidation:
		ErrorResponse(c, http.StatusBadRequest, kind, err.Error())
	case service.KindNotFound:
		ErrorResponse(c, http.StatusNotFound, kind, err.Error())
	case service.KindGone:
		ErrorResponse(c, http.StatusGone, kind, err.Error())
	case service.KindForbidden:
		ErrorResponse(c, http.StatusForbidden, kind, err.Error())
	case service.KindConflict:
		ErrorResponse(c, http.StatusConflict, kind, err.Error())
	case service.KindAllocation:
		logrus.WithError(err).Error("Room code allocation exhausted")
		ErrorResponse(c, http.StatusInternalServerError, kind, err.Error())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, service.KindInternal, "An unexpected error occurred")
	}
}

// bindError 请求体无法解析
func bindError(c *gin.Context, err error) {
	logrus.WithError(err).WithField("path", c.FullPath()).Warn("Invalid request body")
	ErrorResponse(c, http.StatusBadRequest, service.KindValidation, "Invalid request body")
}
