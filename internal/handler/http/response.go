package http

import (
	"github.com/gin-gonic/gin"

	"ephemeral-chat/internal/dto"
)

func ErrorResponse(c *gin.Context, code int, kind, message string) {
	c.JSON(code, dto.ErrorResponse{Error: message, Kind: kind})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}
