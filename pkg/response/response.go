package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/pumproom/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func write(c *gin.Context, status int, message string, data any) {
	code := 0
	if status >= 400 {
		code = status
	}
	c.JSON(status, Response{Code: code, Message: message, Data: data})
}

func Success(c *gin.Context, data any) { write(c, http.StatusOK, "ok", data) }

func Created(c *gin.Context, data any) { write(c, http.StatusCreated, "created", data) }

func Accepted(c *gin.Context, data any) { write(c, http.StatusAccepted, "accepted", data) }

func BadRequest(c *gin.Context, message string) { write(c, http.StatusBadRequest, message, nil) }

func Unauthorized(c *gin.Context, message string) {
	write(c, http.StatusUnauthorized, message, nil)
}

func NotFound(c *gin.Context, message string) { write(c, http.StatusNotFound, message, nil) }

// Conflict data 可携带当前状态
func Conflict(c *gin.Context, message string, data any) {
	write(c, http.StatusConflict, message, data)
}

// InternalError 记录错误详情，对外只返回通用信息
func InternalError(c *gin.Context, err error) {
	logger.Error("internal error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	_ = c.Error(err)
	write(c, http.StatusInternalServerError, "internal server error", nil)
}
