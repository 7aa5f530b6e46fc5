package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/pumproom/pkg/errtrack"
	"github.com/d60-Lab/pumproom/pkg/logger"
	"github.com/d60-Lab/pumproom/pkg/response"
)

// ContextWatcherID gin 上下文中的当前 watcher ID
const (
	ContextWatcherID = "watcher_id"
	ContextUsername  = "username"
)

// TokenParser 解析 bearer token，返回 watcher ID 和用户名
type TokenParser func(token string) (watcherID, username string, err error)

// Logger 请求日志
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

// Recovery 捕获 panic，上报 Sentry 后返回 500
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := errtrack.CapturePanic(r, map[string]string{"path": c.FullPath(), "method": c.Request.Method})
				logger.Error("panic recovered", zap.String("path", c.Request.URL.Path), zap.Error(err))
				c.Abort()
				response.InternalError(c, err)
			}
		}()
		c.Next()
	}
}

// Auth 校验 Authorization: Bearer <token>
func Auth(parse TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}
		id, username, err := parse(token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextWatcherID, id)
		c.Set(ContextUsername, username)
		c.Next()
	}
}

// WatcherID 取当前登录的 watcher
func WatcherID(c *gin.Context) string {
	return c.GetString(ContextWatcherID)
}
