// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"stenagrafist-go/internal/middleware"
	"stenagrafist-go/internal/service"
	"stenagrafist-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// statusFor 把业务错误分类映射为 HTTP 状态码，未列出的分类一律 500。
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage 返回可以暴露给客户端的错误描述，内部细节只写日志。
func publicMessage(err error, status int) string {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, service.ErrInvalidStatus):
		return "Invalid status"
	case errors.Is(err, service.ErrInvalidToken):
		return "Invalid token"
	}
	return http.StatusText(status)
}

// abortWithError 记录错误并以 status 响应。
func abortWithError(c *gin.Context, status int, err error) {
	fields := []interface{}{
		"status", status,
		"path", c.FullPath(),
		"requestID", c.GetString(middleware.RequestIDKey),
		"error", err,
	}
	var svcErr *service.Error
	if errors.As(err, &svcErr) && svcErr.TaskID != 0 {
		fields = append(fields, "taskID", svcErr.TaskID)
	}
	if status >= http.StatusInternalServerError {
		log.Errorw("请求处理失败", fields...)
	} else {
		log.Warnw("请求被拒绝", fields...)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"code":    status,
		"message": publicMessage(err, status),
	})
}

// respondServiceError 按错误分类选择状态码。
func respondServiceError(c *gin.Context, err error) {
	abortWithError(c, statusFor(service.KindOf(err)), err)
}

// badRequest 用于参数绑定失败等在进入 service 之前就被拒绝的请求。
// 请求体超过 BodyLimit 时改为 413。
func badRequest(c *gin.Context, message string, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		abortWithError(c, http.StatusRequestEntityTooLarge, err)
		return
	}
	log.Warnw("无效的请求参数", "path", c.FullPath(), "requestID", c.GetString(middleware.RequestIDKey), "error", err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"code":    http.StatusBadRequest,
		"message": message,
	})
}
