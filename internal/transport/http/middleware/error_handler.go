// Package middleware file: internal/transport/http/middleware/error_handler.go
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"DataAgents/internal/core/port"
	"DataAgents/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorHandlingMiddleware 是一个Gin中间件，用于集中处理错误。
// 处理器通过 c.Error(err) 附加错误后直接返回，由这里决定状态码与响应体。
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		// 只处理最后一个错误，它通常是根本原因
		err := c.Errors.Last().Err
		status, body := StatusFor(err)
		if status >= http.StatusInternalServerError {
			slog.Error("请求处理失败", "path", c.FullPath(), "status", status, "error", err)
		}
		c.JSON(status, body)
	}
}

// StatusFor 将错误分类映射为 HTTP 状态码与响应体
func StatusFor(err error) (int, gin.H) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return http.StatusBadRequest, gin.H{"error": "请求参数验证失败", "details": ve.Error()}
	}

	var (
		pe  *port.ProviderError
		se  *json.SyntaxError
		ute *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, port.ErrValidation), errors.Is(err, port.ErrUnknownParameter):
		return http.StatusBadRequest, gin.H{"error": err.Error()}

	case errors.Is(err, port.ErrAdapterNotFound):
		return http.StatusNotFound, gin.H{"error": err.Error()}

	case errors.As(err, &pe):
		return http.StatusBadGateway, gin.H{
			"error":           err.Error(),
			"provider_status": pe.StatusCode,
			"provider_body":   pe.Body,
		}

	case errors.Is(err, port.ErrTransientNetwork):
		return http.StatusServiceUnavailable, gin.H{"error": err.Error()}

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, gin.H{"error": "查询超时"}

	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrClientLocked),
		errors.Is(err, service.ErrInvalidToken):
		// 锁定与凭据错误使用相同的响应，不暴露账户状态
		return http.StatusUnauthorized, gin.H{"error": "认证失败"}

	case errors.Is(err, port.ErrConfiguration):
		return http.StatusInternalServerError, gin.H{"error": "适配器配置错误"}

	// 请求体解码错误放在最后，避免误判包装了 io.EOF 的网络错误
	case errors.As(err, &se), errors.As(err, &ute), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest, gin.H{"error": "请求体格式错误"}

	default:
		return http.StatusInternalServerError, gin.H{"error": "服务器内部错误"}
	}
}
