// Package observe file: internal/observe/logging.go
package observe

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel 将配置字符串转换为 slog.Level，未知值回落到 INFO。
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger 创建一个输出到 w 的 JSON 结构化日志记录器。
func NewLogger(w io.Writer, levelStr string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(levelStr),
		AddSource: true, // 添加代码源位置（文件:行号），方便调试
	})
	return slog.New(handler)
}

// InitLogger 初始化全局的结构化日志记录器，应在 main 的早期调用。
// CLI 模式下日志写到 stderr，保证 stdout 只有查询结果。
func InitLogger(levelStr string) {
	slog.SetDefault(NewLogger(os.Stderr, levelStr))
}

// AdapterLogger 返回带有适配器名称与类型属性的子 logger
func AdapterLogger(base *slog.Logger, name, adapterType string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("adapter", name, "adapter_type", adapterType)
}
