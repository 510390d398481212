// Package observe file: internal/observe/debug.go
package observe

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"
)

// PprofHandler 返回只挂载 /debug/pprof 端点的独立路由，不污染 http.DefaultServeMux。
func PprofHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// StartPprof 在 addr（如 "localhost:6060"）上后台暴露 pprof 端点。
// addr 为空时不启动并返回 nil；调用方负责在停机时 Shutdown 返回的 server。
func StartPprof(addr string, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pprof")
	if addr == "" {
		logger.Info("未配置 pprof_addr，pprof 端点不启用")
		return nil
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           PprofHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("pprof 端点开始监听", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("pprof 端点启动失败", "address", addr, "error", err)
		}
	}()
	return server
}
