// file: cmd/dataagents/serve.go

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"DataAgents/internal/config"
	"DataAgents/internal/observe"
	"DataAgents/internal/service"
	"DataAgents/internal/transport/http/middleware"
	"DataAgents/internal/transport/http/router"

	"github.com/spf13/cobra"
)

func newServeCommand(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "以 HTTP API 的形式提供已配置的适配器",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			r, cfg, err := opts.buildRouter(ctx, false)
			if err != nil {
				return err
			}
			defer func() {
				if err := r.Close(); err != nil {
					slog.Error("关闭适配器时发生错误", "error", err)
				}
			}()
			if addr != "" {
				cfg.Server.Addr = addr
			}

			handler, err := newHandler(r, cfg)
			if err != nil {
				return err
			}
			return serve(ctx, cfg.Server, handler)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "监听地址，覆盖 server.addr")
	return cmd
}

// newHandler 按配置组装 HTTP 路由器：认证与限速都是可选的
func newHandler(r *service.Router, cfg *config.Config) (http.Handler, error) {
	deps := router.Dependencies{
		Router:      r,
		CORSOrigins: cfg.Server.CORSOrigins,
		Version:     version,
	}
	if cfg.Server.Auth.Enabled {
		tokens, err := service.NewTokenService(service.TokenConfig{
			Secret:  cfg.Server.Auth.Secret,
			TTL:     cfg.Server.Auth.TokenTTL,
			Issuer:  cfg.Server.Auth.Issuer,
			Clients: cfg.Server.Auth.Clients,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化认证服务失败: %w", err)
		}
		deps.Tokens = tokens
		slog.Info("HTTP API 认证已启用", "clients", len(cfg.Server.Auth.Clients))
	}
	if cfg.Server.RateLimit > 0 {
		deps.Limiter = middleware.NewIPRateLimiter(cfg.Server.RateLimit, cfg.Server.Burst)
	}
	return router.New(deps), nil
}

// serve 运行 HTTP 服务直到 ctx 被取消，然后在 ShutdownTimeout 内优雅关闭
func serve(ctx context.Context, cfg config.ServerConfig, handler http.Handler) error {
	observe.Register()
	pprofServer := observe.StartPprof(cfg.PprofAddr, slog.Default())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("DataAgents HTTP API 开始监听", "address", cfg.Addr, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP 服务启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("收到停机信号，准备优雅关闭...")

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if pprofServer != nil {
		_ = pprofServer.Shutdown(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP 服务优雅关闭失败: %w", err)
	}
	slog.Info("HTTP 服务已成功关闭。")
	return nil
}
