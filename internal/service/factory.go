// file: internal/service/factory.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"DataAgents/internal/adapter/datasource/gbif"
	"DataAgents/internal/adapter/datasource/nasapower"
	"DataAgents/internal/adapter/datasource/openaq"
	"DataAgents/internal/adapter/datasource/remote"
	"DataAgents/internal/adapter/datasource/rest"
	"DataAgents/internal/adapter/datasource/tabular"
	"DataAgents/internal/core/domain"
	"DataAgents/internal/core/port"
)

// Constructor 根据配置构造一种类型的适配器
type Constructor func(ctx context.Context, name string, cfg domain.AdapterConfig, logger *slog.Logger) (port.Adapter, error)

var constructors = map[string]Constructor{
	domain.TypeTabular: func(ctx context.Context, name string, cfg domain.AdapterConfig, logger *slog.Logger) (port.Adapter, error) {
		return adapt(tabular.New(ctx, name, cfg, tabular.WithLogger(logger)))
	},
	domain.TypeREST: func(ctx context.Context, name string, cfg domain.AdapterConfig, logger *slog.Logger) (port.Adapter, error) {
		return adapt(rest.New(ctx, name, cfg, remote.WithLogger(logger)))
	},
	domain.TypeNASAPower: func(_ context.Context, name string, cfg domain.AdapterConfig, logger *slog.Logger) (port.Adapter, error) {
		return adapt(nasapower.New(name, cfg, remote.WithLogger(logger)))
	},
	domain.TypeGBIF: func(_ context.Context, name string, cfg domain.AdapterConfig, logger *slog.Logger) (port.Adapter, error) {
		return adapt(gbif.New(name, cfg, remote.WithLogger(logger)))
	},
	domain.TypeOpenAQ: func(_ context.Context, name string, cfg domain.AdapterConfig, logger *slog.Logger) (port.Adapter, error) {
		return adapt(openaq.New(name, cfg, remote.WithLogger(logger)))
	},
}

// adapt 避免把带类型的 nil 指针装进接口
func adapt[T port.Adapter](a T, err error) (port.Adapter, error) {
	if err != nil {
		return nil, err
	}
	return a, nil
}

// AdapterTypes 返回支持的适配器类型
func AdapterTypes() []string {
	types := make([]string, 0, len(constructors))
	for t := range constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// NewAdapter 按 cfg.Type 构造适配器
func NewAdapter(ctx context.Context, name string, cfg domain.AdapterConfig, logger *slog.Logger) (port.Adapter, error) {
	ctor, ok := constructors[cfg.Type]
	if !ok {
		return nil, port.NewConfigurationError("type", "未知的适配器类型 '%s'，可用类型: %v", cfg.Type, AdapterTypes())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return ctor(ctx, name, cfg, logger)
}

// BuildRouter 构造配置中的全部适配器并注册到新的 Router。
// 任何一个适配器构造失败时关闭已构造的适配器并返回错误。
func BuildRouter(ctx context.Context, adapters map[string]domain.AdapterConfig, logger *slog.Logger, opts ...RouterOption) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	router := NewRouter(append([]RouterOption{WithRouterLogger(logger)}, opts...)...)

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		a, err := NewAdapter(ctx, name, adapters[name], logger)
		if err == nil {
			err = router.Register(a)
		}
		if err != nil {
			if cerr := router.Close(); cerr != nil {
				logger.Warn("关闭已构造的适配器时出错", "error", cerr)
			}
			return nil, fmt.Errorf("构造适配器 '%s' 失败: %w", name, err)
		}
	}
	return router, nil
}
