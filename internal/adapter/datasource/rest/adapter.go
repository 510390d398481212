// Package rest 实现通用 REST 数据源适配器
// internal/adapter/datasource/rest/adapter.go
//
// 查询的第一个裸词是端点路径，过滤条件作为 URL 查询参数透传；
// 响应统一按 JSON 解码为行。Discover 通过探测端点与 OpenAPI 文档获得参数说明。
package rest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"DataAgents/internal/adapter/datasource/remote"
	"DataAgents/internal/core/domain"
	"DataAgents/internal/core/port"
	"DataAgents/internal/pagination"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// 断言 *Adapter 实现 port.Adapter 接口，编译期校验
var _ port.Adapter = (*Adapter)(nil)

const (
	probeCacheSize = 256
	probeCacheTTL  = 5 * time.Minute
)

// Adapter 是通用 REST 适配器
type Adapter struct {
	name      string
	client    *remote.Client
	settings  domain.AdapterSettings
	policy    pagination.Policy
	endpoints []string
	docs      []*openAPIDoc
	probes    *lru.LRU[string, *endpointInfo]
	logger    *slog.Logger
}

// New 创建 REST 适配器。凭据与分页策略在此处一次性解析，错误以 ConfigurationError 返回；
// 配置的 OpenAPI 文档也在此处加载，加载失败只记录警告。
func New(ctx context.Context, name string, cfg domain.AdapterConfig, opts ...remote.Option) (*Adapter, error) {
	client, err := remote.New(name, cfg, opts...)
	if err != nil {
		return nil, err
	}
	policy, err := pagination.ParsePolicy(client.Settings.PaginationStyle)
	if err != nil {
		return nil, &port.ConfigurationError{Field: "pagination_style", Reason: "适配器 '" + name + "' 分页策略无效", Err: err}
	}

	a := &Adapter{
		name:      name,
		client:    client,
		settings:  client.Settings,
		policy:    policy,
		endpoints: normalizeEndpoints(client.Settings.Endpoints),
		probes:    lru.NewLRU[string, *endpointInfo](probeCacheSize, nil, probeCacheTTL),
		logger:    client.Logger,
	}

	for _, src := range client.Settings.OpenAPI {
		doc, err := a.loadOpenAPI(ctx, src)
		if err != nil {
			a.logger.Warn("加载 OpenAPI 文档失败，已跳过", "source", abbreviate(src), "error", err)
			continue
		}
		a.docs = append(a.docs, doc)
	}
	if len(a.endpoints) == 0 && len(a.docs) > 0 {
		a.endpoints = endpointsFromOpenAPI(a.docs, client.BaseURL)
	}
	return a, nil
}

// Name 返回适配器名称
func (a *Adapter) Name() string { return a.name }

// Type 实现 port.Adapter.Type 接口，返回适配器类型。
func (a *Adapter) Type() string { return domain.TypeREST }

// Endpoints 返回端点白名单；为空表示不限制
func (a *Adapter) Endpoints() []string {
	return append([]string(nil), a.endpoints...)
}

// allowed 判断端点是否在白名单内；白名单中的端点同时放行其子路径。
func (a *Adapter) allowed(endpoint string) bool {
	if len(a.endpoints) == 0 || endpoint == "" {
		return true
	}
	for _, e := range a.endpoints {
		if endpoint == e || strings.HasPrefix(endpoint, e+"/") {
			return true
		}
	}
	return false
}

func normalizeEndpoints(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, e := range in {
		e = strings.Trim(strings.TrimSpace(e), "/")
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// abbreviate 截断内联文档，避免把整个 JSON 写进日志
func abbreviate(s string) string {
	const maxLen = 80
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
