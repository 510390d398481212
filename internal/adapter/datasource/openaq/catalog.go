// file: internal/adapter/datasource/openaq/catalog.go
package openaq

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"DataAgents/internal/pagination"

	"golang.org/x/sync/singleflight"
)

const parametersPath = "parameters"

// Parameter 是 /parameters 目录中的一项
type Parameter struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Units       string `json:"units"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

// catalog 懒加载参数目录；加载成功后不再变化，失败不缓存。
type catalog struct {
	engine *pagination.Engine

	mu     sync.RWMutex
	params []Parameter
	loaded bool
	group  singleflight.Group
}

func newCatalog(engine *pagination.Engine) *catalog {
	return &catalog{engine: engine}
}

// List 返回按 id 排序的参数目录，并发的首次调用只请求一次。
func (c *catalog) List(ctx context.Context) ([]Parameter, error) {
	c.mu.RLock()
	if c.loaded {
		defer c.mu.RUnlock()
		return c.params, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(parametersPath, func() (any, error) {
		c.mu.RLock()
		if c.loaded {
			defer c.mu.RUnlock()
			return c.params, nil
		}
		c.mu.RUnlock()

		body, err := c.engine.Fetch(ctx, pagination.Request{Path: parametersPath})
		if err != nil {
			return nil, err
		}
		var resp struct {
			Results []Parameter `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("解析参数目录失败: %w", err)
		}
		sort.Slice(resp.Results, func(i, j int) bool { return resp.Results[i].ID < resp.Results[j].ID })

		c.mu.Lock()
		c.params, c.loaded = resp.Results, true
		c.mu.Unlock()
		return resp.Results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Parameter), nil
}

// match 按名称查找参数：先精确匹配，再忽略大小写，再前缀，最后部分匹配。
func match(params []Parameter, name string) (Parameter, bool) {
	lower := strings.ToLower(name)
	matchers := []func(Parameter) bool{
		func(p Parameter) bool { return p.Name == name },
		func(p Parameter) bool { return strings.ToLower(p.Name) == lower },
		func(p Parameter) bool { return strings.HasPrefix(strings.ToLower(p.Name), lower) },
		func(p Parameter) bool { return strings.Contains(strings.ToLower(p.Name), lower) },
	}
	for _, m := range matchers {
		for _, p := range params {
			if m(p) {
				return p, true
			}
		}
	}
	return Parameter{}, false
}

// names 返回去重排序后的参数名，用作未知参数的候选
func names(params []Parameter) []string {
	seen := make(map[string]struct{}, len(params))
	out := make([]string, 0, len(params))
	for _, p := range params {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		out = append(out, p.Name)
	}
	sort.Strings(out)
	return out
}
