// file: internal/adapter/datasource/nasapower/catalog.go
package nasapower

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"DataAgents/internal/pagination"

	"golang.org/x/sync/singleflight"
)

const catalogPath = "api/system/manager/parameters"

// ParameterMeta 是参数目录中的一项
type ParameterMeta struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
	Units      string `json:"units"`
	Type       string `json:"type"`
	Source     string `json:"source"`
	Calculated bool   `json:"calculated"`
}

// catalog 是按 community×temporal 组合懒加载的参数目录，归属于单个适配器实例。
// 每个组合加载成功后不再变化；加载失败不缓存，下次使用时重试。
type catalog struct {
	engine *pagination.Engine

	mu      sync.RWMutex
	entries map[string]map[string]ParameterMeta
	group   singleflight.Group
}

func newCatalog(engine *pagination.Engine) *catalog {
	return &catalog{engine: engine, entries: make(map[string]map[string]ParameterMeta)}
}

func catalogKey(community, temporal string) string { return community + "/" + temporal }

// Get 返回一个组合的参数表，首次使用时请求数据提供方。并发的首次请求只发出一次。
func (c *catalog) Get(ctx context.Context, community, temporal string) (map[string]ParameterMeta, error) {
	key := catalogKey(community, temporal)
	c.mu.RLock()
	params, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return params, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		cached, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		q := url.Values{"community": {community}, "temporal": {temporal}}
		body, err := c.engine.Fetch(ctx, pagination.Request{Path: catalogPath, Query: q})
		if err != nil {
			return nil, err
		}
		loaded := map[string]ParameterMeta{}
		// 数据提供方对个别参数返回 null，逐项解码以跳过它们
		var rawEntries map[string]json.RawMessage
		if err := json.Unmarshal(body, &rawEntries); err != nil {
			return nil, fmt.Errorf("解析参数目录 %s 失败: %w", key, err)
		}
		for code, raw := range rawEntries {
			var meta *ParameterMeta
			if err := json.Unmarshal(raw, &meta); err != nil || meta == nil {
				continue
			}
			loaded[code] = *meta
		}

		c.mu.Lock()
		c.entries[key] = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]ParameterMeta), nil
}

// availability 记录参数出现在哪些组合中
type availability struct {
	Community string `json:"community"`
	Temporal  string `json:"temporal"`
}

// supersetEntry 是跨全部组合合并后的参数说明
type supersetEntry struct {
	ParameterMeta
	AvailableIn []availability `json:"available_in"`
}

// Superset 加载全部组合并合并为参数超集。个别组合加载失败时记录在 failures 中并继续。
func (c *catalog) Superset(ctx context.Context) (map[string]*supersetEntry, map[string]error) {
	out := make(map[string]*supersetEntry)
	failures := make(map[string]error)
	for _, community := range Communities {
		for _, temporal := range Temporals {
			params, err := c.Get(ctx, community, temporal)
			if err != nil {
				failures[catalogKey(community, temporal)] = err
				if ctx.Err() != nil {
					return out, failures
				}
				continue
			}
			for code, meta := range params {
				entry, ok := out[code]
				if !ok {
					entry = &supersetEntry{ParameterMeta: meta}
					out[code] = entry
				}
				entry.AvailableIn = append(entry.AvailableIn, availability{Community: community, Temporal: temporal})
			}
		}
	}
	return out, failures
}
