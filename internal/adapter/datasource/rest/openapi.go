// file: internal/adapter/datasource/rest/openapi.go
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"DataAgents/internal/core/port"
	"DataAgents/internal/pagination"
)

// openAPIDoc 只保留发现参数所需的最小 OpenAPI 子集
type openAPIDoc struct {
	Source string `json:"-"`
	Info   struct {
		Title       string `json:"title"`
		Version     string `json:"version"`
		Description string `json:"description"`
	} `json:"info"`
	Paths map[string]openAPIPathItem `json:"paths"`
}

type openAPIPathItem struct {
	Summary     string            `json:"summary"`
	Description string            `json:"description"`
	Parameters  []openAPIParam    `json:"parameters"`
	Get         *openAPIOperation `json:"get"`
}

type openAPIOperation struct {
	Summary     string         `json:"summary"`
	Description string         `json:"description"`
	Parameters  []openAPIParam `json:"parameters"`
}

type openAPIParam struct {
	Name        string `json:"name"`
	In          string `json:"in"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
	Example     any    `json:"example"`
	Schema      struct {
		Type    string `json:"type"`
		Format  string `json:"format"`
		Enum    []any  `json:"enum"`
		Example any    `json:"example"`
	} `json:"schema"`
}

// loadOpenAPI 读取一个 OpenAPI 来源：http(s) URL 通过引擎获取，其它内容按内联 JSON 解析。
func (a *Adapter) loadOpenAPI(ctx context.Context, src string) (*openAPIDoc, error) {
	src = strings.TrimSpace(src)
	var body []byte
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		b, err := a.client.Engine.Fetch(ctx, pagination.Request{Path: src})
		if err != nil {
			return nil, err
		}
		body = b
	} else {
		body = []byte(src)
	}

	doc := &openAPIDoc{Source: src}
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("OpenAPI 文档不是合法的 JSON: %w", err)
	}
	if len(doc.Paths) == 0 {
		return nil, fmt.Errorf("OpenAPI 文档中没有任何 paths")
	}
	return doc, nil
}

// endpointsFromOpenAPI 从文档的 paths 提取端点，去掉与基础地址重复的路径前缀。
func endpointsFromOpenAPI(docs []*openAPIDoc, baseURL string) []string {
	basePath := ""
	if u, err := url.Parse(baseURL); err == nil {
		basePath = strings.TrimRight(u.Path, "/")
	}
	var out []string
	for _, doc := range docs {
		for p := range doc.Paths {
			if basePath != "" && strings.HasPrefix(p, basePath) {
				p = p[len(basePath):]
			}
			out = append(out, p)
		}
	}
	out = normalizeEndpoints(out)
	sort.Strings(out)
	return out
}

// lookupPath 查找与端点匹配的路径项：完全相同或以 "/endpoint" 结尾。
func (a *Adapter) lookupPath(endpoint string) (*openAPIPathItem, bool) {
	want := "/" + strings.Trim(endpoint, "/")
	for _, doc := range a.docs {
		for p, item := range doc.Paths {
			if p == want || strings.HasSuffix(p, want) {
				it := item
				return &it, true
			}
		}
	}
	return nil, false
}

// parameters 合并路径级与 GET 操作级的查询参数
func (item *openAPIPathItem) parameters() []openAPIParam {
	var params []openAPIParam
	params = append(params, item.Parameters...)
	if item.Get != nil {
		params = append(params, item.Get.Parameters...)
	}
	out := params[:0]
	for _, p := range params {
		if p.In == "" || p.In == "query" {
			out = append(out, p)
		}
	}
	return out
}

func (item *openAPIPathItem) description() string {
	if item.Get != nil {
		if item.Get.Summary != "" {
			return item.Get.Summary
		}
		if item.Get.Description != "" {
			return item.Get.Description
		}
	}
	if item.Summary != "" {
		return item.Summary
	}
	return item.Description
}

func (p openAPIParam) toInfo() port.ParameterInfo {
	info := port.ParameterInfo{
		Name:        p.Name,
		Type:        p.Schema.Type,
		Description: p.Description,
		Required:    p.Required,
	}
	if info.Type == "" {
		info.Type = "string"
	}
	if p.Schema.Format != "" {
		info.Type += ":" + p.Schema.Format
	}
	for _, e := range p.Schema.Enum {
		info.Allowed = append(info.Allowed, fmt.Sprint(e))
	}
	switch {
	case p.Example != nil:
		info.Example = fmt.Sprint(p.Example)
	case p.Schema.Example != nil:
		info.Example = fmt.Sprint(p.Schema.Example)
	}
	return info
}

// summary 供 Discover 输出的文档概要
func (a *Adapter) openAPISummary() []map[string]any {
	out := make([]map[string]any, 0, len(a.docs))
	for _, doc := range a.docs {
		paths := make([]string, 0, len(doc.Paths))
		for p := range doc.Paths {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		out = append(out, map[string]any{
			"title":       doc.Info.Title,
			"version":     doc.Info.Version,
			"description": doc.Info.Description,
			"paths":       paths,
		})
	}
	return out
}
