// file: internal/adapter/datasource/rest/discover.go
package rest

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"DataAgents/internal/core/domain"
	"DataAgents/internal/core/port"
	"DataAgents/internal/pagination"
)

// endpointInfo 是对单个端点一次探测的结果
type endpointInfo struct {
	URL         string                        `json:"url"`
	Method      string                        `json:"method"`
	Description string                        `json:"description"`
	Status      int                           `json:"status"`
	Required    map[string]port.ParameterInfo `json:"required_parameters"`
	Optional    map[string]port.ParameterInfo `json:"optional_parameters"`
	Columns     []port.Column                 `json:"columns,omitempty"`
	Sample      map[string]any                `json:"sample,omitempty"`
}

// Discover 实现 port.Adapter 接口：逐个探测白名单端点。
// 200 的端点给出样例列，400/422 的端点从错误体中解析必填参数，其它结果的端点被省略。
func (a *Adapter) Discover(ctx context.Context) (*port.Discovery, error) {
	endpoints := make(map[string]*endpointInfo, len(a.endpoints))
	params := map[string]port.ParameterInfo{
		a.settings.PaginationParam: {
			Name:        a.settings.PaginationParam,
			Type:        "integer",
			Description: "返回结果的总行数上限",
		},
	}
	for _, ep := range a.endpoints {
		info, err := a.probe(ctx, ep)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Debug("端点探测失败，已省略", "endpoint", ep, "error", err)
			continue
		}
		endpoints[ep] = info
		for k, v := range info.Required {
			params[k] = v
		}
		for k, v := range info.Optional {
			if _, exists := params[k]; !exists {
				params[k] = v
			}
		}
	}

	details := map[string]any{
		"base_url":  a.client.BaseURL,
		"endpoints": endpoints,
	}
	if len(a.docs) > 0 {
		details["openapi"] = a.openAPISummary()
	}
	return &port.Discovery{
		Adapter:     a.name,
		Type:        domain.TypeREST,
		Location:    a.client.BaseURL,
		Description: "通用 REST 接口",
		Parameters:  params,
		Capabilities: map[string]bool{
			"pagination":      a.policy != pagination.PolicyNone,
			"endpoint_filter": len(a.endpoints) > 0,
			"openapi":         len(a.docs) > 0,
		},
		Details: details,
	}, nil
}

// GetSchema 实现 port.Adapter 接口：每个可用端点一张 "表"。
func (a *Adapter) GetSchema(ctx context.Context) (*port.SchemaResult, error) {
	tables := make(map[string][]port.FieldDescription, len(a.endpoints))
	for _, ep := range a.endpoints {
		info, err := a.probe(ctx, ep)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		var fields []port.FieldDescription
		for _, c := range info.Columns {
			_, searchable := info.Optional[c.Name]
			fields = append(fields, port.FieldDescription{Name: c.Name, DataType: c.DataType, IsSearchable: searchable, IsReturnable: true})
		}
		for name, p := range info.Required {
			fields = append(fields, port.FieldDescription{Name: name, DataType: p.Type, IsSearchable: true, Description: p.Description})
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		tables[ep] = fields
	}
	return &port.SchemaResult{Tables: tables}, nil
}

// probe 请求一次端点（带页大小参数），结果在 LRU 中缓存一段时间。
func (a *Adapter) probe(ctx context.Context, endpoint string) (*endpointInfo, error) {
	if cached, ok := a.probes.Get(endpoint); ok {
		return cached, nil
	}

	query := url.Values{}
	if a.settings.PaginationParam != "" && a.settings.PaginationLimit > 0 {
		query.Set(a.settings.PaginationParam, strconv.Itoa(a.settings.PaginationLimit))
	}
	target, _ := a.client.Engine.ResolveURL(endpoint, nil)
	info := &endpointInfo{
		URL:         target,
		Method:      http.MethodGet,
		Description: "REST endpoint: " + endpoint,
		Required:    map[string]port.ParameterInfo{},
		Optional:    map[string]port.ParameterInfo{},
	}

	body, err := a.client.Engine.Fetch(ctx, pagination.Request{Path: endpoint, Query: query})
	var pe *port.ProviderError
	switch {
	case err == nil:
		info.Status = http.StatusOK
		page, decodeErr := pagination.JSONDecoder(a.settings.ResultsPath, "", "")(body)
		if decodeErr == nil && len(page.Rows) > 0 {
			info.Columns = port.InferColumns(page.Rows)
			info.Sample = page.Rows[0]
		}
		if a.settings.PaginationParam != "" {
			info.Optional[a.settings.PaginationParam] = port.ParameterInfo{
				Name:        a.settings.PaginationParam,
				Type:        "integer",
				Description: "Limit number of results (pagination)",
			}
		}
	case errors.As(err, &pe) && (pe.StatusCode == http.StatusBadRequest || pe.StatusCode == http.StatusUnprocessableEntity):
		info.Status = pe.StatusCode
		for _, name := range missingQueryParams([]byte(pe.Body)) {
			info.Required[name] = port.ParameterInfo{Name: name, Type: "string", Description: "Required parameter: " + name, Required: true}
		}
	default:
		return nil, err
	}

	if item, ok := a.lookupPath(endpoint); ok {
		if d := item.description(); d != "" {
			info.Description = d
		}
		for _, p := range item.parameters() {
			pi := p.toInfo()
			if p.Required {
				info.Required[p.Name] = pi
			} else {
				info.Optional[p.Name] = pi
			}
		}
	}

	a.probes.Add(endpoint, info)
	return info, nil
}

// missingQueryParams 解析 FastAPI/pydantic 风格的校验错误体：
// {"detail":[{"type":"missing","loc":["query","name"],...}]}
func missingQueryParams(body []byte) []string {
	doc, err := pagination.DecodeJSON(body)
	if err != nil {
		return nil
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	details, ok := obj["detail"].([]any)
	if !ok {
		return nil
	}
	var names []string
	for _, d := range details {
		entry, ok := d.(map[string]any)
		if !ok || entry["type"] != "missing" {
			continue
		}
		loc, ok := entry["loc"].([]any)
		if !ok || len(loc) < 2 || loc[0] != "query" {
			continue
		}
		if name, ok := loc[1].(string); ok {
			names = append(names, name)
		}
	}
	return names
}
