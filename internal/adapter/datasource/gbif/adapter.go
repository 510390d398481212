// Package gbif 实现 GBIF 物种出现记录检索适配器
// internal/adapter/datasource/gbif/adapter.go
package gbif

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"DataAgents/internal/adapter/datasource/remote"
	"DataAgents/internal/core/domain"
	"DataAgents/internal/core/port"
	"DataAgents/internal/observe"
	"DataAgents/internal/pagination"
	"DataAgents/internal/querylang"
)

const (
	// DefaultBaseURL 是 GBIF API 的公开地址
	DefaultBaseURL = "https://api.gbif.org/v1"
	searchPath     = "occurrence/search"
	userAgent      = "data-agents/1.0"
)

// 断言 *Adapter 实现 port.Adapter 接口，编译期校验
var _ port.Adapter = (*Adapter)(nil)

// Adapter 是 GBIF 出现记录适配器
type Adapter struct {
	name     string
	client   *remote.Client
	maxPages int
	logger   *slog.Logger
}

// New 创建 GBIF 适配器；未配置地址时使用公开地址。
func New(name string, cfg domain.AdapterConfig, opts ...remote.Option) (*Adapter, error) {
	opts = append([]remote.Option{
		remote.WithDefaultBaseURL(DefaultBaseURL),
		remote.WithDefaultHeaders(map[string]string{"User-Agent": userAgent}),
	}, opts...)
	client, err := remote.New(name, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Adapter{name: name, client: client, maxPages: client.Settings.MaxPages, logger: client.Logger}, nil
}

// Name 返回适配器名称
func (a *Adapter) Name() string { return a.name }

// Type 实现 port.Adapter.Type 接口，返回适配器类型。
func (a *Adapter) Type() string { return domain.TypeGBIF }

// Query 实现 port.Adapter 接口：按偏移分页取回至多 limit 条记录。
func (a *Adapter) Query(ctx context.Context, spec *querylang.Spec) (*port.ResultSet, error) {
	start := time.Now()
	res, err := a.query(ctx, spec)
	observe.ObserveQuery(a.name, err, time.Since(start))
	if err != nil {
		return nil, port.WrapQueryError(a.name, spec, err)
	}
	return res, nil
}

func (a *Adapter) query(ctx context.Context, spec *querylang.Spec) (*port.ResultSet, error) {
	req, err := Validate(spec)
	if err != nil {
		return nil, err
	}

	plan := pagination.Plan{
		Policy:        pagination.PolicyOffset,
		PageSize:      min(req.Limit, maxPageSize),
		Limit:         req.Limit,
		MaxPages:      a.maxPages,
		LimitParam:    "limit",
		OffsetParam:   "offset",
		StartOffset:   req.Offset,
		ShortPageEnds: true,
	}
	result, err := a.client.Engine.Run(ctx, pagination.Request{Path: searchPath, Query: req.Query}, plan,
		pagination.JSONDecoder("results", "", "endOfRecords"))
	if err != nil {
		return nil, err
	}

	meta := map[string]any{
		"offset":    req.Offset,
		"limit":     req.Limit,
		"pages":     result.Pages,
		"truncated": result.Truncated,
	}
	count, hasCount := numberOf(result.Meta["count"])
	if hasCount {
		meta["count"] = count
		meta["endOfRecords"] = int64(req.Offset+len(result.Rows)) >= count
	}
	if facets, ok := result.Meta["facets"]; ok {
		meta["facets"] = facets
	}
	return port.NewResultSet(a.name, result.Rows, meta), nil
}

// Count 返回匹配记录的总数而不取回记录（limit=0）。
func (a *Adapter) Count(ctx context.Context, spec *querylang.Spec) (int64, error) {
	if spec.IsEmpty() {
		spec = querylang.Parse(querylang.Wildcard)
	}
	req, err := Validate(spec)
	if err != nil {
		return 0, port.WrapQueryError(a.name, spec, err)
	}
	q := req.Query
	q.Set("limit", "0")
	body, err := a.client.Engine.Fetch(ctx, pagination.Request{Path: searchPath, Query: q})
	if err != nil {
		return 0, port.WrapQueryError(a.name, spec, err)
	}
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, port.WrapQueryError(a.name, spec, fmt.Errorf("解析计数响应失败: %w", err))
	}
	return resp.Count, nil
}

// Discover 实现 port.Adapter 接口：静态参数表与响应格式说明。
func (a *Adapter) Discover(_ context.Context) (*port.Discovery, error) {
	params := make(map[string]port.ParameterInfo, len(searchParams))
	for name, ps := range searchParams {
		params[name] = port.ParameterInfo{
			Name:        name,
			Type:        kindName(ps.kind),
			Description: ps.description,
			Allowed:     ps.allowed,
			Example:     ps.example,
		}
	}
	return &port.Discovery{
		Adapter:     a.name,
		Type:        domain.TypeGBIF,
		Location:    a.client.BaseURL,
		Description: "GBIF Occurrence Search API，检索生物多样性出现记录",
		Parameters:  params,
		Capabilities: map[string]bool{
			"pagination": true,
			"count":      true,
			"facets":     true,
		},
		Details: map[string]any{
			"endpoint":         searchPath,
			"total_parameters": len(params),
			"max_page_size":    maxPageSize,
			"response_format": map[string]string{
				"offset":       "Starting offset of results",
				"limit":        "Number of results per page",
				"endOfRecords": "Whether this is the last page",
				"count":        "Total number of matching records",
				"results":      "Array of occurrence records",
			},
		},
	}, nil
}

// GetSchema 实现 port.Adapter 接口：常见记录字段，可作检索参数的字段标记为可搜索。
func (a *Adapter) GetSchema(_ context.Context) (*port.SchemaResult, error) {
	fields := make([]port.FieldDescription, len(occurrenceFields))
	for i, c := range occurrenceFields {
		_, searchable := searchParams[c.Name]
		fields[i] = port.FieldDescription{Name: c.Name, DataType: c.DataType, IsSearchable: searchable, IsReturnable: true}
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return &port.SchemaResult{Tables: map[string][]port.FieldDescription{"occurrence": fields}}, nil
}

func kindName(k paramKind) string {
	switch k {
	case kindInt:
		return "integer"
	case kindBool:
		return "boolean"
	case kindEnum:
		return "enum"
	case kindCountry:
		return "country_code"
	case kindUUID:
		return "uuid"
	case kindRange:
		return "number_or_range"
	case kindDateRange:
		return "date_or_range"
	default:
		return "string"
	}
}

func numberOf(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		return int64(n), true
	}
	return 0, false
}
