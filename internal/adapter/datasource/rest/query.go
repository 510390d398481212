// file: internal/adapter/datasource/rest/query.go
package rest

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"DataAgents/internal/core/port"
	"DataAgents/internal/observe"
	"DataAgents/internal/pagination"
	"DataAgents/internal/querylang"
)

// Query 实现 port.Adapter 接口。
//
// 第一个裸词为端点（`*` 表示基础地址本身），其余过滤条件作为查询参数；
// 与 pagination_param 同名的过滤条件解释为总行数上限。
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
	req, plan, err := a.buildRequest(spec)
	if err != nil {
		return nil, err
	}

	result, err := a.client.Engine.Run(ctx, req, plan,
		pagination.JSONDecoder(a.settings.ResultsPath, a.settings.CursorPath, a.settings.EndPath))
	if err != nil {
		return nil, err
	}

	meta := map[string]any{
		"endpoint":  req.Path,
		"pages":     result.Pages,
		"truncated": result.Truncated,
	}
	for k, v := range result.Meta {
		meta[k] = v
	}
	return port.NewResultSet(a.name, result.Rows, meta), nil
}

// buildRequest 校验端点与参数并生成基础请求和分页计划，不发出任何网络请求。
func (a *Adapter) buildRequest(spec *querylang.Spec) (pagination.Request, pagination.Plan, error) {
	if spec.IsEmpty() {
		return pagination.Request{}, pagination.Plan{}, port.Invalid("endpoint", "required", "")
	}
	if len(spec.Terms) > 1 {
		return pagination.Request{}, pagination.Plan{}, port.Invalid("endpoint", "single-endpoint", strings.Join(spec.Terms, " "))
	}

	endpoint := strings.Trim(spec.FirstTerm(), "/")
	if endpoint == querylang.Wildcard {
		endpoint = ""
	}
	if !a.allowed(endpoint) {
		return pagination.Request{}, pagination.Plan{}, &port.UnknownParameterError{Name: endpoint, Provider: a.name, Suggestions: a.Endpoints()}
	}

	limitParam := a.settings.PaginationParam
	limit := 0
	if raw, ok := spec.Get(limitParam); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return pagination.Request{}, pagination.Plan{}, port.Invalid(limitParam, "positive-integer", raw)
		}
		limit = n
	}

	query := url.Values{}
	for _, key := range spec.Keys() {
		if key == limitParam {
			continue
		}
		vals := spec.Values(key)
		if a.settings.MultiValue == "repeat" {
			query[key] = vals
		} else {
			query.Set(key, strings.Join(vals, ","))
		}
	}

	plan := pagination.Plan{
		Policy:        a.policy,
		Limit:         limit,
		MaxPages:      a.settings.MaxPages,
		LimitParam:    limitParam,
		OffsetParam:   a.settings.OffsetParam,
		PageParam:     a.settings.PageParam,
		CursorParam:   a.settings.CursorParam,
		ShortPageEnds: a.policy == pagination.PolicyOffset || a.policy == pagination.PolicyPage,
	}
	if a.policy != pagination.PolicyNone {
		plan.PageSize = a.settings.PaginationLimit
	}
	return pagination.Request{Path: endpoint, Query: query}, plan, nil
}
