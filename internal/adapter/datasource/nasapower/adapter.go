// Package nasapower 实现 NASA POWER 气象数据适配器
// internal/adapter/datasource/nasapower/adapter.go
//
// 查询的自由文本词是参数代码（如 T2M），过滤条件给出社区、时间频率、空间类型、
// 坐标与日期。所有规则在发出任何请求之前校验，参数代码再对照懒加载的参数目录确认。
package nasapower

import (
	"context"
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

// DefaultBaseURL 是 NASA POWER 的公开地址
const DefaultBaseURL = "https://power.larc.nasa.gov"

// 断言 *Adapter 实现 port.Adapter 接口，编译期校验
var _ port.Adapter = (*Adapter)(nil)

// Adapter 是 NASA POWER 适配器
type Adapter struct {
	name    string
	client  *remote.Client
	catalog *catalog
	logger  *slog.Logger
}

// New 创建 NASA POWER 适配器；未配置地址时使用公开地址。
func New(name string, cfg domain.AdapterConfig, opts ...remote.Option) (*Adapter, error) {
	opts = append([]remote.Option{remote.WithDefaultBaseURL(DefaultBaseURL)}, opts...)
	client, err := remote.New(name, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		name:    name,
		client:  client,
		catalog: newCatalog(client.Engine),
		logger:  client.Logger,
	}, nil
}

// Name 返回适配器名称
func (a *Adapter) Name() string { return a.name }

// Type 实现 port.Adapter.Type 接口，返回适配器类型。
func (a *Adapter) Type() string { return domain.TypeNASAPower }

// Query 实现 port.Adapter 接口。
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
	if err := a.checkParameters(ctx, req); err != nil {
		return nil, err
	}

	body, err := a.client.Engine.Fetch(ctx, pagination.Request{Path: req.Path(), Query: req.Values()})
	if err != nil {
		return nil, err
	}
	rows, messages, err := parseResponse(body, req.Parameters)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		a.logger.Debug("数据提供方消息", "message", m)
	}

	return &port.ResultSet{
		Source:  a.name,
		Columns: resultColumns,
		Rows:    rows,
		Meta: map[string]any{
			"community":    req.Community,
			"temporal":     req.Temporal,
			"spatial_type": req.SpatialType,
			"start":        req.Start,
			"end":          req.End,
		},
	}, nil
}

// checkParameters 对照 community×temporal 参数目录确认每个参数代码
func (a *Adapter) checkParameters(ctx context.Context, req *Request) error {
	params, err := a.catalog.Get(ctx, req.Community, req.Temporal)
	if err != nil {
		return err
	}
	for _, code := range req.Parameters {
		if _, ok := params[code]; !ok {
			return &port.UnknownParameterError{Name: code, Provider: a.name, Suggestions: suggest(params, code)}
		}
	}
	return nil
}

// Discover 实现 port.Adapter 接口：全部组合参数目录的超集，个别组合失败只记录日志。
func (a *Adapter) Discover(ctx context.Context) (*port.Discovery, error) {
	superset, failures := a.catalog.Superset(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for key, err := range failures {
		a.logger.Warn("加载参数目录失败", "combination", key, "error", err)
	}

	params := make(map[string]port.ParameterInfo, len(superset))
	for code, entry := range superset {
		params[code] = port.ParameterInfo{
			Name:        code,
			Type:        "number",
			Description: describe(code, entry.ParameterMeta),
			Units:       unitsOf(entry.ParameterMeta),
		}
	}
	available := make(map[string][]availability, len(superset))
	for code, entry := range superset {
		available[code] = entry.AvailableIn
	}
	failed := make([]string, 0, len(failures))
	for k := range failures {
		failed = append(failed, k)
	}
	sort.Strings(failed)

	return &port.Discovery{
		Adapter:     a.name,
		Type:        domain.TypeNASAPower,
		Location:    a.client.BaseURL,
		Description: "NASA POWER 气象与太阳辐射数据，每个参数代码是一种记录类型",
		Parameters:  params,
		Capabilities: map[string]bool{
			"point":    true,
			"regional": true,
		},
		Details: map[string]any{
			"total_parameters":     len(params),
			"communities":          Communities,
			"temporal_frequencies": Temporals,
			"spatial_types":        SpatialTypes,
			"available_in":         available,
			"required_filters":     []string{keyCommunity, keyTemporal, keySpatialType, keyStart, keyEnd},
			"spatial_filters": map[string][]string{
				"point":    {keyLatitude, keyLongitude},
				"regional": {keyLatMin, keyLatMax, keyLonMin, keyLonMax},
			},
			"optional_filters": optionalKeys(),
			"failed_catalogs":  failed,
		},
	}, nil
}

// GetSchema 实现 port.Adapter 接口：每个参数代码一张表，列固定。
func (a *Adapter) GetSchema(ctx context.Context) (*port.SchemaResult, error) {
	superset, _ := a.catalog.Superset(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tables := make(map[string][]port.FieldDescription, len(superset))
	for code, entry := range superset {
		fields := make([]port.FieldDescription, len(resultColumns))
		for i, c := range resultColumns {
			fields[i] = port.FieldDescription{Name: c.Name, DataType: c.DataType, IsReturnable: true}
		}
		fields[2].Description = "单位: " + unitsOf(entry.ParameterMeta)
		tables[code] = fields
	}
	return &port.SchemaResult{Tables: tables}, nil
}

func describe(code string, m ParameterMeta) string {
	name := m.Name
	if name == "" {
		name = code
	}
	def := m.Definition
	if def == "" {
		return name
	}
	const maxDef = 100
	if len([]rune(def)) > maxDef {
		def = string([]rune(def)[:maxDef]) + "..."
	}
	return name + " - " + def
}

func unitsOf(m ParameterMeta) string {
	if m.Units == "" {
		return "dimensionless"
	}
	return m.Units
}

func optionalKeys() []string {
	keys := make([]string, 0, len(optionalParams))
	for k := range optionalParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// suggest 返回与未知代码前缀相同的若干参数代码
func suggest(params map[string]ParameterMeta, code string) []string {
	const maxSuggestions = 5
	var out []string
	for c := range params {
		if len(code) >= 2 && len(c) >= 2 && c[:2] == code[:2] {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
