// Package openaq 实现 OpenAQ v3 空气质量数据适配器
// internal/adapter/datasource/openaq/adapter.go
//
// 一次查询分三步：按地理条件分页查找站点，挑选测量目标参数的传感器，
// 再逐个传感器取回测量值，并把站点信息合并到每一行。
package openaq

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"DataAgents/internal/adapter/datasource/remote"
	"DataAgents/internal/core/domain"
	"DataAgents/internal/core/port"
	"DataAgents/internal/observe"
	"DataAgents/internal/pagination"
	"DataAgents/internal/querylang"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBaseURL 是 OpenAQ v3 的公开地址
	DefaultBaseURL = "https://api.openaq.org/v3"
	// APIKeyEnv 是未在配置中声明 auth 时读取 API key 的环境变量
	APIKeyEnv = "OPENAQ_API_KEY"

	locationsPath     = "locations"
	defaultMaxSensors = 25
	maxPageSize       = 1000
	sensorConcurrency = 4
)

// 断言 *Adapter 实现 port.Adapter 接口，编译期校验
var _ port.Adapter = (*Adapter)(nil)

// Adapter 是 OpenAQ 适配器
type Adapter struct {
	name       string
	client     *remote.Client
	catalog    *catalog
	maxSensors int
	logger     *slog.Logger
}

// New 创建 OpenAQ 适配器。配置未声明 auth 时尝试从 OPENAQ_API_KEY 读取 API key，
// 未设置则匿名访问；配置中显式声明的 env_var 未设置时返回 ConfigurationError。
func New(name string, cfg domain.AdapterConfig, opts ...remote.Option) (*Adapter, error) {
	opts = append([]remote.Option{
		remote.WithDefaultBaseURL(DefaultBaseURL),
		remote.WithOptionalDefaultAuth(&domain.AuthSpec{Type: domain.AuthAPIKey, EnvVar: APIKeyEnv}),
	}, opts...)
	client, err := remote.New(name, cfg, opts...)
	if err != nil {
		return nil, err
	}
	maxSensors := client.Settings.MaxSensors
	if maxSensors <= 0 {
		maxSensors = defaultMaxSensors
	}
	if client.Credentials.Empty() {
		client.Logger.Warn("未配置 OpenAQ API key，将以匿名方式访问", "env_var", APIKeyEnv)
	}
	return &Adapter{
		name:       name,
		client:     client,
		catalog:    newCatalog(client.Engine),
		maxSensors: maxSensors,
		logger:     client.Logger,
	}, nil
}

// Name 返回适配器名称
func (a *Adapter) Name() string { return a.name }

// Type 实现 port.Adapter.Type 接口，返回适配器类型。
func (a *Adapter) Type() string { return domain.TypeOpenAQ }

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

	var param Parameter
	if req.Parameter != "" {
		params, err := a.catalog.List(ctx)
		if err != nil {
			return nil, err
		}
		p, ok := match(params, req.Parameter)
		if !ok {
			return nil, &port.UnknownParameterError{Name: req.Parameter, Provider: a.name, Suggestions: names(params)}
		}
		param = p
	}

	locs, err := a.findLocations(ctx, req, param.ID)
	if err != nil {
		return nil, err
	}
	refs, skipped := selectSensors(locs, param.ID, a.maxSensors)
	if skipped > 0 {
		a.logger.Info("传感器数量超出上限，其余已跳过", "max_sensors", a.maxSensors, "skipped", skipped)
	}

	rows, failed, err := a.fetchMeasurements(ctx, req, refs)
	if err != nil {
		return nil, err
	}

	meta := map[string]any{
		"locations":       len(locs),
		"sensors":         len(refs),
		"sensors_skipped": skipped,
	}
	if param.ID != 0 {
		meta["parameter"] = param.Name
		meta["parameter_id"] = param.ID
	}
	if len(failed) > 0 {
		meta["failed_sensors"] = failed
	}
	return &port.ResultSet{Source: a.name, Columns: resultColumns, Rows: rows, Meta: meta}, nil
}

// findLocations 按页码分页查询站点
func (a *Adapter) findLocations(ctx context.Context, req *Request, parameterID int64) ([]location, error) {
	q := url.Values{}
	switch {
	case req.BBox != nil:
		q.Set(keyBBox, joinFloats(req.BBox))
	case req.Coordinates != nil:
		q.Set(keyCoordinates, joinFloats(req.Coordinates))
		q.Set(keyRadius, strconv.Itoa(req.Radius))
	}
	if req.ISO != "" {
		q.Set(keyISO, req.ISO)
	}
	if parameterID != 0 {
		q.Set("parameters_id", strconv.FormatInt(parameterID, 10))
	}

	plan := pagination.Plan{
		Policy:        pagination.PolicyPage,
		PageSize:      min(req.LocationsLimit, maxPageSize),
		Limit:         req.LocationsLimit,
		MaxPages:      a.client.Settings.MaxPages,
		LimitParam:    "limit",
		PageParam:     "page",
		ShortPageEnds: true,
	}
	res, err := a.client.Engine.Run(ctx, pagination.Request{Path: locationsPath, Query: q}, plan,
		pagination.JSONDecoder("results", "", ""))
	if err != nil {
		return nil, err
	}
	return decodeLocations(res.Rows)
}

// fetchMeasurements 并发取回各传感器的测量值，结果保持传感器顺序。
// 单个传感器失败只记录日志；全部失败时返回第一个错误。
func (a *Adapter) fetchMeasurements(ctx context.Context, req *Request, refs []sensorRef) ([]map[string]any, []int64, error) {
	perSensor := make([][]map[string]any, len(refs))
	errs := make([]error, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sensorConcurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			raw, err := a.sensorMeasurements(gctx, req, ref.ID)
			if err != nil {
				errs[i] = err
				return nil
			}
			rows := make([]map[string]any, len(raw))
			for j, m := range raw {
				rows[j] = measurementRow(ref, m)
			}
			perSensor[i] = rows
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		rows     = make([]map[string]any, 0)
		failed   []int64
		firstErr error
	)
	for i, ref := range refs {
		if errs[i] != nil {
			a.logger.Warn("获取传感器测量值失败", "sensor_id", ref.ID, "error", errs[i])
			failed = append(failed, ref.ID)
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		rows = append(rows, perSensor[i]...)
	}
	if len(refs) > 0 && len(failed) == len(refs) {
		return nil, nil, firstErr
	}
	return rows, failed, nil
}

func (a *Adapter) sensorMeasurements(ctx context.Context, req *Request, sensorID int64) ([]map[string]any, error) {
	q := url.Values{}
	if req.DateFrom != "" {
		q.Set("datetime_from", req.DateFrom)
	}
	if req.DateTo != "" {
		q.Set("datetime_to", req.DateTo)
	}
	plan := pagination.Plan{Policy: pagination.PolicyNone}
	if req.Limit > 0 {
		plan = pagination.Plan{
			Policy:        pagination.PolicyPage,
			PageSize:      min(req.Limit, maxPageSize),
			Limit:         req.Limit,
			MaxPages:      a.client.Settings.MaxPages,
			LimitParam:    "limit",
			PageParam:     "page",
			ShortPageEnds: true,
		}
	}
	path := "sensors/" + strconv.FormatInt(sensorID, 10) + "/measurements"
	res, err := a.client.Engine.Run(ctx, pagination.Request{Path: path, Query: q}, plan,
		pagination.JSONDecoder("results", "", ""))
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Discover 实现 port.Adapter 接口。参数目录加载失败时仍返回过滤条件说明。
func (a *Adapter) Discover(ctx context.Context) (*port.Discovery, error) {
	params, err := a.catalog.List(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	details := map[string]any{
		"filters":     filterDocs(),
		"max_sensors": a.maxSensors,
		"has_api_key": !a.client.Credentials.Empty(),
		"geographic_filtering": []string{
			"bbox=minLon,minLat,maxLon,maxLat",
			"coordinates=lat,lon radius=metres",
			"iso=CC",
		},
		"examples": []string{
			"pm25 coordinates=40.7128,-74.006 radius=10000",
			"* bbox=-74.1,40.6,-73.9,40.8 date_from=2024-01-01",
			"no2 iso=FR limit=100",
		},
	}
	if err != nil {
		a.logger.Warn("加载参数目录失败", "error", err)
		details["catalog_error"] = err.Error()
	}

	info := make(map[string]port.ParameterInfo, len(params))
	for _, p := range params {
		if _, dup := info[p.Name]; dup {
			continue
		}
		desc := p.DisplayName
		if p.Description != "" {
			desc = strings.TrimSpace(desc + " " + p.Description)
		}
		info[p.Name] = port.ParameterInfo{Name: p.Name, Type: "number", Description: desc, Units: p.Units}
	}
	details["total_parameters"] = len(info)

	return &port.Discovery{
		Adapter:     a.name,
		Type:        domain.TypeOpenAQ,
		Location:    a.client.BaseURL,
		Description: "OpenAQ 空气质量测量值，支持按地理范围、参数与时间过滤",
		Parameters:  info,
		Capabilities: map[string]bool{
			"geographic_filtering": true,
			"parameter_filtering":  true,
			"temporal_filtering":   true,
			"aggregation":          false,
		},
		Details: details,
	}, nil
}

// GetSchema 实现 port.Adapter 接口：唯一的 measurements 表。
func (a *Adapter) GetSchema(_ context.Context) (*port.SchemaResult, error) {
	searchable := map[string]bool{"parameter": true, "country_code": true, "datetime": true, "latitude": true, "longitude": true}
	fields := make([]port.FieldDescription, len(resultColumns))
	for i, c := range resultColumns {
		fields[i] = port.FieldDescription{Name: c.Name, DataType: c.DataType, IsSearchable: searchable[c.Name], IsReturnable: true}
	}
	return &port.SchemaResult{Tables: map[string][]port.FieldDescription{"measurements": fields}}, nil
}

func filterDocs() map[string]string {
	return map[string]string{
		keyBBox:           "minLon,minLat,maxLon,maxLat，与 coordinates 互斥",
		keyCoordinates:    "lat,lon，需同时给出 radius",
		keyRadius:         "搜索半径（米），1-25000",
		keyISO:            "ISO-3166-1 两字母国家代码",
		keyDateFrom:       "起始时间 YYYY-MM-DD 或 RFC3339",
		keyDateTo:         "结束时间 YYYY-MM-DD 或 RFC3339",
		keyLimit:          "每个传感器的测量值上限，1-10000",
		keyLocationsLimit: "站点数量上限，1-1000，默认 100",
	}
}

func joinFloats(fs []float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
