// file: internal/adapter/datasource/nasapower/validate.go
package nasapower

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"DataAgents/internal/core/port"
	"DataAgents/internal/querylang"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// 枚举取值
var (
	Communities  = []string{"AG", "RE", "SB"}
	Temporals    = []string{"daily", "monthly", "climatology", "hourly"}
	SpatialTypes = []string{"point", "regional"}
)

const (
	// minRegionSpan 区域查询每个方向的最小跨度（度），用于拒绝退化的边界框
	minRegionSpan = 2.0
	// maxRegionSpan 数据提供方允许的区域查询最大跨度（度）
	maxRegionSpan = 10.0
	// maxParameters 单次请求最多参数个数
	maxParameters = 20

	climatologyStart = "2001"
	climatologyEnd   = "2020"
)

// optionalParams 可选过滤键到数据提供方参数名的映射，值为 validator 规则
var optionalParams = map[string]struct {
	apiName string
	rule    string
}{
	"format":         {apiName: "format", rule: "oneof=JSON json"},
	"units":          {apiName: "units", rule: "oneof=metric imperial"},
	"time_standard":  {apiName: "time-standard", rule: "oneof=UTC LST utc lst"},
	"site_elevation": {apiName: "site-elevation", rule: "numeric"},
	"wind_elevation": {apiName: "wind-elevation", rule: "numeric"},
	"wind_surface":   {apiName: "wind-surface", rule: "min=1"},
}

// 空间与时间过滤键
const (
	keyCommunity   = "community"
	keyTemporal    = "temporal"
	keySpatialType = "spatial_type"
	keyStart       = "start"
	keyEnd         = "end"
	keyLatitude    = "latitude"
	keyLongitude   = "longitude"
	keyLatMin      = "latitude_min"
	keyLatMax      = "latitude_max"
	keyLonMin      = "longitude_min"
	keyLonMax      = "longitude_max"
)

var knownKeys = map[string]bool{
	keyCommunity: true, keyTemporal: true, keySpatialType: true, keyStart: true, keyEnd: true,
	keyLatitude: true, keyLongitude: true, keyLatMin: true, keyLatMax: true, keyLonMin: true, keyLonMax: true,
}

// Request 是一次通过校验的数据请求，可直接转换为 URL
type Request struct {
	Parameters  []string
	Community   string
	Temporal    string
	SpatialType string
	Start       string
	End         string
	// Point 为 latitude, longitude
	Point [2]float64
	// Region 为 latitude_min, latitude_max, longitude_min, longitude_max
	Region [4]float64
	// Extra 是已映射为数据提供方参数名的可选参数
	Extra url.Values
	raw   map[string]string
}

// Path 返回相对基础地址的数据端点路径
func (r *Request) Path() string {
	return "api/temporal/" + r.Temporal + "/" + r.SpatialType
}

// Values 返回完整的 URL 查询参数
func (r *Request) Values() url.Values {
	q := url.Values{}
	q.Set("parameters", strings.Join(r.Parameters, ","))
	q.Set("community", r.Community)
	q.Set("start", r.Start)
	q.Set("end", r.End)
	if r.SpatialType == "point" {
		q.Set("latitude", r.raw[keyLatitude])
		q.Set("longitude", r.raw[keyLongitude])
	} else {
		q.Set("latitude-min", r.raw[keyLatMin])
		q.Set("latitude-max", r.raw[keyLatMax])
		q.Set("longitude-min", r.raw[keyLonMin])
		q.Set("longitude-max", r.raw[keyLonMax])
	}
	for k, vs := range r.Extra {
		q[k] = vs
	}
	if q.Get("format") == "" {
		q.Set("format", "JSON")
	}
	return q
}

// Validate 检查查询的完整组合，失败时返回命名字段与规则的 ValidationError。
// 该函数不做任何网络访问；参数代码是否存在由参数目录另行确认。
func Validate(spec *querylang.Spec) (*Request, error) {
	if spec.IsEmpty() || spec.HasWildcardTerm() || len(spec.Terms) == 0 {
		return nil, port.Invalid("parameters", "required", spec.FirstTerm())
	}

	req := &Request{raw: map[string]string{}, Extra: url.Values{}}
	for _, term := range spec.Terms {
		for _, code := range strings.Split(term, ",") {
			if code = strings.TrimSpace(code); code != "" {
				req.Parameters = append(req.Parameters, code)
			}
		}
	}
	if len(req.Parameters) == 0 {
		return nil, port.Invalid("parameters", "required", "")
	}
	if len(req.Parameters) > maxParameters {
		return nil, port.Invalid("parameters", fmt.Sprintf("max=%d", maxParameters), strconv.Itoa(len(req.Parameters)))
	}

	// 每个过滤键只允许单值
	for _, key := range spec.Keys() {
		vals := spec.Values(key)
		if len(vals) != 1 {
			return nil, port.Invalid(key, "single-value", strings.Join(vals, ","))
		}
		if opt, ok := optionalParams[key]; ok {
			if err := validate.Var(vals[0], opt.rule); err != nil {
				return nil, port.Invalid(key, opt.rule, vals[0])
			}
			req.Extra.Set(opt.apiName, vals[0])
			continue
		}
		if !knownKeys[key] {
			return nil, port.Invalid(key, "unknown-key", vals[0])
		}
		req.raw[key] = vals[0]
	}

	var err error
	if req.Community, err = enumValue(req.raw, keyCommunity, Communities); err != nil {
		return nil, err
	}
	if req.Temporal, err = enumValue(req.raw, keyTemporal, Temporals); err != nil {
		return nil, err
	}
	if req.SpatialType, err = enumValue(req.raw, keySpatialType, SpatialTypes); err != nil {
		return nil, err
	}

	switch req.SpatialType {
	case "point":
		if err := req.validatePoint(); err != nil {
			return nil, err
		}
	case "regional":
		if err := req.validateRegion(); err != nil {
			return nil, err
		}
	}

	if err := req.validateDates(); err != nil {
		return nil, err
	}
	return req, nil
}

func enumValue(raw map[string]string, key string, allowed []string) (string, error) {
	v, ok := raw[key]
	if !ok || v == "" {
		return "", port.Invalid(key, "required", "")
	}
	rule := "oneof=" + strings.Join(allowed, " ")
	if err := validate.Var(v, rule); err != nil {
		return "", port.Invalid(key, rule, v)
	}
	return v, nil
}

// coordinate 读取必填的坐标并检查范围
func coordinate(raw map[string]string, key string, limit float64) (float64, error) {
	v, ok := raw[key]
	if !ok || v == "" {
		return 0, port.Invalid(key, "required", "")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, port.Invalid(key, "numeric", v)
	}
	rule := fmt.Sprintf("gte=%g,lte=%g", -limit, limit)
	if err := validate.Var(f, rule); err != nil {
		return 0, port.Invalid(key, rule, v)
	}
	return f, nil
}

func (r *Request) validatePoint() error {
	lat, err := coordinate(r.raw, keyLatitude, 90)
	if err != nil {
		return err
	}
	lon, err := coordinate(r.raw, keyLongitude, 180)
	if err != nil {
		return err
	}
	r.Point = [2]float64{lat, lon}
	return nil
}

func (r *Request) validateRegion() error {
	latMin, err := coordinate(r.raw, keyLatMin, 90)
	if err != nil {
		return err
	}
	latMax, err := coordinate(r.raw, keyLatMax, 90)
	if err != nil {
		return err
	}
	lonMin, err := coordinate(r.raw, keyLonMin, 180)
	if err != nil {
		return err
	}
	lonMax, err := coordinate(r.raw, keyLonMax, 180)
	if err != nil {
		return err
	}

	if latMin >= latMax {
		return port.Invalid(keyLatMin, "latitude_min<latitude_max", r.raw[keyLatMin])
	}
	if lonMin >= lonMax {
		return port.Invalid(keyLonMin, "longitude_min<longitude_max", r.raw[keyLonMin])
	}
	if span := latMax - latMin; span < minRegionSpan || span > maxRegionSpan {
		return port.Invalid("latitude", fmt.Sprintf("span in [%g,%g]", minRegionSpan, maxRegionSpan), strconv.FormatFloat(span, 'f', -1, 64))
	}
	if span := lonMax - lonMin; span < minRegionSpan || span > maxRegionSpan {
		return port.Invalid("longitude", fmt.Sprintf("span in [%g,%g]", minRegionSpan, maxRegionSpan), strconv.FormatFloat(span, 'f', -1, 64))
	}
	r.Region = [4]float64{latMin, latMax, lonMin, lonMax}
	return nil
}

// validateDates 按时间频率检查 start / end
func (r *Request) validateDates() error {
	start, hasStart := r.raw[keyStart]
	end, hasEnd := r.raw[keyEnd]

	switch r.Temporal {
	case "daily", "hourly":
		if !hasStart {
			return port.Invalid(keyStart, "required", "")
		}
		if !hasEnd {
			return port.Invalid(keyEnd, "required", "")
		}
		s, err := parseDay(keyStart, start)
		if err != nil {
			return err
		}
		e, err := parseDay(keyEnd, end)
		if err != nil {
			return err
		}
		if s.After(e) {
			return port.Invalid(keyStart, "start<=end", start)
		}
	case "monthly", "climatology":
		if r.Temporal == "climatology" {
			if !hasStart {
				start = climatologyStart
			}
			if !hasEnd {
				end = climatologyEnd
			}
		} else {
			if !hasStart {
				return port.Invalid(keyStart, "required", "")
			}
			if !hasEnd {
				return port.Invalid(keyEnd, "required", "")
			}
		}
		if err := validate.Var(start, "len=4,numeric"); err != nil {
			return port.Invalid(keyStart, "YYYY", start)
		}
		if err := validate.Var(end, "len=4,numeric"); err != nil {
			return port.Invalid(keyEnd, "YYYY", end)
		}
		if start > end {
			return port.Invalid(keyStart, "start<=end", start)
		}
	}
	r.Start, r.End = start, end
	return nil
}

func parseDay(key, v string) (time.Time, error) {
	if err := validate.Var(v, "len=8,numeric"); err != nil {
		return time.Time{}, port.Invalid(key, "YYYYMMDD", v)
	}
	t, err := time.Parse("20060102", v)
	if err != nil {
		return time.Time{}, port.Invalid(key, "YYYYMMDD", v)
	}
	return t, nil
}
