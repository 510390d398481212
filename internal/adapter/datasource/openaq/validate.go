// file: internal/adapter/datasource/openaq/validate.go
package openaq

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"DataAgents/internal/core/port"
	"DataAgents/internal/querylang"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// 过滤键
const (
	keyBBox           = "bbox"
	keyCoordinates    = "coordinates"
	keyRadius         = "radius"
	keyISO            = "iso"
	keyDateFrom       = "date_from"
	keyDateTo         = "date_to"
	keyLimit          = "limit"
	keyLocationsLimit = "locations_limit"
)

const (
	maxRadius             = 25000
	maxLimit              = 10000
	maxLocationsLimit     = 1000
	defaultLocationsLimit = 100
)

var knownKeys = []string{keyBBox, keyCoordinates, keyRadius, keyISO, keyDateFrom, keyDateTo, keyLimit, keyLocationsLimit}

// Request 是通过校验的测量值查询
type Request struct {
	// Parameter 为空表示全部参数
	Parameter string
	BBox      []float64
	// Coordinates 为 [lat, lon]
	Coordinates []float64
	Radius      int
	ISO         string
	DateFrom    string
	DateTo      string
	// Limit 是每个传感器取回的测量值上限，0 表示使用数据提供方默认值
	Limit          int
	LocationsLimit int
}

// Validate 在任何网络调用之前检查查询。第一个自由文本词是参数名或 `*`。
func Validate(spec *querylang.Spec) (*Request, error) {
	if spec.IsEmpty() {
		return nil, port.Invalid("parameter", "required", "")
	}
	if len(spec.Terms) > 1 {
		return nil, port.Invalid("parameter", "single-parameter", strings.Join(spec.Terms, " "))
	}

	req := &Request{LocationsLimit: defaultLocationsLimit}
	if t := spec.FirstTerm(); t != "" && t != querylang.Wildcard {
		req.Parameter = t
	}

	for _, key := range spec.Keys() {
		if !slices.Contains(knownKeys, key) {
			return nil, port.Invalid(key, "unknown-key", strings.Join(spec.Values(key), ","))
		}
	}

	var err error
	if spec.Has(keyBBox) {
		if req.BBox, err = parseBBox(spec.Values(keyBBox)); err != nil {
			return nil, err
		}
	}
	if spec.Has(keyCoordinates) {
		if spec.Has(keyBBox) {
			return nil, port.Invalid(keyCoordinates, "excluded_with=bbox", strings.Join(spec.Values(keyCoordinates), ","))
		}
		if req.Coordinates, err = parseCoordinates(spec.Values(keyCoordinates)); err != nil {
			return nil, err
		}
		if !spec.Has(keyRadius) {
			return nil, port.Invalid(keyRadius, "required_with=coordinates", "")
		}
	}
	if spec.Has(keyRadius) {
		if !spec.Has(keyCoordinates) {
			return nil, port.Invalid(keyRadius, "requires=coordinates", strings.Join(spec.Values(keyRadius), ","))
		}
		if req.Radius, err = intInRange(keyRadius, spec.Values(keyRadius), 1, maxRadius); err != nil {
			return nil, err
		}
	}
	if spec.Has(keyISO) {
		v, err := single(keyISO, spec.Values(keyISO))
		if err != nil {
			return nil, err
		}
		if err := validate.Var(v, "iso3166_1_alpha2"); err != nil {
			return nil, port.Invalid(keyISO, "iso3166_1_alpha2", v)
		}
		req.ISO = v
	}

	var from, to time.Time
	if spec.Has(keyDateFrom) {
		if req.DateFrom, from, err = parseDate(keyDateFrom, spec.Values(keyDateFrom)); err != nil {
			return nil, err
		}
	}
	if spec.Has(keyDateTo) {
		if req.DateTo, to, err = parseDate(keyDateTo, spec.Values(keyDateTo)); err != nil {
			return nil, err
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, port.Invalid(keyDateFrom, "date_from<=date_to", req.DateFrom+","+req.DateTo)
	}

	if spec.Has(keyLimit) {
		if req.Limit, err = intInRange(keyLimit, spec.Values(keyLimit), 1, maxLimit); err != nil {
			return nil, err
		}
	}
	if spec.Has(keyLocationsLimit) {
		if req.LocationsLimit, err = intInRange(keyLocationsLimit, spec.Values(keyLocationsLimit), 1, maxLocationsLimit); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// parseBBox 解析 minLon,minLat,maxLon,maxLat
func parseBBox(vals []string) ([]float64, error) {
	raw := strings.Join(vals, ",")
	if len(vals) != 4 {
		return nil, port.Invalid(keyBBox, "len=4", raw)
	}
	nums, err := floats(keyBBox, vals)
	if err != nil {
		return nil, err
	}
	for i, rule := range []string{"gte=-180,lte=180", "gte=-90,lte=90", "gte=-180,lte=180", "gte=-90,lte=90"} {
		if err := validate.Var(nums[i], rule); err != nil {
			return nil, port.Invalid(keyBBox, rule, vals[i])
		}
	}
	if nums[0] >= nums[2] {
		return nil, port.Invalid(keyBBox, "min_lon<max_lon", raw)
	}
	if nums[1] >= nums[3] {
		return nil, port.Invalid(keyBBox, "min_lat<max_lat", raw)
	}
	return nums, nil
}

// parseCoordinates 解析 lat,lon
func parseCoordinates(vals []string) ([]float64, error) {
	if len(vals) != 2 {
		return nil, port.Invalid(keyCoordinates, "len=2", strings.Join(vals, ","))
	}
	nums, err := floats(keyCoordinates, vals)
	if err != nil {
		return nil, err
	}
	if err := validate.Var(nums[0], "gte=-90,lte=90"); err != nil {
		return nil, port.Invalid(keyCoordinates, "gte=-90,lte=90", vals[0])
	}
	if err := validate.Var(nums[1], "gte=-180,lte=180"); err != nil {
		return nil, port.Invalid(keyCoordinates, "gte=-180,lte=180", vals[1])
	}
	return nums, nil
}

func floats(key string, vals []string) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, port.Invalid(key, "numeric", v)
		}
		out[i] = f
	}
	return out, nil
}

func single(key string, vals []string) (string, error) {
	if len(vals) != 1 {
		return "", port.Invalid(key, "single-value", strings.Join(vals, ","))
	}
	return vals[0], nil
}

func intInRange(key string, vals []string, lo, hi int) (int, error) {
	v, err := single(key, vals)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, port.Invalid(key, "integer", v)
	}
	rule := fmt.Sprintf("gte=%d,lte=%d", lo, hi)
	if err := validate.Var(n, rule); err != nil {
		return 0, port.Invalid(key, rule, v)
	}
	return n, nil
}

// parseDate 接受 YYYY-MM-DD 或 RFC3339，原样转发给数据提供方
func parseDate(key string, vals []string) (string, time.Time, error) {
	v, err := single(key, vals)
	if err != nil {
		return "", time.Time{}, err
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return v, t, nil
		}
	}
	return "", time.Time{}, port.Invalid(key, "YYYY-MM-DD|RFC3339", v)
}
