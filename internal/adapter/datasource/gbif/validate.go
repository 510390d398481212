// file: internal/adapter/datasource/gbif/validate.go
package gbif

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"DataAgents/internal/core/port"
	"DataAgents/internal/querylang"

	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
)

var validate = validator.New()

const (
	defaultLimit = 20
	maxLimit     = 100000
	maxOffset    = 100000
	// maxPageSize 是数据提供方单页返回的最大记录数
	maxPageSize = 300
)

// Request 是通过校验的检索请求
type Request struct {
	// Query 不含 limit / offset，分页参数由分页引擎逐页设置
	Query  url.Values
	Limit  int
	Offset int
}

// Validate 在发出请求前检查全部检索参数。
// 空查询被拒绝；`*` 表示不带全文检索词；其余自由文本词合并为 q。
func Validate(spec *querylang.Spec) (*Request, error) {
	if spec.IsEmpty() {
		return nil, port.Invalid("q", "required", "")
	}

	req := &Request{Query: url.Values{}, Limit: defaultLimit}
	if !spec.HasWildcardTerm() && len(spec.Terms) > 0 {
		req.Query.Set("q", strings.Join(spec.Terms, " "))
	}

	for _, rawKey := range spec.Keys() {
		key, ps, ok := lookupParam(rawKey)
		if !ok {
			return nil, &port.UnknownParameterError{Name: rawKey, Provider: "gbif", Suggestions: similarParams(rawKey)}
		}
		vals := spec.Values(rawKey)

		switch key {
		case "limit", "offset":
			n, err := intInRange(key, vals, ps.min, ps.max)
			if err != nil {
				return nil, err
			}
			if key == "limit" {
				req.Limit = n
			} else {
				req.Offset = n
			}
			continue
		case "q":
			if req.Query.Has("q") {
				return nil, port.Invalid("q", "single-value", strings.Join(vals, ","))
			}
		}

		switch ps.kind {
		case kindRange, kindDateRange:
			v, err := rangeValue(key, ps, vals)
			if err != nil {
				return nil, err
			}
			req.Query.Add(key, v)
		default:
			if ps.joined {
				vals = []string{strings.Join(vals, ",")}
			}
			if err := addEach(req.Query, key, ps, vals); err != nil {
				return nil, err
			}
		}
	}
	return req, nil
}

// addEach 校验每个子值并作为重复参数追加
func addEach(q url.Values, key string, ps paramSpec, vals []string) error {
	for _, v := range vals {
		if err := checkValue(key, ps, v); err != nil {
			return err
		}
		q.Add(key, v)
	}
	return nil
}

// lookupParam 先按原样查找参数，再尝试 snake_case → lowerCamelCase
func lookupParam(key string) (string, paramSpec, bool) {
	if ps, ok := searchParams[key]; ok {
		return key, ps, true
	}
	camel := strcase.ToLowerCamel(key)
	ps, ok := searchParams[camel]
	return camel, ps, ok
}

func similarParams(key string) []string {
	needle := strings.ToLower(strcase.ToLowerCamel(key))
	var out []string
	for name := range searchParams {
		lower := strings.ToLower(name)
		if strings.Contains(lower, needle) || strings.Contains(needle, lower) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func intInRange(key string, vals []string, lo, hi float64) (int, error) {
	if len(vals) != 1 {
		return 0, port.Invalid(key, "single-value", strings.Join(vals, ","))
	}
	n, err := strconv.Atoi(vals[0])
	rule := fmt.Sprintf("gte=%g,lte=%g", lo, hi)
	if err != nil {
		return 0, port.Invalid(key, "integer", vals[0])
	}
	if err := validate.Var(n, rule); err != nil {
		return 0, port.Invalid(key, rule, vals[0])
	}
	return n, nil
}

// checkValue 校验单值参数
func checkValue(key string, ps paramSpec, v string) error {
	var rule string
	switch ps.kind {
	case kindString:
		rule = "required"
	case kindInt:
		rule = "required,number"
	case kindBool:
		rule = "oneof=true false"
	case kindEnum:
		rule = "oneof=" + strings.Join(ps.allowed, " ")
	case kindCountry:
		rule = "iso3166_1_alpha2"
	case kindUUID:
		rule = "uuid"
	}
	if err := validate.Var(v, rule); err != nil {
		return port.Invalid(key, rule, v)
	}
	return nil
}

// rangeValue 校验单值或两值区间，并合并为数据提供方的 "lo,hi" 形式
func rangeValue(key string, ps paramSpec, vals []string) (string, error) {
	if len(vals) > 2 {
		return "", port.Invalid(key, "value-or-range", strings.Join(vals, ","))
	}
	parse := func(v string) (float64, error) {
		if ps.kind == kindDateRange {
			t, err := parseEventDate(v)
			if err != nil {
				return 0, port.Invalid(key, "yyyy|yyyy-MM|yyyy-MM-dd", v)
			}
			return float64(t.Unix()), nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, port.Invalid(key, "numeric", v)
		}
		rule := fmt.Sprintf("gte=%g,lte=%g", ps.min, ps.max)
		if err := validate.Var(f, rule); err != nil {
			return 0, port.Invalid(key, rule, v)
		}
		return f, nil
	}

	if len(vals) == 1 {
		if vals[0] == "*" {
			return "", port.Invalid(key, "value-or-range", vals[0])
		}
		if _, err := parse(vals[0]); err != nil {
			return "", err
		}
		return vals[0], nil
	}

	lo, hi := vals[0], vals[1]
	if lo == "*" && hi == "*" {
		return "", port.Invalid(key, "value-or-range", lo+","+hi)
	}
	var loV, hiV float64
	var err error
	if lo != "*" {
		if loV, err = parse(lo); err != nil {
			return "", err
		}
	}
	if hi != "*" {
		if hiV, err = parse(hi); err != nil {
			return "", err
		}
	}
	if lo != "*" && hi != "*" && loV > hiV {
		return "", port.Invalid(key, "lo<=hi", lo+","+hi)
	}
	return lo + "," + hi, nil
}

func parseEventDate(v string) (time.Time, error) {
	var lastErr error
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
