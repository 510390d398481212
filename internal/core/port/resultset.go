// file: internal/core/port/resultset.go
package port

import (
	"encoding/json"
	"sort"
)

// NewResultSet 用行数据构造 ResultSet，列描述由 InferColumns 推断。
func NewResultSet(source string, rows []map[string]any, meta map[string]any) *ResultSet {
	if rows == nil {
		rows = []map[string]any{}
	}
	return &ResultSet{Source: source, Columns: InferColumns(rows), Rows: rows, Meta: meta}
}

// InferColumns 汇总所有行出现过的字段，按名称排序；类型取第一个非空值的类型，
// 不同行类型不一致时记为 "mixed"。
func InferColumns(rows []map[string]any) []Column {
	types := make(map[string]string)
	for _, row := range rows {
		for k, v := range row {
			t := ValueType(v)
			prev, seen := types[k]
			switch {
			case !seen || prev == "null":
				types[k] = t
			case t != "null" && t != prev:
				types[k] = "mixed"
			}
		}
	}
	names := make([]string, 0, len(types))
	for k := range types {
		names = append(names, k)
	}
	sort.Strings(names)

	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, DataType: types[n]}
	}
	return cols
}

// ValueType 返回单个 JSON 风格值的类型名
func ValueType(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int32, int64:
		return "integer"
	case float32, float64:
		return "float"
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return "integer"
		}
		return "float"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}
