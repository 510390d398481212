// file: internal/pagination/decode.go
package pagination

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// commonListKeys 是对象响应中常见的结果数组键
var commonListKeys = []string{"results", "data", "items", "records"}

// JSONDecoder 返回通用 JSON 解码器：
// 数组 → 行；对象 → resultsPath 指向的数组、常见列表键或单行；原始值 → {"value": v}。
// cursorPath / endPath 为点分路径，分别读取下一页游标与“没有更多数据”标志。
func JSONDecoder(resultsPath, cursorPath, endPath string) Decoder {
	return func(body []byte) (*Page, error) {
		doc, err := DecodeJSON(body)
		if err != nil {
			return nil, err
		}

		page := &Page{}
		switch v := doc.(type) {
		case []any:
			page.Rows = ToRows(v)
		case map[string]any:
			if list, key, ok := findList(v, resultsPath); ok {
				page.Rows = ToRows(list)
				page.Meta = siblings(v, key)
			} else {
				page.Rows = []map[string]any{v}
				page.Done = true
			}
			if cursorPath != "" {
				if c, ok := Lookup(v, cursorPath); ok && c != nil {
					page.NextCursor = fmt.Sprint(c)
				}
			}
			if endPath != "" {
				if end, ok := Lookup(v, endPath); ok {
					if b, isBool := end.(bool); isBool && b {
						page.Done = true
					}
				}
			}
		default:
			page.Rows = []map[string]any{{"value": v}}
			page.Done = true
		}
		return page, nil
	}
}

// DecodeJSON 使用 UseNumber 解码，避免大整数精度丢失
func DecodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("响应不是合法的 JSON: %w", err)
	}
	return doc, nil
}

// ToRows 将 JSON 数组转换为行；非对象元素包装为 {"value": v}
func ToRows(list []any) []map[string]any {
	rows := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			rows = append(rows, m)
			continue
		}
		rows = append(rows, map[string]any{"value": item})
	}
	return rows
}

// Lookup 按点分路径读取嵌套对象中的值
func Lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// findList 返回结果数组及其所在的顶层键
func findList(obj map[string]any, resultsPath string) ([]any, string, bool) {
	if resultsPath != "" {
		top, _, _ := strings.Cut(resultsPath, ".")
		v, ok := Lookup(obj, resultsPath)
		if !ok {
			return []any{}, top, true
		}
		list, ok := v.([]any)
		return list, top, ok
	}
	for _, k := range commonListKeys {
		if list, ok := obj[k].([]any); ok {
			return list, k, true
		}
	}
	return nil, "", false
}

// siblings 收集结果数组之外的顶层字段（总数、分页信息等）
func siblings(obj map[string]any, listKey string) map[string]any {
	var meta map[string]any
	for k, v := range obj {
		if k == listKey {
			continue
		}
		if meta == nil {
			meta = make(map[string]any, len(obj)-1)
		}
		meta[k] = v
	}
	return meta
}
