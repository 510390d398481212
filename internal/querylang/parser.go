// Package querylang file: internal/querylang/parser.go
//
// 查询迷你语言：以空白分隔的 token，`key=value` 在第一个 '=' 处切分，
// 值中的逗号表示多值列表，裸 token 作为自由文本词，单独的 `*` 表示“全部”。
package querylang

import (
	"slices"
	"strings"
)

// Wildcard 是“选择全部”的约定记号。
const Wildcard = "*"

// Spec 是一次查询字符串解析后的结构化表示。
// 解析后视为只读；需要修改时请先 Clone。
type Spec struct {
	// Raw 原始查询字符串，仅用于诊断，不参与相等比较
	Raw string

	// Terms 自由文本词，保持出现顺序
	Terms []string

	// keys 记录过滤键首次出现的顺序，保证序列化结果稳定
	keys    []string
	filters map[string][]string
}

// Parse 将原始查询字符串解析为 Spec。任何输入都是合法的，不做类型转换。
func Parse(raw string) *Spec {
	s := &Spec{Raw: raw}
	for _, tok := range strings.Fields(raw) {
		key, value, found := strings.Cut(tok, "=")
		if !found {
			s.Terms = append(s.Terms, tok)
			continue
		}
		s.Add(key, strings.Split(value, ",")...)
	}
	return s
}

// Add 向 key 追加值；重复的 key 扩展同一列表而不是覆盖。
func (s *Spec) Add(key string, values ...string) {
	if s.filters == nil {
		s.filters = make(map[string][]string)
	}
	if _, exists := s.filters[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.filters[key] = append(s.filters[key], values...)
}

// IsEmpty 报告该查询既无自由文本词也无过滤条件。
func (s *Spec) IsEmpty() bool {
	return s == nil || (len(s.Terms) == 0 && len(s.keys) == 0)
}

// IsWildcard 报告该查询是否恰好是单独的 `*`。
func (s *Spec) IsWildcard() bool {
	return s != nil && len(s.Terms) == 1 && s.Terms[0] == Wildcard && len(s.keys) == 0
}

// HasWildcardTerm 报告自由文本词中是否包含 `*`（可与过滤条件并存）。
func (s *Spec) HasWildcardTerm() bool {
	return s != nil && slices.Contains(s.Terms, Wildcard)
}

// FirstTerm 返回第一个自由文本词，没有时返回空串。
func (s *Spec) FirstTerm() string {
	if s == nil || len(s.Terms) == 0 {
		return ""
	}
	return s.Terms[0]
}

// Keys 按首次出现顺序返回全部过滤键。
func (s *Spec) Keys() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.keys)
}

// Has 报告是否存在过滤键 key。
func (s *Spec) Has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.filters[key]
	return ok
}

// Values 返回 key 对应的全部值（副本）。
func (s *Spec) Values(key string) []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.filters[key])
}

// Get 返回 key 的第一个值。
func (s *Spec) Get(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	vals, ok := s.filters[key]
	if !ok || len(vals) == 0 {
		return "", ok
	}
	return vals[0], true
}

// Filters 返回过滤条件的深拷贝。
func (s *Spec) Filters() map[string][]string {
	if s == nil {
		return map[string][]string{}
	}
	out := make(map[string][]string, len(s.keys))
	for _, k := range s.keys {
		out[k] = slices.Clone(s.filters[k])
	}
	return out
}

// Without 返回去掉指定过滤键后的副本，常用于剥离适配器自身的保留键。
func (s *Spec) Without(keys ...string) *Spec {
	out := &Spec{Raw: s.Raw, Terms: slices.Clone(s.Terms)}
	for _, k := range s.keys {
		if slices.Contains(keys, k) {
			continue
		}
		out.Add(k, s.filters[k]...)
	}
	return out
}

// Clone 返回深拷贝。
func (s *Spec) Clone() *Spec {
	if s == nil {
		return nil
	}
	return s.Without()
}

// Equal 比较自由文本词与过滤条件（包括键顺序无关的多值列表），忽略 Raw。
func (s *Spec) Equal(o *Spec) bool {
	if s.IsEmpty() || o.IsEmpty() {
		return s.IsEmpty() && o.IsEmpty()
	}
	if !slices.Equal(s.Terms, o.Terms) || len(s.filters) != len(o.filters) {
		return false
	}
	for k, v := range s.filters {
		ov, ok := o.filters[k]
		if !ok || !slices.Equal(v, ov) {
			return false
		}
	}
	return true
}

// String 将 Spec 重新序列化为查询字符串；Parse(s.String()) 与 s 相等。
func (s *Spec) String() string {
	if s == nil {
		return ""
	}
	parts := make([]string, 0, len(s.Terms)+len(s.keys))
	parts = append(parts, s.Terms...)
	for _, k := range s.keys {
		parts = append(parts, k+"="+strings.Join(s.filters[k], ","))
	}
	return strings.Join(parts, " ")
}
