// file: internal/pagination/plan.go
package pagination

import (
	"fmt"
	"net/url"
	"strings"
)

// Policy 是续页策略
type Policy string

const (
	// PolicyNone 只发一次请求
	PolicyNone Policy = "none"
	// PolicyOffset 每页偏移量累加已取回的行数
	PolicyOffset Policy = "offset"
	// PolicyPage 页码递增，偏移递增的一种变体
	PolicyPage Policy = "page"
	// PolicyCursor 使用上一页响应中的不透明游标
	PolicyCursor Policy = "cursor"
)

// ParsePolicy 将配置字符串转换为 Policy
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyNone, nil
	case PolicyNone, PolicyOffset, PolicyPage, PolicyCursor:
		return p, nil
	default:
		return "", fmt.Errorf("未知的分页策略 '%s'", s)
	}
}

// DefaultMaxPages 是防止数据提供方永不结束时的页数安全上限
const DefaultMaxPages = 100

// Plan 描述一次分页执行
type Plan struct {
	Policy Policy
	// PageSize 为每页请求的行数，0 表示不发送页大小参数
	PageSize int
	// Limit 为总行数上限，0 表示不限（仍受 MaxPages 约束）
	Limit    int
	MaxPages int

	LimitParam  string
	OffsetParam string
	PageParam   string
	CursorParam string

	StartOffset int
	// ShortPageEnds 为 true 时，行数少于请求页大小的页视为最后一页
	ShortPageEnds bool
}

func (p Plan) normalized() Plan {
	if p.Policy == "" {
		p.Policy = PolicyNone
	}
	if p.MaxPages <= 0 {
		p.MaxPages = DefaultMaxPages
	}
	if p.OffsetParam == "" {
		p.OffsetParam = "offset"
	}
	if p.PageParam == "" {
		p.PageParam = "page"
	}
	if p.CursorParam == "" {
		p.CursorParam = "cursor"
	}
	return p
}

// pageQuery 在基础查询参数之上叠加当前页的分页参数
func (p Plan) pageQuery(base url.Values, state *PageState, pageSize int) url.Values {
	q := url.Values{}
	for k, vs := range base {
		q[k] = append([]string(nil), vs...)
	}
	if p.LimitParam != "" && pageSize > 0 {
		q.Set(p.LimitParam, itoa(pageSize))
	}
	switch p.Policy {
	case PolicyOffset:
		q.Set(p.OffsetParam, itoa(state.Offset))
	case PolicyPage:
		q.Set(p.PageParam, itoa(state.PageNumber))
	case PolicyCursor:
		if state.Cursor != "" {
			q.Set(p.CursorParam, state.Cursor)
		}
	}
	return q
}

// Page 是解析后的一页
type Page struct {
	Rows []map[string]any
	// Done 表示数据提供方明确声明没有更多数据
	Done       bool
	NextCursor string
	Meta       map[string]any
}

// Decoder 将一页响应体解析为 Page
type Decoder func(body []byte) (*Page, error)
