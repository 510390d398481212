// Package port file: internal/core/port/adapter.go
package port

import (
	"context"

	"DataAgents/internal/querylang"
)

// Column 描述结果集中的一列
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// ResultSet 是所有适配器 Query 的统一返回类型：带列描述的行集合。
// 各数据提供方的原生字段名与单位原样透传。
type ResultSet struct {
	Source  string           `json:"source"`
	Columns []Column         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Meta    map[string]any   `json:"meta,omitempty"`
}

// Len 返回行数
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// ParameterInfo 描述一个可查询参数（过滤键、参数代码、列名等）
type ParameterInfo struct {
	Name        string   `json:"name"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Units       string   `json:"units,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Allowed     []string `json:"allowed,omitempty"`
	Example     string   `json:"example,omitempty"`
}

// Discovery 是 Discover 的返回：适配器能力与参数说明
type Discovery struct {
	Adapter      string                   `json:"adapter"`
	Type         string                   `json:"type"`
	Location     string                   `json:"location,omitempty"`
	Description  string                   `json:"description,omitempty"`
	Parameters   map[string]ParameterInfo `json:"parameters,omitempty"`
	Capabilities map[string]bool          `json:"capabilities,omitempty"`
	Details      map[string]any           `json:"details,omitempty"`
}

// FieldDescription 描述了一个字段的元数据
type FieldDescription struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	IsSearchable bool   `json:"is_searchable"`
	IsReturnable bool   `json:"is_returnable"`
	Description  string `json:"description,omitempty"`
}

// SchemaResult 定义了数据源结构信息的返回，按记录类型（表、端点）分组
type SchemaResult struct {
	Tables map[string][]FieldDescription `json:"tables"`
}

// Adapter 是每一种数据提供方都必须实现的统一能力集。
// Router 只依赖这个接口，不感知任何具体实现。
type Adapter interface {
	// Name 返回适配器在 Router 中的唯一名称
	Name() string

	// Type 返回适配器的类型标识符 (tabular, rest, nasa_power, ...)
	Type() string

	// Query 执行一次查询。spec 只读，不得被实现修改。
	Query(ctx context.Context, spec *querylang.Spec) (*ResultSet, error)

	// Discover 返回能力与参数说明
	Discover(ctx context.Context) (*Discovery, error)

	// GetSchema 返回最小化的类型描述
	GetSchema(ctx context.Context) (*SchemaResult, error)
}
