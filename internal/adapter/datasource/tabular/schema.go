// file: internal/adapter/datasource/tabular/schema.go
package tabular

import (
	"context"
	"fmt"
	"time"

	"DataAgents/internal/core/domain"
	"DataAgents/internal/core/port"

	sq "github.com/Masterminds/squirrel"
)

// GetSchema 实现 port.Adapter 接口，返回当前表的列描述。所有列均可过滤、可返回。
func (a *Adapter) GetSchema(_ context.Context) (*port.SchemaResult, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return nil, fmt.Errorf("表格适配器 '%s' 已关闭", a.name)
	}

	fields := make([]port.FieldDescription, len(a.columns))
	for i, c := range a.columns {
		fields[i] = port.FieldDescription{
			Name:         c.Name,
			DataType:     c.DataType,
			IsSearchable: true,
			IsReturnable: true,
		}
	}
	return &port.SchemaResult{Tables: map[string][]port.FieldDescription{a.table: fields}}, nil
}

// Discover 实现 port.Adapter 接口：列、类型、行数与少量样例行。
func (a *Adapter) Discover(ctx context.Context) (*port.Discovery, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return nil, fmt.Errorf("表格适配器 '%s' 已关闭", a.name)
	}

	params := make(map[string]port.ParameterInfo, len(a.columns)+3)
	columns := make([]string, len(a.columns))
	dtypes := make(map[string]string, len(a.columns))
	for i, c := range a.columns {
		columns[i] = c.Name
		dtypes[c.Name] = c.DataType
		params[c.Name] = port.ParameterInfo{Name: c.Name, Type: c.DataType, Description: "列过滤，多值以逗号分隔"}
	}
	params[keyLimit] = port.ParameterInfo{Name: keyLimit, Type: "integer", Description: "最多返回的行数"}
	params[keyOffset] = port.ParameterInfo{Name: keyOffset, Type: "integer", Description: "跳过的行数"}
	params[keyOrder] = port.ParameterInfo{Name: keyOrder, Type: "string", Description: "排序列，前缀 '-' 表示降序", Example: "-" + firstOr(columns, "id")}

	sampleQuery := sq.Select("*").From(quoteIdent(a.table)).Limit(sampleRows)
	if a.fromCSV {
		sampleQuery = sampleQuery.OrderBy("rowid")
	}
	sqlQuery, args, err := sampleQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("构建样例查询失败: %w", err)
	}
	rows, err := a.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("读取样例行失败: %w", err)
	}
	defer rows.Close()
	samples, _, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	return &port.Discovery{
		Adapter:     a.name,
		Type:        domain.TypeTabular,
		Location:    a.location,
		Description: "本地或远程表格数据（CSV/TSV/SQLite）",
		Parameters:  params,
		Capabilities: map[string]bool{
			"filter":     true,
			"projection": true,
			"pagination": true,
			"hot_reload": a.settings.Watch,
		},
		Details: map[string]any{
			"table":       a.table,
			"columns":     columns,
			"dtypes":      dtypes,
			"row_count":   a.rowCount,
			"sample_rows": samples,
			"loaded_at":   a.loadedAt.Format(time.RFC3339),
		},
	}, nil
}

func firstOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}
