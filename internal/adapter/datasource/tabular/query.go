// file: internal/adapter/datasource/tabular/query.go
package tabular

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"DataAgents/internal/core/port"
	"DataAgents/internal/observe"
	"DataAgents/internal/querylang"

	sq "github.com/Masterminds/squirrel"
)

// 保留的控制键，带下划线前缀以免与列名冲突
const (
	keyLimit  = "_limit"
	keyOffset = "_offset"
	keyOrder  = "_order"
)

// Query 实现 port.Adapter 接口。
//
//   - 空查询返回只含列描述的空结果；
//   - `*` 或 `all` 返回全部行；
//   - 裸词为列名时只返回这些列；
//   - key=value 为等值过滤，多值为 IN。
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
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return nil, fmt.Errorf("表格适配器 '%s' 已关闭", a.name)
	}

	if spec.IsEmpty() {
		return &port.ResultSet{Source: a.name, Columns: a.resultColumns(nil), Rows: []map[string]any{}}, nil
	}

	builder, selected, err := a.buildSelect(spec)
	if err != nil {
		return nil, err
	}
	sqlQuery, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("构建 SQL 失败: %w", err)
	}
	a.logger.Debug("执行表格查询", "sql", sqlQuery, "args", args)

	rows, err := a.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("查询表 '%s' 失败: %w", a.table, err)
	}
	defer rows.Close()

	data, _, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("迭代表 '%s' 行数据时发生错误: %w", a.table, err)
	}
	return &port.ResultSet{
		Source:  a.name,
		Columns: a.resultColumns(selected),
		Rows:    data,
		Meta:    map[string]any{"table": a.table, "total_rows": a.rowCount},
	}, nil
}

// buildSelect 校验查询中的列名与控制键，并用 squirrel 构建 SELECT。调用前必须持有读锁。
func (a *Adapter) buildSelect(spec *querylang.Spec) (sq.SelectBuilder, []string, error) {
	known := make(map[string]bool, len(a.columns))
	for _, c := range a.columns {
		known[c.Name] = true
	}

	var selected []string
	selectAll := false
	for _, term := range spec.Terms {
		switch {
		case term == querylang.Wildcard || strings.EqualFold(term, "all"):
			selectAll = true
		case known[term]:
			selected = append(selected, term)
		default:
			return sq.SelectBuilder{}, nil, &port.UnknownParameterError{Name: term, Provider: a.name, Suggestions: a.columnNames()}
		}
	}
	if selectAll || len(selected) == 0 {
		selected = nil
	}

	projection := []string{"*"}
	if len(selected) > 0 {
		projection = make([]string, len(selected))
		for i, c := range selected {
			projection[i] = quoteIdent(c)
		}
	}
	builder := sq.Select(projection...).From(quoteIdent(a.table))

	eq := sq.Eq{}
	for _, key := range spec.Keys() {
		vals := spec.Values(key)
		switch key {
		case keyLimit, keyOffset, keyOrder:
			continue
		}
		if !known[key] {
			return sq.SelectBuilder{}, nil, &port.UnknownParameterError{Name: key, Provider: a.name, Suggestions: a.columnNames()}
		}
		if len(vals) == 1 {
			eq[quoteIdent(key)] = vals[0]
		} else {
			eq[quoteIdent(key)] = vals
		}
	}
	if len(eq) > 0 {
		builder = builder.Where(eq)
	}

	if order, ok := spec.Get(keyOrder); ok {
		desc := strings.HasPrefix(order, "-")
		col := strings.TrimPrefix(order, "-")
		if !known[col] {
			return sq.SelectBuilder{}, nil, port.Invalid(keyOrder, "known-column", order)
		}
		if desc {
			builder = builder.OrderBy(quoteIdent(col) + " DESC")
		} else {
			builder = builder.OrderBy(quoteIdent(col))
		}
	} else if a.fromCSV {
		// 保持文件中的原始行序
		builder = builder.OrderBy("rowid")
	}

	limit, hasLimit, err := nonNegative(spec, keyLimit)
	if err != nil {
		return sq.SelectBuilder{}, nil, err
	}
	offset, hasOffset, err := nonNegative(spec, keyOffset)
	if err != nil {
		return sq.SelectBuilder{}, nil, err
	}
	if hasLimit {
		builder = builder.Limit(limit)
	} else if hasOffset {
		// SQLite 要求 OFFSET 前必须有 LIMIT
		builder = builder.Limit(math.MaxInt64)
	}
	if hasOffset {
		builder = builder.Offset(offset)
	}
	return builder, selected, nil
}

func nonNegative(spec *querylang.Spec, key string) (uint64, bool, error) {
	raw, ok := spec.Get(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(raw, 10, 63)
	if err != nil {
		return 0, false, port.Invalid(key, "non-negative-integer", raw)
	}
	return n, true, nil
}

// resultColumns 返回结果列描述；selected 为空表示全部列。调用前必须持有读锁。
func (a *Adapter) resultColumns(selected []string) []port.Column {
	if len(selected) == 0 {
		out := make([]port.Column, len(a.columns))
		for i, c := range a.columns {
			out[i] = port.Column{Name: c.Name, DataType: c.DataType}
		}
		return out
	}
	types := make(map[string]string, len(a.columns))
	for _, c := range a.columns {
		types[c.Name] = c.DataType
	}
	out := make([]port.Column, len(selected))
	for i, name := range selected {
		out[i] = port.Column{Name: name, DataType: types[name]}
	}
	return out
}

func (a *Adapter) columnNames() []string {
	names := make([]string, len(a.columns))
	for i, c := range a.columns {
		names[i] = c.Name
	}
	return names
}
