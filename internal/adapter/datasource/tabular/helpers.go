// Package tabular file: internal/adapter/datasource/tabular/helpers.go
package tabular

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// columnInfo 是一列的物理信息
type columnInfo struct {
	Name     string
	SQLType  string
	DataType string
}

// quoteIdent 以双引号转义标识符
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// detectTable 尝试检测数据库中的一个 "默认" 用户表
func detectTable(ctx context.Context, db *sql.DB) (string, error) {
	var name string
	err := db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name ASC LIMIT 1`,
	).Scan(&name)
	return name, err
}

// listColumns 返回指定表的所有物理列
func listColumns(ctx context.Context, db *sql.DB, tableName string) ([]columnInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(tableName)))
	if err != nil {
		return nil, fmt.Errorf("PRAGMA table_info for table %q 失败: %w", tableName, err)
	}
	defer rows.Close()

	var cols []columnInfo
	for rows.Next() {
		var (
			cid       int
			colName   string
			colType   string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notnull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("扫描表 '%s' 的列信息失败: %w", tableName, err)
		}
		cols = append(cols, columnInfo{Name: colName, SQLType: colType, DataType: dataTypeOf(colType)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("表 '%s' 不存在或没有任何列", tableName)
	}
	return cols, nil
}

// describe 读取表的列与行数
func describe(ctx context.Context, db *sql.DB, table string) (*loadedSource, error) {
	cols, err := listColumns(ctx, db, table)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))).Scan(&count); err != nil {
		return nil, fmt.Errorf("统计表 '%s' 行数失败: %w", table, err)
	}
	return &loadedSource{db: db, table: table, columns: cols, rowCount: count}, nil
}

// dataTypeOf 将 SQLite 声明类型映射为对外的类型名（按 SQLite 类型亲和规则）
func dataTypeOf(sqlType string) string {
	t := strings.ToUpper(sqlType)
	switch {
	case strings.Contains(t, "INT"):
		return "integer"
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return "string"
	case strings.Contains(t, "BLOB"), t == "":
		return "bytes"
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return "float"
	default:
		return "numeric"
	}
}

// scanRows 将 *sql.Rows 读为行映射，[]byte 转为字符串
func scanRows(rows *sql.Rows) ([]map[string]any, []string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	out := make([]map[string]any, 0)
	for rows.Next() {
		scanDest := make([]any, len(cols))
		scanDestPtrs := make([]any, len(cols))
		for i := range scanDest {
			scanDestPtrs[i] = &scanDest[i]
		}
		if err := rows.Scan(scanDestPtrs...); err != nil {
			return nil, nil, fmt.Errorf("扫描行数据失败: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, colName := range cols {
			if b, ok := scanDest[i].([]byte); ok {
				row[colName] = string(b)
			} else {
				row[colName] = scanDest[i]
			}
		}
		out = append(out, row)
	}
	return out, cols, rows.Err()
}
