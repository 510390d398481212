// file: internal/adapter/datasource/tabular/load.go
package tabular

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"DataAgents/internal/downloader"
)

const csvTableName = "data"

// loadedSource 是一次完整加载的结果，加载成功后整体替换到 Adapter 上
type loadedSource struct {
	db       *sql.DB
	table    string
	columns  []columnInfo
	rowCount int64
	fromCSV  bool
}

// load 根据位置的扩展名选择加载方式
func (a *Adapter) load(ctx context.Context) (*loadedSource, error) {
	if isSQLiteFile(a.location) {
		path, ok := downloader.LocalPath(a.location)
		if !ok {
			return nil, fmt.Errorf("SQLite 数据源必须是本地文件: %s", a.location)
		}
		return openSQLite(ctx, path, a.settings.Table)
	}

	rc, err := a.downloads.Open(ctx, a.location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return loadCSV(ctx, rc, a.delimiter())
}

func (a *Adapter) delimiter() rune {
	if a.settings.Delimiter != "" {
		return []rune(a.settings.Delimiter)[0]
	}
	if strings.EqualFold(filepath.Ext(a.location), ".tsv") {
		return '\t'
	}
	return ','
}

func isSQLiteFile(location string) bool {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// openSQLite 以只读方式打开 SQLite 文件，未指定表名时自动检测。
func openSQLite(ctx context.Context, path, table string) (*loadedSource, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open '%s' 失败: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping 数据库 '%s' 失败: %w", path, err)
	}

	if table == "" {
		if table, err = detectTable(ctx, db); err != nil {
			_ = db.Close()
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("数据库 '%s' 中没有任何用户表", path)
			}
			return nil, fmt.Errorf("检测默认表失败: %w", err)
		}
	}

	src, err := describe(ctx, db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return src, nil
}

// loadCSV 读取 CSV，推断列类型，并写入单连接的内存 SQLite。
func loadCSV(ctx context.Context, r io.Reader, comma rune) (*loadedSource, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("CSV 文件为空")
		}
		return nil, fmt.Errorf("读取 CSV 表头失败: %w", err)
	}
	names := normalizeHeader(header)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("读取 CSV 数据失败: %w", err)
	}
	types := inferColumnTypes(len(names), records)

	// 内存库只在单个连接内可见，连接数固定为 1 并且永不回收
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("创建内存数据库失败: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := populate(ctx, db, names, types, records); err != nil {
		_ = db.Close()
		return nil, err
	}

	src, err := describe(ctx, db, csvTableName)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	src.fromCSV = true
	return src, nil
}

func populate(ctx context.Context, db *sql.DB, names, types []string, records [][]string) error {
	defs := make([]string, len(names))
	placeholders := make([]string, len(names))
	for i, n := range names {
		defs[i] = quoteIdent(n) + " " + types[i]
		placeholders[i] = "?"
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(csvTableName), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("创建内存表失败: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertSQL := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(csvTableName), strings.Join(placeholders, ", "))
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("预编译 INSERT 失败: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(names))
	for lineNo, rec := range records {
		for i := range names {
			var cell string
			if i < len(rec) {
				cell = rec[i]
			}
			args[i] = convertCell(cell, types[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("写入第 %d 行失败: %w", lineNo+2, err)
		}
	}
	return tx.Commit()
}

// normalizeHeader 清理表头：空列名补齐为 column_N，重名追加序号直到不与任何已用列名冲突。
// SQLite 列名不区分大小写，比较时统一转为小写。
func normalizeHeader(header []string) []string {
	seen := make(map[string]bool, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		base := name
		for n := 2; seen[strings.ToLower(name)]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		seen[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

// inferColumnTypes 扫描全部非空单元格：全为整数 → INTEGER，全为数值 → REAL，否则 TEXT
func inferColumnTypes(n int, records [][]string) []string {
	types := make([]string, n)
	for col := 0; col < n; col++ {
		isInt, isFloat, seen := true, true, false
		for _, rec := range records {
			if col >= len(rec) {
				continue
			}
			cell := strings.TrimSpace(rec[col])
			if cell == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				isInt = false
			}
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				isFloat = false
			}
			if !isInt && !isFloat {
				break
			}
		}
		switch {
		case seen && isInt:
			types[col] = "INTEGER"
		case seen && isFloat:
			types[col] = "REAL"
		default:
			types[col] = "TEXT"
		}
	}
	return types
}

// convertCell 按列类型转换单元格；数值列中的空单元格写为 NULL
func convertCell(cell, colType string) any {
	trimmed := strings.TrimSpace(cell)
	switch colType {
	case "INTEGER":
		if v, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return v
		}
		return nil
	case "REAL":
		if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return v
		}
		return nil
	default:
		return cell
	}
}
