// Package tabular 实现表格数据源适配器
// internal/adapter/datasource/tabular/adapter.go
//
// CSV/TSV 文件被载入内存中的 SQLite 表，SQLite 数据库文件则以只读方式直接打开；
// 查询统一翻译为 SQL 执行。本地文件可开启热加载。
package tabular

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"DataAgents/internal/core/domain"
	"DataAgents/internal/core/port"
	"DataAgents/internal/downloader"
	"DataAgents/internal/observe"

	"github.com/fsnotify/fsnotify"
	_ "modernc.org/sqlite"
)

// 断言 *Adapter 实现 port.Adapter 接口，编译期校验
var _ port.Adapter = (*Adapter)(nil)

const (
	debounceDuration = 2 * time.Second
	sampleRows       = 3
)

// Adapter 是表格数据源适配器。
type Adapter struct {
	mu sync.RWMutex

	name     string
	location string
	settings domain.AdapterSettings

	// table 为当前查询目标表，columns 为其物理列
	db        *sql.DB
	table     string
	columns   []columnInfo
	rowCount  int64
	fromCSV   bool
	loadedAt  time.Time
	downloads *downloader.Registry
	logger    *slog.Logger

	// 热加载
	watcher       *fsnotify.Watcher
	debounce      time.Duration
	eventTimer    *time.Timer
	eventTimersMu sync.Mutex
	reloaded      chan struct{}
}

// Option 调整 Adapter 的构造
type Option func(*Adapter)

// WithLogger 指定日志记录器
func WithLogger(l *slog.Logger) Option { return func(a *Adapter) { a.logger = l } }

// WithDownloader 替换用于读取远程 CSV 的下载器注册表
func WithDownloader(r *downloader.Registry) Option { return func(a *Adapter) { a.downloads = r } }

// WithDebounce 调整热加载的防抖间隔
func WithDebounce(d time.Duration) Option { return func(a *Adapter) { a.debounce = d } }

// New 创建表格适配器并立即加载数据；加载失败以 ConfigurationError 返回。
func New(ctx context.Context, name string, cfg domain.AdapterConfig, opts ...Option) (*Adapter, error) {
	a := &Adapter{
		name:     name,
		location: cfg.ResolvedLocation(),
		settings: cfg.Config.WithDefaults(),
		debounce: debounceDuration,
		reloaded: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = observe.AdapterLogger(a.logger, name, domain.TypeTabular)
	if a.downloads == nil {
		a.downloads = downloader.NewRegistry(nil)
	}
	if a.location == "" {
		return nil, port.NewConfigurationError("csv_file", "表格适配器 '%s' 缺少数据文件位置", name)
	}

	src, err := a.load(ctx)
	if err != nil {
		return nil, &port.ConfigurationError{Field: "location", Reason: "加载表格数据 '" + a.location + "' 失败", Err: err}
	}
	a.swap(src)

	if a.settings.Watch {
		if err := a.startWatcher(); err != nil {
			a.logger.Warn("启动文件监视器失败，热加载不可用", "location", a.location, "error", err)
		}
	}
	return a, nil
}

// Name 返回适配器名称
func (a *Adapter) Name() string { return a.name }

// Type 实现 port.Adapter.Type 接口，返回适配器类型。
func (a *Adapter) Type() string { return domain.TypeTabular }

// swap 用新加载的数据源替换当前数据源，并关闭旧连接。
func (a *Adapter) swap(src *loadedSource) {
	a.mu.Lock()
	old := a.db
	a.db = src.db
	a.table = src.table
	a.columns = src.columns
	a.rowCount = src.rowCount
	a.fromCSV = src.fromCSV
	a.loadedAt = time.Now()
	a.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			a.logger.Warn("关闭旧数据连接失败", "error", err)
		}
	}
	a.logger.Info("表格数据已加载", "location", a.location, "table", src.table,
		"columns", len(src.columns), "rows", src.rowCount)
}

// Close 停止文件监视并关闭数据库连接
func (a *Adapter) Close() error {
	a.eventTimersMu.Lock()
	if a.eventTimer != nil {
		a.eventTimer.Stop()
	}
	if a.watcher != nil {
		_ = a.watcher.Close()
		a.watcher = nil
	}
	a.eventTimersMu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}
