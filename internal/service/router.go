// file: internal/service/router.go
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"DataAgents/internal/core/port"
	"DataAgents/internal/querylang"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency 是 QueryAll / DiscoverAll 同时进行的适配器调用上限
const DefaultConcurrency = 8

// Outcome 是 QueryAll 中单个适配器的结果：Result 与 Err 恰有一个非空。
type Outcome struct {
	Result *port.ResultSet
	Err    error
}

// DiscoverOutcome 是 DiscoverAll 中单个适配器的结果
type DiscoverOutcome struct {
	Discovery *port.Discovery
	Err       error
}

// Router 按名称持有适配器，并把查询分发给一个或全部适配器。
// 注册是配置期操作；分发在快照上进行，不持有锁。
type Router struct {
	mu          sync.RWMutex
	adapters    map[string]port.Adapter
	concurrency int
	logger      *slog.Logger
}

// RouterOption 调整 Router 的构造
type RouterOption func(*Router)

// WithConcurrency 设置扇出时的并发上限
func WithConcurrency(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithRouterLogger 指定日志记录器
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter 创建一个空的 Router
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		adapters:    make(map[string]port.Adapter),
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register 以 a.Name() 注册适配器，同名已存在时返回 ErrAdapterExists。
func (r *Router) Register(a port.Adapter) error {
	if a == nil {
		return errors.New("不能注册空的适配器")
	}
	name := a.Name()
	if name == "" {
		return errors.New("适配器名称不能为空")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("%w: '%s'", port.ErrAdapterExists, name)
	}
	r.adapters[name] = a
	r.logger.Info("适配器已注册", "adapter", name, "adapter_type", a.Type())
	return nil
}

// Unregister 移除并返回指定适配器，不负责关闭它。
func (r *Router) Unregister(name string) (port.Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", port.ErrAdapterNotFound, name)
	}
	delete(r.adapters, name)
	return a, nil
}

// Get 返回指定名称的适配器
func (r *Router) Get(name string) (port.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", port.ErrAdapterNotFound, name)
	}
	return a, nil
}

// Names 返回排序后的全部适配器名称
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len 返回已注册的适配器数量
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

func (r *Router) snapshot() map[string]port.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]port.Adapter, len(r.adapters))
	for k, v := range r.adapters {
		out[k] = v
	}
	return out
}

// Query 解析 raw 并分发给指定适配器
func (r *Router) Query(ctx context.Context, name, raw string) (*port.ResultSet, error) {
	return r.QuerySpec(ctx, name, querylang.Parse(raw))
}

// QuerySpec 将已解析的查询分发给指定适配器。适配器返回的错误总是 *port.QueryError。
func (r *Router) QuerySpec(ctx context.Context, name string, spec *querylang.Spec) (*port.ResultSet, error) {
	a, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, a, spec, uuid.NewString())
}

// QueryAll 把同一查询并发地发给每个适配器（各自使用 Spec 副本）。
// 单个适配器的失败或 panic 只记录在它自己的 Outcome 中，不会中断其余适配器。
func (r *Router) QueryAll(ctx context.Context, raw string) map[string]Outcome {
	spec := querylang.Parse(raw)
	adapters := r.snapshot()
	batchID := uuid.NewString()

	var mu sync.Mutex
	out := make(map[string]Outcome, len(adapters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for name, a := range adapters {
		name, a := name, a
		g.Go(func() error {
			res, err := r.run(gctx, a, spec.Clone(), batchID)
			mu.Lock()
			out[name] = Outcome{Result: res, Err: err}
			mu.Unlock()
			// 返回 nil：一个适配器失败不应取消其余适配器
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// run 执行一次适配器查询，记录耗时，把 panic 转换为错误。
func (r *Router) run(ctx context.Context, a port.Adapter, spec *querylang.Spec, queryID string) (res *port.ResultSet, err error) {
	logger := r.logger.With("adapter", a.Name(), "query_id", queryID)
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			logger.Error("适配器查询发生 panic", "panic", p, "stack", string(debug.Stack()))
			res, err = nil, port.WrapQueryError(a.Name(), spec, fmt.Errorf("适配器 panic: %v", p))
		}
	}()

	logger.Debug("开始查询", "query", spec.String())
	res, err = a.Query(ctx, spec)
	if err != nil {
		logger.Warn("查询失败", "error", err, "elapsed", time.Since(start))
		return nil, port.WrapQueryError(a.Name(), spec, err)
	}
	logger.Info("查询完成", "rows", res.Len(), "elapsed", time.Since(start))
	return res, nil
}

// Discover 返回指定适配器的能力说明
func (r *Router) Discover(ctx context.Context, name string) (*port.Discovery, error) {
	a, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return discover(ctx, a)
}

// DiscoverAll 并发地对全部适配器执行 Discover
func (r *Router) DiscoverAll(ctx context.Context) map[string]DiscoverOutcome {
	adapters := r.snapshot()
	var mu sync.Mutex
	out := make(map[string]DiscoverOutcome, len(adapters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for name, a := range adapters {
		name, a := name, a
		g.Go(func() error {
			d, err := discover(gctx, a)
			mu.Lock()
			out[name] = DiscoverOutcome{Discovery: d, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func discover(ctx context.Context, a port.Adapter) (d *port.Discovery, err error) {
	defer func() {
		if p := recover(); p != nil {
			d, err = nil, port.WrapQueryError(a.Name(), nil, fmt.Errorf("适配器 panic: %v", p))
		}
	}()
	d, err = a.Discover(ctx)
	if err != nil {
		return nil, port.WrapQueryError(a.Name(), nil, err)
	}
	return d, nil
}

// Schema 返回指定适配器的结构描述
func (r *Router) Schema(ctx context.Context, name string) (*port.SchemaResult, error) {
	a, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	s, err := a.GetSchema(ctx)
	if err != nil {
		return nil, port.WrapQueryError(name, nil, err)
	}
	return s, nil
}

// Close 关闭全部实现了 io.Closer 的适配器，返回合并后的错误。
func (r *Router) Close() error {
	var errs []error
	for name, a := range r.snapshot() {
		c, ok := a.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("关闭适配器 '%s' 失败: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
