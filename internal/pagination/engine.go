// Package pagination 驱动对数据提供方的重复请求，直到结果集完整或达到上限。
// 分页严格串行：游标只有在上一页响应之后才可知。
package pagination

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"DataAgents/internal/core/port"
	"DataAgents/internal/credential"
	"DataAgents/internal/observe"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	defaultMaxAttempts    = 4
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 10 * time.Second
	maxBodyBytes          = 64 << 20
)

// Doer 是发送 HTTP 请求的最小接口，*http.Client 满足它
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options 是 Engine 的构造参数；同一适配器的所有请求共享这些设置。
type Options struct {
	// Adapter 用于指标与日志
	Adapter string
	BaseURL string
	Client  Doer

	// Credentials 在适配器构造时解析完成
	Credentials *credential.Credentials
	Headers     map[string]string

	// Limiter 为空表示不限速
	Limiter *rate.Limiter

	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	Logger *slog.Logger
}

// Engine 执行单页请求（带重试）与多页遍历。
type Engine struct {
	opts Options
}

// New 创建 Engine，未设置的字段使用默认值
func New(opts Options) *Engine {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{opts: opts}
}

// BaseURL 返回引擎的基础地址
func (e *Engine) BaseURL() string { return e.opts.BaseURL }

// Request 是基础请求描述：相对 BaseURL 的路径（也可以是绝对 URL）与查询参数。
type Request struct {
	Path  string
	Query url.Values
}

// PageState 跟踪一次分页执行的进度
type PageState struct {
	Offset     int
	PageNumber int
	Cursor     string
	Rows       int
	Pages      int
	// Attempt 是当前页已发出的请求次数
	Attempt int
}

// Result 是分页执行的汇总
type Result struct {
	Rows  []map[string]any
	Pages int
	// Truncated 表示因达到最大页数而停止，数据可能不完整
	Truncated bool
	// Meta 取自第一页的附加信息（如总数）
	Meta map[string]any
}

// Run 按 plan 逐页请求并用 decode 解析每一页。
func (e *Engine) Run(ctx context.Context, req Request, plan Plan, decode Decoder) (*Result, error) {
	plan = plan.normalized()
	state := &PageState{Offset: plan.StartOffset, PageNumber: 1}
	res := &Result{Rows: make([]map[string]any, 0)}

	for {
		if state.Pages >= plan.MaxPages {
			res.Truncated = true
			e.opts.Logger.Warn("分页达到最大页数上限，提前结束",
				"adapter", e.opts.Adapter, "max_pages", plan.MaxPages, "rows", state.Rows)
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageSize := plan.PageSize
		// 页码分页要求每页大小不变，超出 limit 的行在下面截断
		if plan.Limit > 0 && plan.Policy != PolicyPage {
			if remaining := plan.Limit - state.Rows; pageSize <= 0 || remaining < pageSize {
				pageSize = remaining
			}
		}

		body, err := e.fetch(ctx, req.Path, plan.pageQuery(req.Query, state, pageSize), state)
		if err != nil {
			return nil, err
		}
		page, err := decode(body)
		if err != nil {
			return nil, fmt.Errorf("解析第 %d 页响应失败: %w", state.Pages+1, err)
		}
		state.Pages++
		observe.ObservePage(e.opts.Adapter)
		if res.Meta == nil && len(page.Meta) > 0 {
			res.Meta = page.Meta
		}

		rows := page.Rows
		if plan.Limit > 0 && state.Rows+len(rows) > plan.Limit {
			rows = rows[:plan.Limit-state.Rows]
		}
		res.Rows = append(res.Rows, rows...)
		state.Rows += len(rows)

		if plan.Policy == PolicyNone || len(page.Rows) == 0 || page.Done {
			break
		}
		if plan.Limit > 0 && state.Rows >= plan.Limit {
			break
		}
		if plan.ShortPageEnds && pageSize > 0 && len(page.Rows) < pageSize {
			break
		}

		switch plan.Policy {
		case PolicyOffset:
			state.Offset += len(page.Rows)
		case PolicyPage:
			state.PageNumber++
		case PolicyCursor:
			if page.NextCursor == "" || page.NextCursor == state.Cursor {
				res.Pages = state.Pages
				return res, nil
			}
			state.Cursor = page.NextCursor
		}
	}

	res.Pages = state.Pages
	return res, nil
}

// Fetch 发出单个请求（使用与分页相同的重试策略）并返回响应体。
func (e *Engine) Fetch(ctx context.Context, req Request) ([]byte, error) {
	return e.fetch(ctx, req.Path, req.Query, &PageState{})
}

// ResolveURL 将路径与查询参数拼接为完整 URL
func (e *Engine) ResolveURL(path string, query url.Values) (string, error) {
	var target string
	switch {
	case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
		target = path
	case path == "":
		target = e.opts.BaseURL
	default:
		target = strings.TrimRight(e.opts.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("非法的请求地址 '%s': %w", target, err)
	}
	if len(query) > 0 {
		merged := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				merged.Add(k, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u.String(), nil
}

// retryableStatus 表示可以重试的响应 (429 / 5xx)
type retryableStatus struct {
	status int
	body   string
}

func (r *retryableStatus) Error() string {
	return fmt.Sprintf("状态码 %d: %s", r.status, r.body)
}

// fetch 发送一个 GET 请求：超时、传输错误、5xx、429 按有界指数退避重试；
// 其它 4xx 立即以 ProviderError 返回。
func (e *Engine) fetch(ctx context.Context, path string, query url.Values, state *PageState) ([]byte, error) {
	target, err := e.ResolveURL(path, query)
	if err != nil {
		return nil, err
	}

	var (
		out        []byte
		lastStatus int
		waitErr    error
	)
	state.Attempt = 0

	operation := func() error {
		state.Attempt++
		if state.Attempt > 1 {
			observe.ObserveRetry(e.opts.Adapter)
			e.opts.Logger.Debug("重试请求", "adapter", e.opts.Adapter, "url", target, "attempt", state.Attempt)
		}
		if e.opts.Limiter != nil {
			if err := e.opts.Limiter.Wait(ctx); err != nil {
				waitErr = err
				return backoff.Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range e.opts.Headers {
			req.Header.Set(k, v)
		}
		e.opts.Credentials.Apply(req)

		resp, err := e.opts.Client.Do(req)
		if err != nil {
			observe.ObserveProviderRequest(e.opts.Adapter, 0)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			lastStatus = 0
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		observe.ObserveProviderRequest(e.opts.Adapter, resp.StatusCode)
		if err != nil {
			lastStatus = resp.StatusCode
			return fmt.Errorf("读取响应体失败: %w", err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			out = body
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastStatus = resp.StatusCode
			return &retryableStatus{status: resp.StatusCode, body: string(body)}
		default:
			return backoff.Permanent(&port.ProviderError{URL: target, StatusCode: resp.StatusCode, Body: string(body)})
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(e.newBackOff(), uint64(e.opts.MaxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		var pe *port.ProviderError
		if errors.As(err, &pe) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if waitErr != nil {
			// 限速等待会超过截止时间时 Wait 提前返回，此时 ctx 尚未过期
			return nil, fmt.Errorf("%w: 等待限速许可失败: %v", context.DeadlineExceeded, waitErr)
		}
		e.opts.Logger.Warn("请求重试耗尽", "adapter", e.opts.Adapter, "url", target, "attempts", state.Attempt, "error", err)
		return nil, &port.TransientNetworkError{URL: target, Attempts: state.Attempt, StatusCode: lastStatus, Err: err}
	}
	return out, nil
}

func (e *Engine) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.InitialBackoff
	b.MaxInterval = e.opts.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// itoa 是 strconv.Itoa 的简写
func itoa(n int) string { return strconv.Itoa(n) }
