// Package remote 汇集 REST 类适配器共用的构造逻辑：
// 一次性解析凭据、构建带超时的 HTTP 客户端、外发限速器和分页引擎。
package remote

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"DataAgents/internal/core/domain"
	"DataAgents/internal/core/port"
	"DataAgents/internal/credential"
	"DataAgents/internal/observe"
	"DataAgents/internal/pagination"

	"golang.org/x/time/rate"
)

// Client 是一个已完成构造期校验的远程数据提供方连接
type Client struct {
	Name        string
	BaseURL     string
	Settings    domain.AdapterSettings
	Credentials *credential.Credentials
	Engine      *pagination.Engine
	Logger      *slog.Logger
}

type options struct {
	doer           pagination.Doer
	logger         *slog.Logger
	resolver       credential.Resolver
	initialBackoff time.Duration
	maxBackoff     time.Duration
	defaultBaseURL string
	defaultHeaders map[string]string
	defaultAuth    *domain.AuthSpec
	optionalAuth   bool
}

// Option 调整 Client 的构造
type Option func(*options)

// WithHTTPClient 替换底层 HTTP 客户端（测试中使用 httptest 的客户端）
func WithHTTPClient(d pagination.Doer) Option { return func(o *options) { o.doer = d } }

// WithLogger 指定日志记录器
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithResolver 指定凭据解析器（测试中替换环境变量查找）
func WithResolver(r credential.Resolver) Option { return func(o *options) { o.resolver = r } }

// WithBackoff 调整单页重试的退避区间
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(o *options) { o.initialBackoff, o.maxBackoff = initial, maxInterval }
}

// WithDefaultBaseURL 在配置未给出位置时使用的默认地址
func WithDefaultBaseURL(u string) Option { return func(o *options) { o.defaultBaseURL = u } }

// WithDefaultHeaders 设置默认请求头，配置中的同名请求头优先
func WithDefaultHeaders(h map[string]string) Option { return func(o *options) { o.defaultHeaders = h } }

// WithDefaultAuth 在配置未声明 auth 时使用的认证描述
func WithDefaultAuth(a *domain.AuthSpec) Option { return func(o *options) { o.defaultAuth = a } }

// WithOptionalDefaultAuth 与 WithDefaultAuth 相同，但默认认证无法解析（如环境变量未设置）时不带凭据继续。
// 配置中显式声明的 auth 仍然严格解析。
func WithOptionalDefaultAuth(a *domain.AuthSpec) Option {
	return func(o *options) { o.defaultAuth, o.optionalAuth = a, true }
}

// New 根据适配器配置构造 Client。任何凭据或配置问题都以 ConfigurationError 返回。
func New(name string, cfg domain.AdapterConfig, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	base := cfg.ResolvedLocation()
	if base == "" {
		base = o.defaultBaseURL
	}
	if base == "" {
		return nil, port.NewConfigurationError("base_url", "适配器 '%s' 缺少数据提供方地址", name)
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, port.NewConfigurationError("base_url", "适配器 '%s' 的地址 '%s' 不是合法的 http(s) URL", name, base)
	}

	settings := cfg.Config.WithDefaults()
	authSpec, optional := settings.Auth, false
	if authSpec.IsZero() {
		authSpec, optional = o.defaultAuth, o.optionalAuth
	}
	creds, err := o.resolver.Resolve(authSpec)
	switch {
	case err != nil && optional:
		creds = &credential.Credentials{Headers: map[string]string{}}
	case err != nil:
		return nil, fmt.Errorf("适配器 '%s' 凭据解析失败: %w", name, err)
	}

	headers := make(map[string]string, len(o.defaultHeaders)+len(settings.Headers))
	for k, v := range o.defaultHeaders {
		headers[k] = v
	}
	for k, v := range settings.Headers {
		sv, err := o.resolver.Substitute(v)
		if err != nil {
			return nil, fmt.Errorf("适配器 '%s' 请求头 '%s': %w", name, k, err)
		}
		headers[k] = sv
	}

	doer := o.doer
	if doer == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if settings.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // 由配置显式开启
		}
		doer = &http.Client{Timeout: settings.Timeout, Transport: transport}
	}

	var limiter *rate.Limiter
	if settings.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(settings.RateLimit), 1)
	}

	logger := observe.AdapterLogger(o.logger, name, cfg.Type)
	engine := pagination.New(pagination.Options{
		Adapter:        name,
		BaseURL:        base,
		Client:         doer,
		Credentials:    creds,
		Headers:        headers,
		Limiter:        limiter,
		MaxAttempts:    settings.MaxAttempts,
		InitialBackoff: o.initialBackoff,
		MaxBackoff:     o.maxBackoff,
		Logger:         logger,
	})

	return &Client{
		Name:        name,
		BaseURL:     base,
		Settings:    settings,
		Credentials: creds,
		Engine:      engine,
		Logger:      logger,
	}, nil
}
