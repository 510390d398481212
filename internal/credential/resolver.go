// Package credential 将声明式 AuthSpec 在适配器构造时一次性解析为具体的请求凭据。
package credential

import (
	"net/http"
	"os"
	"regexp"
	"strings"

	"DataAgents/internal/core/domain"
	"DataAgents/internal/core/port"
)

// DefaultAPIKeyHeader 是 api_key 类型未指定请求头名称时的默认值
const DefaultAPIKeyHeader = "X-API-Key"

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Credentials 是可以直接附加到任何外发请求上的凭据材料。
type Credentials struct {
	Headers  map[string]string
	Username string
	Password string
	HasBasic bool
}

// Apply 将凭据写入请求
func (c *Credentials) Apply(req *http.Request) {
	if c == nil {
		return
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	if c.HasBasic {
		req.SetBasicAuth(c.Username, c.Password)
	}
}

// Empty 报告是否没有任何凭据
func (c *Credentials) Empty() bool {
	return c == nil || (len(c.Headers) == 0 && !c.HasBasic)
}

// Resolver 解析 AuthSpec；LookupEnv 可在测试中替换。
type Resolver struct {
	LookupEnv func(string) (string, bool)
}

// Resolve 使用进程环境解析 spec
func Resolve(spec *domain.AuthSpec) (*Credentials, error) {
	return Resolver{}.Resolve(spec)
}

// Resolve 按 字面量 > 结构化字段 > 环境变量 的优先级解析。
// spec 为空时返回空凭据；任何失败都是 ConfigurationError。
func (r Resolver) Resolve(spec *domain.AuthSpec) (*Credentials, error) {
	creds := &Credentials{Headers: map[string]string{}}
	if spec.IsZero() {
		return creds, nil
	}

	// 1. 字面量
	if spec.Literal != "" {
		token, err := r.Substitute(spec.Literal)
		if err != nil {
			return nil, err
		}
		creds.Headers["Authorization"] = "Bearer " + token
		return creds, nil
	}
	if len(spec.Pair) > 0 {
		if len(spec.Pair) != 2 {
			return nil, port.NewConfigurationError("auth", "凭据对必须恰好包含用户名和密码两个元素，实际 %d 个", len(spec.Pair))
		}
		user, err := r.Substitute(spec.Pair[0])
		if err != nil {
			return nil, err
		}
		pass, err := r.Substitute(spec.Pair[1])
		if err != nil {
			return nil, err
		}
		creds.Username, creds.Password, creds.HasBasic = user, pass, true
		return creds, nil
	}

	// 2. 结构化字段
	authType := strings.ToLower(strings.TrimSpace(spec.Type))
	if authType == "" {
		authType = domain.AuthBearer
	}
	switch authType {
	case domain.AuthBearer:
		token, err := r.tokenOrEnv(spec)
		if err != nil {
			return nil, err
		}
		creds.Headers["Authorization"] = "Bearer " + token
	case domain.AuthAPIKey, "apikey", "api-key":
		token, err := r.tokenOrEnv(spec)
		if err != nil {
			return nil, err
		}
		header := spec.Header
		if header == "" {
			header = DefaultAPIKeyHeader
		}
		creds.Headers[header] = token
	case domain.AuthBasic:
		if spec.Username == "" {
			return nil, port.NewConfigurationError("auth.username", "basic 认证必须提供 username")
		}
		user, err := r.Substitute(spec.Username)
		if err != nil {
			return nil, err
		}
		pass, err := r.Substitute(spec.Password)
		if err != nil {
			return nil, err
		}
		creds.Username, creds.Password, creds.HasBasic = user, pass, true
	default:
		return nil, port.NewConfigurationError("auth.type", "不支持的认证类型 '%s'", spec.Type)
	}
	return creds, nil
}

// tokenOrEnv 取 token 字段，缺省时从 env_var 指向的环境变量读取。
func (r Resolver) tokenOrEnv(spec *domain.AuthSpec) (string, error) {
	if spec.Token != "" {
		return r.Substitute(spec.Token)
	}
	if spec.EnvVar != "" {
		v, ok := r.lookup(spec.EnvVar)
		if !ok || v == "" {
			return "", port.NewConfigurationError("auth.env_var", "环境变量 '%s' 未设置", spec.EnvVar)
		}
		return v, nil
	}
	return "", port.NewConfigurationError("auth", "必须提供 'token' 或 'env_var' 之一")
}

// Substitute 替换字符串中所有 ${VAR} 引用；任一变量未设置即返回 ConfigurationError。
func (r Resolver) Substitute(s string) (string, error) {
	var missing string
	out := envRef.ReplaceAllStringFunc(s, func(m string) string {
		name := envRef.FindStringSubmatch(m)[1]
		v, ok := r.lookup(name)
		if !ok && missing == "" {
			missing = name
		}
		return v
	})
	if missing != "" {
		return "", port.NewConfigurationError("auth", "环境变量 '%s' 未设置", missing)
	}
	return out, nil
}

func (r Resolver) lookup(name string) (string, bool) {
	if r.LookupEnv != nil {
		return r.LookupEnv(name)
	}
	return os.LookupEnv(name)
}
