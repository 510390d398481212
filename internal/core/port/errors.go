// Package port file: internal/core/port/errors.go
package port

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"DataAgents/internal/querylang"
)

// Standard errors
var (
	ErrConfiguration    = errors.New("配置错误")
	ErrValidation       = errors.New("查询校验失败")
	ErrUnknownParameter = errors.New("未知参数")
	ErrTransientNetwork = errors.New("网络暂时性故障，重试已耗尽")
	ErrProvider         = errors.New("数据提供方返回错误")
	ErrAdapterNotFound  = errors.New("指定的适配器未找到")
	ErrAdapterExists    = errors.New("同名适配器已注册")
)

// ConfigurationError 在适配器构造阶段返回：凭据或配置缺失/非法。
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("%v: %s", ErrConfiguration, e.Reason)
	if e.Field != "" {
		msg = fmt.Sprintf("%v: 字段 '%s': %s", ErrConfiguration, e.Field, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
func (e *ConfigurationError) Unwrap() error        { return e.Err }

// NewConfigurationError 是构造 ConfigurationError 的便捷函数
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError 表示查询违反了数据提供方的领域规则，在任何网络调用之前返回。
type ValidationError struct {
	Field string
	Rule  string
	Value string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%v: 字段 '%s' 不满足规则 '%s' (值: %q)", ErrValidation, e.Field, e.Rule, e.Value)
	}
	return fmt.Sprintf("%v: 字段 '%s' 不满足规则 '%s'", ErrValidation, e.Field, e.Rule)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid 是构造 ValidationError 的便捷函数
func Invalid(field, rule, value string) *ValidationError {
	return &ValidationError{Field: field, Rule: rule, Value: value}
}

// UnknownParameterError 表示请求的字段或参数代码不在数据提供方的目录中。
type UnknownParameterError struct {
	Name     string
	Provider string
	// Suggestions 可选的近似候选
	Suggestions []string
}

func (e *UnknownParameterError) Error() string {
	msg := fmt.Sprintf("%v: '%s' 不在 %s 的参数目录中", ErrUnknownParameter, e.Name, e.Provider)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (候选: %s)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *UnknownParameterError) Is(target error) bool { return target == ErrUnknownParameter }

// TransientNetworkError 仅在单页重试预算耗尽后返回，调用方可以稍后重试。
type TransientNetworkError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *TransientNetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: %s 尝试 %d 次，最后状态码 %d", ErrTransientNetwork, e.URL, e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("%v: %s 尝试 %d 次: %v", ErrTransientNetwork, e.URL, e.Attempts, e.Err)
}

func (e *TransientNetworkError) Is(target error) bool { return target == ErrTransientNetwork }
func (e *TransientNetworkError) Unwrap() error        { return e.Err }

// maxErrorBody 是错误信息中保留的响应体最大字节数
const maxErrorBody = 512

// ProviderError 表示不可重试的 4xx 或格式良好的提供方错误响应，附带原始状态码与响应体。
type ProviderError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		// 回退到字符边界，避免截断多字节字符
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	return fmt.Sprintf("%v: %s 状态码 %d: %s", ErrProvider, e.URL, e.StatusCode, body)
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// QueryError 为适配器返回的任何错误附加适配器名称与原始查询字符串。
type QueryError struct {
	Adapter string
	Query   string
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("适配器 '%s' 查询 %q 失败: %v", e.Adapter, e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// WrapQueryError 用适配器名称和查询字符串包装 err；已包装过的错误原样返回。
func WrapQueryError(adapter string, spec *querylang.Spec, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	raw := ""
	if spec != nil {
		raw = spec.Raw
	}
	return &QueryError{Adapter: adapter, Query: raw, Err: err}
}
