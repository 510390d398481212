// Package domain file: internal/core/domain/config_models.go
package domain

import (
	"strings"
	"time"
)

// 适配器类型标识
const (
	TypeTabular    = "tabular"
	TypeREST       = "rest"
	TypeNASAPower  = "nasa_power"
	TypeGBIF       = "gbif_occurrence"
	TypeOpenAQ     = "openaq"
	DefaultTimeout = 30 * time.Second
)

// 默认分页设置
const (
	DefaultPaginationParam = "limit"
	DefaultPaginationLimit = 10
	DefaultMaxPages        = 100
	DefaultMaxAttempts     = 4
)

// AdapterConfig 描述一个适配器：类型标识、数据提供方位置 (URL 或本地路径) 以及嵌套的配置块。
type AdapterConfig struct {
	Type     string          `mapstructure:"type" json:"type" validate:"required,oneof=tabular rest nasa_power gbif_occurrence openaq"`
	Location string          `mapstructure:"location" json:"location,omitempty"`
	BaseURL  string          `mapstructure:"base_url" json:"base_url,omitempty"`
	CSVFile  string          `mapstructure:"csv_file" json:"csv_file,omitempty"`
	Config   AdapterSettings `mapstructure:"config" json:"config"`
}

// ResolvedLocation 返回实际生效的位置：location 优先，其次 base_url / csv_file。
func (c AdapterConfig) ResolvedLocation() string {
	for _, v := range []string{c.Location, c.BaseURL, c.CSVFile} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// AdapterSettings 是具名、带默认值的可选配置字段集合。
// 零值表示“使用默认值”，由 WithDefaults 统一填充。
type AdapterSettings struct {
	// 通用 HTTP 设置
	Auth               *AuthSpec         `mapstructure:"auth" json:"auth,omitempty"`
	Headers            map[string]string `mapstructure:"headers" json:"headers,omitempty"`
	Timeout            time.Duration     `mapstructure:"timeout" json:"timeout,omitempty" validate:"gte=0"`
	InsecureSkipVerify bool              `mapstructure:"insecure_skip_verify" json:"insecure_skip_verify,omitempty"`
	RateLimit          float64           `mapstructure:"rate_limit" json:"rate_limit,omitempty" validate:"gte=0"`
	MaxAttempts        int               `mapstructure:"max_attempts" json:"max_attempts,omitempty" validate:"gte=0,lte=10"`

	// REST 端点与分页
	Endpoints       []string `mapstructure:"endpoints" json:"endpoints,omitempty"`
	PaginationParam string   `mapstructure:"pagination_param" json:"pagination_param,omitempty"`
	PaginationLimit int      `mapstructure:"pagination_limit" json:"pagination_limit,omitempty" validate:"gte=0"`
	PaginationStyle string   `mapstructure:"pagination_style" json:"pagination_style,omitempty" validate:"omitempty,oneof=none offset page cursor"`
	OffsetParam     string   `mapstructure:"offset_param" json:"offset_param,omitempty"`
	PageParam       string   `mapstructure:"page_param" json:"page_param,omitempty"`
	CursorParam     string   `mapstructure:"cursor_param" json:"cursor_param,omitempty"`
	CursorPath      string   `mapstructure:"cursor_path" json:"cursor_path,omitempty"`
	ResultsPath     string   `mapstructure:"results_path" json:"results_path,omitempty"`
	EndPath         string   `mapstructure:"end_path" json:"end_path,omitempty"`
	MaxPages        int      `mapstructure:"max_pages" json:"max_pages,omitempty" validate:"gte=0"`
	MultiValue      string   `mapstructure:"multi_value" json:"multi_value,omitempty" validate:"omitempty,oneof=comma repeat"`
	OpenAPI         []string `mapstructure:"openapi" json:"openapi,omitempty"`

	// 表格数据源
	Table     string `mapstructure:"table" json:"table,omitempty"`
	Delimiter string `mapstructure:"delimiter" json:"delimiter,omitempty" validate:"omitempty,len=1"`
	Watch     bool   `mapstructure:"watch" json:"watch,omitempty"`

	// OpenAQ
	MaxSensors int `mapstructure:"max_sensors" json:"max_sensors,omitempty" validate:"gte=0"`
}

// WithDefaults 返回填充了默认值的副本
func (s AdapterSettings) WithDefaults() AdapterSettings {
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.PaginationParam == "" {
		s.PaginationParam = DefaultPaginationParam
	}
	if s.PaginationLimit <= 0 {
		s.PaginationLimit = DefaultPaginationLimit
	}
	if s.MaxPages <= 0 {
		s.MaxPages = DefaultMaxPages
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
	if s.MultiValue == "" {
		s.MultiValue = "comma"
	}
	return s
}

// 认证类型
const (
	AuthBearer = "bearer"
	AuthAPIKey = "api_key"
	AuthBasic  = "basic"
)

// AuthSpec 是对如何获得凭据的声明式描述：字面量 token、字面量凭据对，或结构化字段。
type AuthSpec struct {
	// Literal 字面量 token，可包含 ${VAR} 环境变量引用
	Literal string `mapstructure:"-" json:"literal,omitempty"`
	// Pair 字面量凭据对 [username, password]
	Pair []string `mapstructure:"-" json:"pair,omitempty"`

	Type     string `mapstructure:"type" json:"type,omitempty"`
	Token    string `mapstructure:"token" json:"token,omitempty"`
	Username string `mapstructure:"username" json:"username,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`
	// Header 是 api_key 使用的请求头名称，配置键沿用 "key"
	Header string `mapstructure:"key" json:"key,omitempty"`
	EnvVar string `mapstructure:"env_var" json:"env_var,omitempty"`
}

// IsZero 报告是否未配置任何认证信息
func (a *AuthSpec) IsZero() bool {
	return a == nil || (a.Literal == "" && len(a.Pair) == 0 && a.Type == "" && a.Token == "" &&
		a.Username == "" && a.Password == "" && a.Header == "" && a.EnvVar == "")
}
