// Package config 使用 viper 读取路由配置文件与单适配器配置文件。
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"DataAgents/internal/core/domain"
	"DataAgents/internal/core/port"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖的前缀，如 DATAAGENTS_SERVER_ADDR
const EnvPrefix = "DATAAGENTS"

var validate = validator.New()

// Config 是路由配置文件的完整结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Router RouterConfig `mapstructure:"router"`
	// Adapters 以适配器名称为键。viper 会把键转换为小写。
	Adapters map[string]domain.AdapterConfig `mapstructure:"adapters" validate:"dive"`
}

// ServerConfig 是 serve 模式的 HTTP 设置
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	RateLimit       float64       `mapstructure:"rate_limit" validate:"gte=0"`
	Burst           int           `mapstructure:"burst" validate:"gte=0"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	PprofAddr       string        `mapstructure:"pprof_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
	Auth            AuthConfig    `mapstructure:"auth"`
}

// AuthConfig 控制 HTTP API 的 JWT 认证
type AuthConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Secret   string        `mapstructure:"secret" validate:"required_if=Enabled true"`
	TokenTTL time.Duration `mapstructure:"token_ttl" validate:"gte=0"`
	Issuer   string        `mapstructure:"issuer"`
	// Clients 将客户端 ID 映射到其密钥的 bcrypt 哈希
	Clients map[string]string `mapstructure:"clients"`
}

// LogConfig 是日志设置
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// RouterConfig 是 Router 的设置
type RouterConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"gte=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.burst", 20)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.pprof_addr", "")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.auth.enabled", false)
	v.SetDefault("server.auth.secret", "")
	v.SetDefault("server.auth.token_ttl", 24*time.Hour)
	v.SetDefault("server.auth.issuer", "DataAgents")
	v.SetDefault("log.level", "INFO")
	v.SetDefault("router.concurrency", 8)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load 读取路由配置文件（YAML / JSON / TOML，按扩展名识别）。
// path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := newViper(path)
	setDefaults(v)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件 '%s' 失败: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(DecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置文件 '%s' 失败: %w", path, err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, invalidConfig(err)
	}
	return &cfg, nil
}

// LoadAdapter 读取只描述一个适配器的配置文件，返回建议的适配器名称（文件中的 name 字段，缺省为文件名）。
func LoadAdapter(path string) (string, domain.AdapterConfig, error) {
	var cfg domain.AdapterConfig
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return "", cfg, fmt.Errorf("读取适配器配置 '%s' 失败: %w", path, err)
	}
	if err := v.Unmarshal(&cfg, viper.DecodeHook(DecodeHook())); err != nil {
		return "", cfg, fmt.Errorf("解析适配器配置 '%s' 失败: %w", path, err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return "", cfg, invalidConfig(err)
	}

	name := v.GetString("name")
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return name, cfg, nil
}

// invalidConfig 将 validator 的错误转换为 ConfigurationError
func invalidConfig(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return &port.ConfigurationError{
			Field:  fe.Namespace(),
			Reason: fmt.Sprintf("不满足规则 '%s' (值: %v)", fe.Tag(), fe.Value()),
			Err:    err,
		}
	}
	return &port.ConfigurationError{Reason: "配置校验失败", Err: err}
}

// DecodeHook 组合配置解码所需的全部钩子
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		AuthSpecHook(),
		DurationHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

var (
	authSpecType = reflect.TypeOf(domain.AuthSpec{})
	durationType = reflect.TypeOf(time.Duration(0))
)

// AuthSpecHook 接受三种 auth 写法：字符串 token、[用户名, 密码] 列表、结构化映射。
func AuthSpecHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != authSpecType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return domain.AuthSpec{Literal: v}, nil
		case []any:
			pair := make([]string, len(v))
			for i, item := range v {
				pair[i] = fmt.Sprint(item)
			}
			return domain.AuthSpec{Pair: pair}, nil
		case []string:
			return domain.AuthSpec{Pair: append([]string(nil), v...)}, nil
		default:
			return data, nil
		}
	}
}

// DurationHook 将数字（秒）或数字字符串解释为秒数，其余字符串按 time.ParseDuration 解析。
func DurationHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				return time.Duration(0), nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return time.Duration(f * float64(time.Second)), nil
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("无法解析时长 '%s': %w", s, err)
			}
			return d, nil
		default:
			return data, nil
		}
	}
}
