// file: cmd/dataagents/main.go

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"DataAgents/internal/config"
	"DataAgents/internal/core/domain"
	"DataAgents/internal/observe"
	"DataAgents/internal/service"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version 在构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

// options 是全部子命令共享的全局参数
type options struct {
	configPath    string
	adapterConfig string
	name          string
	output        string
	envFile       string
	logLevel      string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "dataagents",
		Short:         "统一的数据提供方查询工具",
		Long:          "dataagents 用同一种查询语言访问本地表格、REST API 与科学数据服务 (NASA POWER, GBIF, OpenAQ)。",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(opts.envFile); err != nil {
				return err
			}
			if _, err := newPrinter(opts.output, cmd.OutOrStdout()); err != nil {
				return err
			}
			observe.InitLogger(opts.logLevelOr("WARN"))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "路由配置文件 (YAML/JSON/TOML)")
	flags.StringVar(&opts.adapterConfig, "adapter-config", "", "单个适配器的配置文件")
	flags.StringVar(&opts.name, "name", "", "与 --adapter-config 配合使用的适配器名称")
	flags.StringVarP(&opts.output, "output", "o", formatJSON, "输出格式: json|yaml|table")
	flags.StringVar(&opts.envFile, "env-file", "", "在构造适配器前加载的 .env 文件 (缺省尝试 ./.env)")
	flags.StringVar(&opts.logLevel, "log-level", "", "日志级别: DEBUG|INFO|WARN|ERROR")
	root.MarkFlagsMutuallyExclusive("config", "adapter-config")

	root.AddCommand(
		newQueryCommand(opts),
		newDiscoverCommand(opts),
		newSchemaCommand(opts),
		newListAdaptersCommand(opts),
		newInfoCommand(opts),
		newServeCommand(opts),
		newHashSecretCommand(),
		newVersionCommand(),
	)
	return root
}

func (o *options) logLevelOr(fallback string) string {
	if o.logLevel != "" {
		return o.logLevel
	}
	return fallback
}

// loadEnvFile 加载显式指定的 .env 文件；未指定时尝试当前目录的 .env，不存在则忽略。
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("加载环境变量文件 '%s' 失败: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("加载 .env 失败: %w", err)
	}
	return nil
}

// loadConfig 根据 --config / --adapter-config 得到完整配置。
// 两者都未指定时 required 决定是报错还是只用默认值。
func (o *options) loadConfig(required bool) (*config.Config, error) {
	switch {
	case o.adapterConfig != "":
		name, acfg, err := config.LoadAdapter(o.adapterConfig)
		if err != nil {
			return nil, err
		}
		if o.name != "" {
			name = o.name
		}
		cfg, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg.Adapters = map[string]domain.AdapterConfig{name: acfg}
		return cfg, nil

	case o.configPath != "":
		return config.Load(o.configPath)

	case required:
		return nil, errors.New("需要通过 --config 或 --adapter-config 指定适配器配置")

	default:
		return config.Load("")
	}
}

// buildRouter 读取配置并构造全部适配器。调用方负责 Close。
func (o *options) buildRouter(ctx context.Context, required bool) (*service.Router, *config.Config, error) {
	cfg, err := o.loadConfig(required)
	if err != nil {
		return nil, nil, err
	}
	// 命令行未指定日志级别时采用配置文件中的级别
	if o.logLevel == "" && o.configPath != "" {
		observe.InitLogger(cfg.Log.Level)
	}
	r, err := service.BuildRouter(ctx, cfg.Adapters, slog.Default(), service.WithConcurrency(cfg.Router.Concurrency))
	if err != nil {
		return nil, nil, err
	}
	return r, cfg, nil
}
