// file: cmd/dataagents/commands.go

package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"DataAgents/internal/service"

	"github.com/spf13/cobra"
)

func newQueryCommand(opts *options) *cobra.Command {
	var (
		all     bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "query <adapter> <query...>",
		Short: "向一个适配器 (或 --all 时向全部适配器) 发送查询",
		Example: `  dataagents -c router.yaml query power T2M latitude=40.7 longitude=-74 start=20240101 end=20240107
  dataagents -c router.yaml query --all '*'`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return nil
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPrinter(opts.output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			r, _, err := opts.buildRouter(ctx, true)
			if err != nil {
				return err
			}
			defer r.Close()

			if all {
				outcomes := r.QueryAll(ctx, strings.Join(args, " "))
				if err := p.Print(outcomeViews(outcomes)); err != nil {
					return err
				}
				return allFailed(outcomes)
			}

			res, err := r.Query(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return p.Print(res)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "把查询发送给全部适配器")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "整个查询的超时时间 (0 表示不限)")
	return cmd
}

// allFailed 在每个适配器都失败时返回汇总错误，使进程以非零状态退出
func allFailed(outcomes map[string]service.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	errs := make([]error, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			return nil
		}
		errs = append(errs, o.Err)
	}
	return fmt.Errorf("全部 %d 个适配器查询失败: %w", len(outcomes), errors.Join(errs...))
}

func newDiscoverCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "discover [adapter]",
		Short: "列出适配器的能力与参数；省略名称时发现全部适配器",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPrinter(opts.output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			r, _, err := opts.buildRouter(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer r.Close()

			if len(args) == 1 {
				d, err := r.Discover(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return p.Print(d)
			}

			outcomes := r.DiscoverAll(cmd.Context())
			view := make(map[string]any, len(outcomes))
			for name, o := range outcomes {
				if o.Err != nil {
					view[name] = map[string]string{"error": o.Err.Error()}
					continue
				}
				view[name] = o.Discovery
			}
			return p.Print(view)
		},
	}
}

func newSchemaCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <adapter>",
		Short: "输出适配器的字段类型描述",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPrinter(opts.output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			r, _, err := opts.buildRouter(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer r.Close()

			s, err := r.Schema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return p.Print(s)
		},
	}
}

func newListAdaptersCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "list-adapters",
		Aliases: []string{"ls"},
		Short:   "列出已配置的适配器",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPrinter(opts.output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			r, _, err := opts.buildRouter(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer r.Close()

			rows := make([]adapterRow, 0, r.Len())
			for _, name := range r.Names() {
				a, err := r.Get(name)
				if err != nil {
					continue
				}
				rows = append(rows, adapterRow{Name: name, Type: a.Type()})
			}
			return p.Print(rows)
		},
	}
}

func newInfoCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "显示版本、支持的适配器类型与当前配置摘要",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPrinter(opts.output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			configured := make(map[string]string, len(cfg.Adapters))
			for name, a := range cfg.Adapters {
				configured[name] = a.Type
			}
			return p.Print(map[string]any{
				"version":             version,
				"go_version":          runtime.Version(),
				"adapter_types":       service.AdapterTypes(),
				"configured_adapters": configured,
				"server_addr":         cfg.Server.Addr,
				"auth_enabled":        cfg.Server.Auth.Enabled,
			})
		},
	}
}

func newHashSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret <secret>",
		Short: "生成 API 客户端密钥的 bcrypt 哈希，写入 server.auth.clients",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := service.HashSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本号",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dataagents %s (%s)\n", version, runtime.Version())
		},
	}
}
