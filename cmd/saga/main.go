// Command saga 启动订单 Saga 编排器与参与方进程.
//
//	saga orchestrator -c config.yaml
//	saga participant -c config.yaml
//	saga standalone -c config.yaml
//
// 配置项可以用 SAGA_ 前缀的环境变量覆盖，例如 SAGA_HTTP_ADDR=:8080.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tsukikage7/saga-orchestrator/bootstrap"
	"github.com/Tsukikage7/saga-orchestrator/config"
	"github.com/Tsukikage7/saga-orchestrator/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "saga",
		Short:         "订单 Saga 编排服务",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "配置文件路径")

	root.AddCommand(
		newRunCmd("orchestrator", "启动编排器: 对外接口、回复消费与维护任务", &configPath, bootstrap.RoleOrchestrator),
		newRunCmd("participant", "启动支付、库存、订单参与方", &configPath, bootstrap.RoleParticipant),
		newRunCmd("standalone", "在同一进程内启动编排器与全部参与方", &configPath, bootstrap.RoleOrchestrator, bootstrap.RoleParticipant),
	)
	return root
}

func newRunCmd(use, short string, configPath *string, roles ...bootstrap.Role) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *configPath, roles...)
		},
	}
}

func run(ctx context.Context, configPath string, roles ...bootstrap.Role) error {
	cfg, err := config.Load[config.Config](configPath, config.WithEnvPrefix(config.EnvPrefix))
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return fmt.Errorf("创建日志失败: %w", err)
	}
	defer log.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := bootstrap.Build(ctx, cfg, log, roles...)
	if err != nil {
		log.With(logger.Err(err)).Error("[Main] 组装失败")
		return err
	}
	return rt.App().Run()
}
