// Package main 是应用程序的入口点。
package main

import (
	"fmt"
	"os"

	"stenagrafist-go/internal/config"
	"stenagrafist-go/pkg/log"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "stenagrafist",
		Short:         "接收音频上传并派发转写任务的 HTTP 服务",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			return serve(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "创建或更新 users 和 tasks 表",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			return migrate(cfg)
		},
	})
	return root
}

// setup 加载配置并初始化日志记录器。
func setup(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	log.Info("日志记录器初始化成功")
	return cfg, nil
}
