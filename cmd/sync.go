package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"GameSync/internal/adapter"
	"GameSync/internal/catalog"
	"GameSync/internal/model"
	"GameSync/internal/repository"
	"GameSync/internal/service"
	"GameSync/internal/utils/clock"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"
)

type syncOptions struct {
	*rootOptions
	UserID    string
	Platform  string
	Input     string
	AccountID string
	APIKey    string
}

func newSyncCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &syncOptions{rootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "在当前进程内执行一次同步",
		Long: `在当前进程内为一个用户执行一次平台同步，结束后输出任务文档。

--input 指定 JSON 文件时不请求平台接口，直接导入文件中的记录（数组，字段同 RawPlatformRecord）。

示例:
  gamesync sync --user u1 --platform steam --account 7656119... --api-key XXXX
  gamesync sync --user u1 --platform psn --input ./records.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts)
		},
	}
	cmd.Flags().StringVar(&opts.UserID, "user", "", "用户ID（必填）")
	cmd.Flags().StringVar(&opts.Platform, "platform", "", "平台：steam / psn（必填）")
	cmd.Flags().StringVar(&opts.Input, "input", "", "从 JSON 文件导入记录")
	cmd.Flags().StringVar(&opts.AccountID, "account", "", "写入平台绑定的账号（Steam ID / PSN 账号）")
	cmd.Flags().StringVar(&opts.APIKey, "api-key", "", "写入平台绑定的 API Key / 访问令牌")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("platform")
	return cmd
}

func runSync(opts *syncOptions) error {
	platform := model.PlatformType(opts.Platform)
	if !platform.Valid() {
		return fmt.Errorf("%w: %s", service.ErrInvalidPlatform, opts.Platform)
	}
	cfg, logrusLogger, err := bootstrap(opts.rootOptions)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg, logrusLogger, logger.Warn)
	if err != nil {
		return fmt.Errorf("连接PostgreSQL失败: %w", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.APIKey != "" || opts.AccountID != "" {
		if err := repository.NewLinkRepository(db).Save(ctx, &model.PlatformLink{
			UserID:    opts.UserID,
			Platform:  platform,
			AccountID: opts.AccountID,
			APIKey:    opts.APIKey,
		}); err != nil {
			return fmt.Errorf("写入平台绑定失败: %w", err)
		}
	}

	registry := adapter.NewPlatformRegistry(cfg, logrusLogger)
	if opts.Input != "" {
		f, err := os.Open(opts.Input)
		if err != nil {
			return fmt.Errorf("打开记录文件失败: %w", err)
		}
		records, err := adapter.DecodeRecords(f)
		_ = f.Close()
		if err != nil {
			return err
		}
		registry.Add(adapter.NewBatchCollector(platform, records))
		logrusLogger.WithField("records", len(records)).Info("已从文件载入平台记录")
	}

	clk := clock.Real()
	tracker := service.NewJobTracker(db, logrusLogger)
	reconciler := service.NewReconciler(db, tracker,
		catalog.NewClient(&cfg.Catalog, clk, logrusLogger), registry, clk, cfg.Sync, logrusLogger)

	job, err := tracker.Enqueue(ctx, opts.UserID, platform)
	if err != nil {
		return err
	}
	runErr := reconciler.Run(ctx, job.JobID)
	if job, err = tracker.Get(context.WithoutCancel(ctx), job.JobID); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(job); err != nil {
		return err
	}
	return runErr
}
