package main

import (
	"fmt"

	"GameSync/internal/repository"

	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "建库建表并补齐唯一索引（幂等）",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logrusLogger, err := bootstrap(opts)
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg, logrusLogger, logger.Info)
			if err != nil {
				return fmt.Errorf("连接PostgreSQL失败: %w", err)
			}
			if err := repository.AutoMigrate(db); err != nil {
				return err
			}
			logrusLogger.Info("数据库表结构迁移完成")
			return nil
		},
	}
}
