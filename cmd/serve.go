package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"GameSync/internal/adapter"
	"GameSync/internal/api"
	"GameSync/internal/catalog"
	"GameSync/internal/repository"
	"GameSync/internal/service"
	"GameSync/internal/supervisor"
	"GameSync/internal/utils/clock"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "启动 HTTP 服务与同步队列",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *rootOptions) error {
	cfg, logrusLogger, err := bootstrap(opts)
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
	logrusLogger.Info("数据库表结构检查完成（不存在则已创建）")

	clk := clock.Real()
	registry := adapter.NewPlatformRegistry(cfg, logrusLogger)
	catalogClient := catalog.NewClient(&cfg.Catalog, clk, logrusLogger)
	tracker := service.NewJobTracker(db, logrusLogger)
	reconciler := service.NewReconciler(db, tracker, catalogClient, registry, clk, cfg.Sync, logrusLogger)
	worker := service.NewWorker(reconciler, tracker, cfg.Sync.QueueSize, logrusLogger)

	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	logrusLogger.Infof("Gin运行模式: %s", cfg.Server.Mode)
	api.RegisterRoutes(r,
		api.NewSyncHandler(worker, tracker, logrusLogger),
		api.NewLibraryHandler(db, logrusLogger),
	)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: r}

	root := supervisor.New("gamesync", supervisor.Config{}, logrusLogger)
	root.Add(worker)
	root.Add(supervisor.NewHTTPService(server, 0))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logrusLogger.Infof("服务启动成功，端口：%d", cfg.Server.Port)
	if err := root.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("服务异常退出: %w", err)
	}
	logrusLogger.Info("服务已停止")
	return nil
}
