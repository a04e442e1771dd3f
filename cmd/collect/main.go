package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LJTian/JuventudHub/internal/bootstrap"
	"github.com/LJTian/JuventudHub/internal/config"
	"github.com/LJTian/JuventudHub/internal/logger"
	"github.com/LJTian/JuventudHub/internal/storage"
)

// 一个仅执行一次采集任务的命令行入口：适合手动触发采集或由外部 cron 调用。
// 只有结果无法保存时以非 0 退出；单个源失败不影响退出码。
func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, zl, nil)
	if err != nil {
		zl.Error("init failed", logger.Err(err))
		os.Exit(2)
	}
	defer app.Close()

	report, err := app.Coordinator.Run(ctx)
	report.Render(os.Stdout)
	if err != nil {
		zl.Error("collect run failed", logger.Err(err))
		if errors.Is(err, storage.ErrPersist) {
			_ = app.Close()
			os.Exit(1)
		}
	}
}
