package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/JuventudHub/internal/api"
	"github.com/LJTian/JuventudHub/internal/bootstrap"
	"github.com/LJTian/JuventudHub/internal/config"
	"github.com/LJTian/JuventudHub/internal/logger"
	"github.com/LJTian/JuventudHub/internal/scheduler"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 30 * time.Second

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

	s, err := scheduler.New(cfg.CronSpec, app.Coordinator, zl.With(logger.String("component", "scheduler")))
	if err != nil {
		zl.Error("init scheduler failed", logger.Err(err))
		os.Exit(2)
	}
	s.Start()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger(zl.With(logger.String("component", "http"))))
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}
	api.NewServer(app.Repo, s, app.Processor.Filter(), cfg.Location, zl).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("starting api server", logger.String("addr", srv.Addr), logger.String("cron", cfg.CronSpec))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		zl.Error("server exit", logger.Err(err))
	case <-ctx.Done():
		zl.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown failed", logger.Err(err))
	}
	s.Stop(shutdownCtx)
	zl.Info("server stopped")
}
