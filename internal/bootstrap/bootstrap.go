// Package bootstrap 按配置组装存储、抓取器、处理器与采集编排器，cmd/collect 与 cmd/api 共用
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LJTian/JuventudHub/internal/collector"
	"github.com/LJTian/JuventudHub/internal/config"
	"github.com/LJTian/JuventudHub/internal/ingest"
	"github.com/LJTian/JuventudHub/internal/logger"
	"github.com/LJTian/JuventudHub/internal/metrics"
	"github.com/LJTian/JuventudHub/internal/processor"
	"github.com/LJTian/JuventudHub/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

type App struct {
	Config      *config.Config
	Log         logger.Logger
	Repo        storage.Repository
	Processor   *processor.Processor
	Coordinator *ingest.Coordinator
	Metrics     *metrics.Metrics

	closers []func() error
}

// New 组装整个采集流程；reg 为空时指标注册到默认 registry
func New(ctx context.Context, cfg *config.Config, log logger.Logger, reg prometheus.Registerer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{Config: cfg, Log: log}

	repo, err := app.setupStore(ctx)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Repo = repo

	sources, err := loadSources(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}
	log.Info("sources configured", logger.Strings("sources", names))

	fetcher := &collector.CollyFetcher{
		UserAgent:      cfg.UserAgent,
		Accept:         cfg.Accept,
		AcceptLanguage: cfg.AcceptLanguage,
		Timeout:        cfg.FetchTimeout,
	}

	app.Processor = processor.NewDefaultProcessor()
	app.Metrics = metrics.New(reg)
	app.Coordinator = ingest.New(sources, fetcher, app.Processor, app.Repo, log, ingest.Options{
		Delay:       cfg.SourceDelay,
		Concurrency: cfg.FetchConcurrency,
		Now:         func() time.Time { return config.Now().In(cfg.Location) },
		Metrics:     app.Metrics,
	})
	return app, nil
}

func (a *App) setupStore(ctx context.Context) (storage.Repository, error) {
	cfg := a.Config

	var repo storage.Repository
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pg, err := storage.NewPGStore(cfg.PostgresDSN, cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		if sqlDB, err := pg.DB.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		a.Log.Info("using postgres store")
		repo = pg
	default:
		a.Log.Info("using excel store", logger.String("path", cfg.DataPath))
		repo = storage.NewExcelStore(cfg.DataPath, cfg.Location)
	}

	if cfg.RedisAddr == "" {
		return repo, nil
	}
	rdb := storage.NewRedisClient(ctx, cfg.RedisAddr, a.Log)
	a.closers = append(a.closers, rdb.Close)
	return storage.NewCachedRepository(repo, rdb, storage.DefaultCacheTTL, a.Log), nil
}

func loadSources(cfg *config.Config) ([]collector.Source, error) {
	if cfg.SourcesFile == "" {
		return collector.DefaultSources(), nil
	}
	sources, err := collector.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources from %s: %w", cfg.SourcesFile, err)
	}
	return sources, nil
}

// Close 释放数据库与 Redis 连接
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
