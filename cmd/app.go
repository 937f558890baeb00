package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"stock-anomaly-sentry/internal/analyzer"
	"stock-anomaly-sentry/internal/anomaly"
	"stock-anomaly-sentry/internal/database"
	"stock-anomaly-sentry/internal/fetcher"
	"stock-anomaly-sentry/internal/notifier"
	"stock-anomaly-sentry/internal/storage"
	"stock-anomaly-sentry/pkg/config"
	"stock-anomaly-sentry/pkg/logger"
	"stock-anomaly-sentry/pkg/types"
)

// App 应用程序管理器
type App struct {
	config   *types.Config
	ctx      context.Context
	cancel   context.CancelFunc
	service  *analyzer.Service
	detector *anomaly.Detector
	cache    *storage.SeriesCache
	db       *database.Manager
	syncLog  func()
}

// NewApp 加载配置并装配各模块
func NewApp(configFile string) (*App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	syncLog := logger.Init(cfg.Log)
	zap.L().Info("🚀 Stock Anomaly Sentry 启动中...", zap.String("source", cfg.Fetch.Source))

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
		syncLog: syncLog,
	}

	if cfg.Database.MySQL.Enabled() {
		db, err := database.NewManager(cfg.Database.MySQL)
		if err != nil {
			// mysql 作为数据源时不能降级
			if cfg.Fetch.Source == "mysql" {
				app.Stop()
				return nil, err
			}
			zap.L().Warn("⚠️ MySQL不可用，日线归档已关闭", zap.Error(err))
		} else {
			app.db = db
		}
	}

	app.cache = storage.NewSeriesCache(cfg.Redis, cfg.Fetch.CacheTTL)

	client := fetcher.NewClient(cfg.Network, cfg.Fetch)
	eastmoney := fetcher.NewEastmoneyClient(client, cfg.Fetch)

	var history fetcher.HistoryProvider
	switch {
	case cfg.Fetch.Source == "mysql":
		history = fetcher.NewCachedHistoryProvider(app.db, app.cache, nil)
	case app.db != nil:
		history = fetcher.NewCachedHistoryProvider(eastmoney, app.cache, app.db)
	default:
		history = fetcher.NewCachedHistoryProvider(eastmoney, app.cache, nil)
	}

	app.detector = anomaly.NewDetector(anomaly.Policy{
		Windows: cfg.Anomaly.Windows,
		NearGap: cfg.Anomaly.NearGap,
	})
	notifyService := notifier.New(cfg.DingTalk, cfg.PushPlus)
	app.service = analyzer.NewService(history, eastmoney, app.detector, notifyService,
		cfg.Fetch.Lookback, cfg.Anomaly.AlertCooldown)

	go app.WaitForShutdown()

	zap.L().Info("✅ Stock Anomaly Sentry 已启动", zap.Any("cache", app.cache.Stats(ctx)))
	return app, nil
}

// Context 收到停止信号后取消
func (app *App) Context() context.Context {
	return app.ctx
}

// Stop 释放资源
func (app *App) Stop() {
	app.cancel()

	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			zap.L().Warn("⚠️ 关闭缓存失败", zap.Error(err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			zap.L().Warn("⚠️ 关闭数据库失败", zap.Error(err))
		}
	}

	zap.L().Info("✅ Stock Anomaly Sentry 已安全关闭")
	app.syncLog()
}

// WaitForShutdown 等待关闭信号
func (app *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		zap.L().Info("🛑 收到停止信号，正在优雅关闭...")
		app.cancel()
	case <-app.ctx.Done():
	}
}
