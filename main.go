package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"secret-game-be/internal/api/http"
	"secret-game-be/internal/config"
	"secret-game-be/internal/logger"
	"secret-game-be/internal/service"
	"secret-game-be/internal/service/randomness"
	"secret-game-be/internal/state"
	"secret-game-be/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 加载配置
	cfg := config.InitConfig()

	// 初始化日志器
	logger.InitLogger(cfg.LogLevel, cfg.LogDevelopment)

	err := run(cfg)

	if err != nil {
		zap.L().Error("服务异常退出", zap.Error(err))
	} else {
		zap.L().Info("服务已退出")
	}

	zap.L().Sync()

	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 未配置数据库时不记录历史
	var history service.HistoryStore
	if cfg.DatabaseURL != "" {
		repo, err := storage.NewPostgresRepo(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer repo.Close()

		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("初始化数据库表失败: %w", err)
		}

		history = repo
	}

	opts := service.Options{
		CommitTick:    cfg.Commit.Tick(),
		PurgeInterval: cfg.Purge.Interval(),
		Retention:     cfg.Purge.Retention(),
	}

	// 组装预言机和游戏服务
	var (
		gameSvc        *service.GameService
		externalOracle *randomness.ExternalOracle
	)

	switch cfg.Oracle.Mode {
	case config.ORACLE_MODE_EXTERNAL:
		externalOracle = randomness.NewExternalOracle()
		gameSvc = service.NewGameService(externalOracle, history, opts)

	default:
		localOracle := randomness.NewLocalOracle(cfg.Oracle.MinDelay(), cfg.Oracle.MaxDelay())
		// 服务停止后再关闭，未送达的回调会被丢弃
		defer localOracle.Close()

		gameSvc = service.NewGameService(localOracle, history, opts)
		localOracle.SetCallback(gameSvc.HandleFulfillment)
	}

	// 组装应用状态
	appState := state.NewAppState(
		cfg,
		gameSvc,
		externalOracle,
	)

	zap.L().Info(
		"服务启动",
		zap.String("oracle_mode", cfg.Oracle.Mode),
		zap.Bool("history_enabled", history != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return gameSvc.Run(ctx)
	})

	// 启动服务器
	g.Go(func() error {
		return http.RunServer(ctx, appState)
	})

	return g.Wait()
}
