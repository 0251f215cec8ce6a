package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/aidingjing/rain-gauge-api/internal/config"
	"github.com/aidingjing/rain-gauge-api/internal/events"
	"github.com/aidingjing/rain-gauge-api/internal/observability"
	"github.com/aidingjing/rain-gauge-api/internal/service/exception"
	"github.com/aidingjing/rain-gauge-api/internal/store"
)

// app 命令共享的运行时依赖
type app struct {
	cfg       *config.AppConfig
	logger    *zap.Logger
	metrics   *observability.Metrics
	store     *store.Store
	publisher events.Publisher
	svc       *exception.Service
	dataDir   string
}

// bootstrap 按配置装配 logger、存储与服务；metrics 为 nil 时不采集指标
func bootstrap(ctx context.Context, configPath string, metrics *observability.Metrics) (*app, error) {
	cfg, info, err := config.LoadConfigWithInfo(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	logger.Debug("config loaded", zap.String("path", info.Path), zap.Bool("file_found", info.FileFound))

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	dsn, err := config.DataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	opts := []store.Option{
		store.WithLogger(logger.Named("store")),
		store.WithRetryPolicy(store.RetryPolicy{
			MaxAttempts:  cfg.Database.MaxRetries,
			InitialDelay: cfg.Database.RetryInitialDelay.Std(),
			MaxDelay:     cfg.Database.RetryMaxDelay.Std(),
			Multiplier:   2,
		}),
	}
	if metrics != nil {
		opts = append(opts, store.WithMetrics(metrics))
	}
	if cfg.Database.BreakerEnabled {
		opts = append(opts, store.WithCircuitBreaker(uint32(cfg.Database.MaxRetries)*2, cfg.Database.BreakerTimeout.Std()))
	}

	st, err := store.Open(ctx, cfg.Database.Driver, dsn, opts...)
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	publisher := events.NewPublisher(cfg.Events)
	svc := exception.New(st,
		exception.WithLogger(logger.Named("exception")),
		exception.WithMetrics(metrics),
		exception.WithLocation(cfg.Location()),
		exception.WithPublisher(publisher),
		exception.WithMaxPageSize(cfg.Pagination.MaxPageSize),
	)

	logger.Info("storage ready",
		zap.String("driver", cfg.Database.Driver),
		zap.String("data_dir", dataDir))

	return &app{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		store:     st,
		publisher: publisher,
		svc:       svc,
		dataDir:   dataDir,
	}, nil
}

// exportDir SSE 导出的临时文件目录
func (a *app) exportDir() string {
	return filepath.Join(a.dataDir, "exports")
}

func (a *app) Close() error {
	err := errors.Join(a.publisher.Close(), a.store.Close())
	_ = a.logger.Sync()
	return err
}
