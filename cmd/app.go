package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stock_analysis/internal/config"
	"stock_analysis/internal/database"
	"stock_analysis/internal/logger"
	"stock_analysis/internal/metrics"
	"stock_analysis/internal/pinyin"
	"stock_analysis/internal/service"
)

// app 进程内共享的组件，启动时构造一次并注入各服务
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	redis   redis.UniversalClient
	metrics *metrics.Metrics

	bars   *service.BarService
	stocks *service.StockService
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	// 初始化日志
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	log.Info("配置加载成功", zap.String("path", configPath))

	// 初始化数据库
	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	a := &app{cfg: cfg, logger: log, db: db, metrics: metrics.New()}

	var lease service.SyncLease = service.NoopLease{}
	if cfg.Redis.Enabled {
		a.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    cfg.Redis.Addresses,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(ctx).Err(); err != nil {
			// 租约只用于减少重复拉取，redis 不可用时照常启动
			log.Warn("redis 连接失败，同步租约将降级", zap.Strings("addrs", cfg.Redis.Addresses), zap.Error(err))
		} else {
			log.Info("redis 连接成功", zap.Strings("addrs", cfg.Redis.Addresses))
		}
		lease = service.NewRedisLease(a.redis, cfg.Redis.LeaseDuration(), log)
	}

	translit := pinyin.New(cfg.Pinyin.Enabled)
	log.Info("拼音索引", zap.Bool("available", translit.Available()))

	provider := service.NewAkshareClient(&cfg.Akshare, log, a.metrics)
	log.Info("akshare 客户端初始化成功", zap.String("base_url", cfg.Akshare.BaseURL))

	a.stocks = service.NewStockService(database.NewStockStore(db), provider, translit, cfg.Sync.Concurrency, log)
	a.bars = service.NewBarService(
		database.NewBarStore(db, cfg.Sync.BatchSize),
		database.NewSyncStore(db),
		a.stocks,
		provider,
		lease,
		a.metrics,
		log,
		cfg.Server.DefaultDays,
	)
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("关闭数据库失败", zap.Error(err))
	}
	_ = a.logger.Sync()
}
