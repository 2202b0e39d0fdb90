package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"stock_analysis/internal/database"
	"stock_analysis/internal/metrics"
	"stock_analysis/internal/models"
	"stock_analysis/internal/symbol"
)

// BarRepository 日线存储
type BarRepository interface {
	InsertBars(ctx context.Context, code string, bars []models.Bar) (int64, error)
	Coverage(ctx context.Context, code string) (database.Coverage, error)
	QueryRange(ctx context.Context, code string, start, end *time.Time) ([]models.Bar, error)
	QueryLatest(ctx context.Context, code string, days int) ([]models.Bar, error)
}

// SyncRepository 同步记录存储
type SyncRepository interface {
	Upsert(ctx context.Context, code string, total int) error
}

// NameResolver 根据规范代码解析名称
type NameResolver interface {
	ResolveName(ctx context.Context, code string) (string, error)
}

// BarQuery 日线查询参数，StartDate/EndDate 任一非空即按区间查询
type BarQuery struct {
	Code      string
	StartDate *time.Time
	EndDate   *time.Time
	Days      int
}

// BarsResult 日线查询结果
type BarsResult struct {
	Code         string
	Name         string
	Bars         []models.Bar
	FromDatabase bool
	AutoSynced   bool
}

// SyncResult 单只证券同步结果
type SyncResult struct {
	Code             string
	TotalFromAkshare int
	Inserted         int64
	DatabaseInfo     models.DataRange
}

// BarService 日线缓存服务：库中无数据时从上游拉取并入库，再从库中返回
type BarService struct {
	bars        BarRepository
	syncs       SyncRepository
	names       NameResolver
	provider    Provider
	lease       SyncLease
	group       singleflight.Group
	metrics     *metrics.Metrics
	logger      *zap.Logger
	defaultDays int
}

// NewBarService 创建日线服务，lease 为 nil 时不做跨实例互斥
func NewBarService(bars BarRepository, syncs SyncRepository, names NameResolver, provider Provider,
	lease SyncLease, m *metrics.Metrics, logger *zap.Logger, defaultDays int) *BarService {
	if lease == nil {
		lease = NoopLease{}
	}
	if defaultDays <= 0 {
		defaultDays = 100
	}
	return &BarService{
		bars:        bars,
		syncs:       syncs,
		names:       names,
		provider:    provider,
		lease:       lease,
		metrics:     m,
		logger:      logger,
		defaultDays: defaultDays,
	}
}

// GetBars 获取日线数据。库中已有任意一条数据即视为已覆盖，不检查请求区间是否落在覆盖范围内
func (s *BarService) GetBars(ctx context.Context, q BarQuery) (*BarsResult, error) {
	code := symbol.Normalize(q.Code)
	s.logger.Info("查询日线",
		zap.String("input", q.Code),
		zap.String("code", code.Storage),
		zap.String("provider_code", code.Provider),
		zap.Bool("is_index", code.IsIndex))

	cov, err := s.bars.Coverage(ctx, code.Storage)
	if err != nil {
		return nil, fmt.Errorf("%w: 查询数据范围失败: %v", ErrStore, err)
	}

	autoSynced := false
	if cov.Exists() {
		s.metrics.CacheLookup(true)
	} else {
		s.metrics.CacheLookup(false)
		s.logger.Info("库中无数据，开始自动同步", zap.String("code", code.Storage))
		if err := s.fill(ctx, code); err != nil {
			return nil, err
		}
		autoSynced = true
	}

	bars, err := s.query(ctx, code.Storage, q)
	if err != nil {
		return nil, fmt.Errorf("%w: 查询日线失败: %v", ErrStore, err)
	}

	name, err := s.names.ResolveName(ctx, code.Storage)
	if err != nil {
		return nil, err
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: 未能获取到股票 %s 的数据", ErrNotFound, code.Storage)
	}

	return &BarsResult{
		Code:         code.Storage,
		Name:         name,
		Bars:         bars,
		FromDatabase: true,
		AutoSynced:   autoSynced,
	}, nil
}

// SyncStock 强制从上游同步一只证券，不论库中是否已有数据
func (s *BarService) SyncStock(ctx context.Context, rawCode string) (*SyncResult, error) {
	code := symbol.Normalize(rawCode)
	s.logger.Info("开始同步日线", zap.String("code", code.Storage))

	total, inserted, err := s.fetchAndStore(context.WithoutCancel(ctx), code)
	if err != nil {
		return nil, err
	}

	cov, err := s.bars.Coverage(ctx, code.Storage)
	if err != nil {
		return nil, fmt.Errorf("%w: 查询数据范围失败: %v", ErrStore, err)
	}

	return &SyncResult{
		Code:             code.Storage,
		TotalFromAkshare: total,
		Inserted:         inserted,
		DatabaseInfo:     cov.DataRange(),
	}, nil
}

func (s *BarService) query(ctx context.Context, code string, q BarQuery) ([]models.Bar, error) {
	if q.StartDate != nil || q.EndDate != nil {
		return s.bars.QueryRange(ctx, code, q.StartDate, q.EndDate)
	}
	days := q.Days
	if days <= 0 {
		days = s.defaultDays
	}
	return s.bars.QueryLatest(ctx, code, days)
}

// fill 首次同步。同进程内同一代码的并发请求共用一次上游调用，
// 跨实例通过租约互斥，租约不可用时直接拉取，由 (code, date) 唯一约束兜底
func (s *BarService) fill(ctx context.Context, code symbol.Code) error {
	// 请求取消后已开始的写入仍需完成
	fillCtx := context.WithoutCancel(ctx)

	_, err, shared := s.group.Do(code.Storage, func() (interface{}, error) {
		return nil, s.fillWithLease(fillCtx, code)
	})
	if shared {
		s.logger.Debug("复用进行中的同步", zap.String("code", code.Storage))
	}
	return err
}

func (s *BarService) fillWithLease(ctx context.Context, code symbol.Code) error {
	release, acquired, err := s.lease.Acquire(ctx, code.Storage)
	if err != nil {
		s.logger.Warn("获取同步租约失败，直接同步", zap.String("code", code.Storage), zap.Error(err))
		_, _, err = s.fetchAndStore(ctx, code)
		return err
	}

	if acquired {
		defer release()
	} else {
		s.logger.Info("其他实例正在同步，等待", zap.String("code", code.Storage))
		if err := s.lease.Wait(ctx, code.Storage); err != nil {
			s.logger.Warn("等待同步租约失败", zap.String("code", code.Storage), zap.Error(err))
		}
	}

	// 获取租约前后其他实例可能已完成同步
	cov, err := s.bars.Coverage(ctx, code.Storage)
	if err != nil {
		return fmt.Errorf("%w: 查询数据范围失败: %v", ErrStore, err)
	}
	if cov.Exists() {
		s.logger.Info("数据已由其他实例同步", zap.String("code", code.Storage), zap.Int64("total", cov.Total))
		return nil
	}

	_, _, err = s.fetchAndStore(ctx, code)
	return err
}

// fetchAndStore 从上游拉取、入库并更新同步记录，返回上游行数与新增行数
func (s *BarService) fetchAndStore(ctx context.Context, code symbol.Code) (int, int64, error) {
	bars, err := s.fetch(ctx, code)
	if err != nil {
		return 0, 0, err
	}
	if len(bars) == 0 {
		return 0, 0, fmt.Errorf("%w: 无法从 akshare 获取股票 %s 的数据，请检查股票代码是否正确", ErrUpstreamEmpty, code.Storage)
	}
	s.logger.Info("从上游获取数据", zap.String("code", code.Storage), zap.Int("rows", len(bars)))

	inserted, err := s.bars.InsertBars(ctx, code.Storage, bars)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: 写入日线失败: %v", ErrStore, err)
	}
	s.metrics.BarsInserted(inserted)

	if err := s.syncs.Upsert(ctx, code.Storage, len(bars)); err != nil {
		return 0, 0, fmt.Errorf("%w: 更新同步记录失败: %v", ErrStore, err)
	}

	s.logger.Info("同步完成",
		zap.String("code", code.Storage),
		zap.Int("total_from_akshare", len(bars)),
		zap.Int64("inserted", inserted))
	return len(bars), inserted, nil
}

// fetch 指数走指数接口（带前缀代码），股票走前复权接口（纯数字代码）
func (s *BarService) fetch(ctx context.Context, code symbol.Code) ([]models.Bar, error) {
	var (
		bars []models.Bar
		err  error
	)
	if code.IsIndex {
		bars, err = s.provider.FetchIndexDaily(ctx, code.Storage)
	} else {
		bars, err = s.provider.FetchEquityDaily(ctx, code.Provider, AdjustForward)
	}
	if err != nil {
		if !errors.Is(err, ErrUpstreamCall) {
			err = fmt.Errorf("%w: %v", ErrUpstreamCall, err)
		}
		return nil, err
	}
	return bars, nil
}
