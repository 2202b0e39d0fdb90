package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stock_analysis/internal/models"
	"stock_analysis/internal/symbol"
)

// StockListResult 股票列表同步结果
type StockListResult struct {
	TotalStocks int
	Failed      int
	Message     string
}

// SyncStockList 从上游同步全部 A 股代码与名称，再写入常用指数。单行失败只记录日志
func (s *StockService) SyncStockList(ctx context.Context) (*StockListResult, error) {
	s.logger.Info("开始同步股票列表")

	rows, err := s.provider.FetchAllEquitySnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: 上游未返回股票列表", ErrUpstreamEmpty)
	}
	s.logger.Info("获取股票列表成功", zap.Int("count", len(rows)))

	// 使用 errgroup 并发写入
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var successCount, failedCount int64
	for _, row := range rows {
		row := row
		g.Go(func() error {
			code := symbol.Normalize(row.Code)
			info := &models.StockInfo{
				Code:   code.Storage,
				Name:   row.Name,
				Market: symbol.Market(code.Storage),
				Type:   models.TypeStock,
			}
			info.PinyinFull, info.PinyinAbbr = s.translit.Keys(row.Name)

			if err := s.stocks.Upsert(gctx, info); err != nil {
				atomic.AddInt64(&failedCount, 1)
				s.logger.Warn("插入股票失败",
					zap.String("code", row.Code),
					zap.String("name", row.Name),
					zap.Error(err))
				return nil // 不中断其他任务
			}
			atomic.AddInt64(&successCount, 1)
			return nil
		})
	}
	_ = g.Wait()

	// 同时添加常用指数
	for _, idx := range symbol.DefaultIndices {
		info := &models.StockInfo{
			Code:   idx.Code,
			Name:   idx.Name,
			Market: idx.Market,
			Type:   models.TypeIndex,
		}
		info.PinyinFull, info.PinyinAbbr = s.translit.Keys(idx.Name)
		if err := s.stocks.Upsert(ctx, info); err != nil {
			failedCount++
			s.logger.Warn("插入指数失败",
				zap.String("code", idx.Code),
				zap.String("name", idx.Name),
				zap.Error(err))
		}
	}

	s.logger.Info("股票列表同步完成",
		zap.Int64("success", successCount),
		zap.Int64("failed", failedCount),
		zap.Int("indices", len(symbol.DefaultIndices)))

	return &StockListResult{
		TotalStocks: int(successCount),
		Failed:      int(failedCount),
		Message:     "股票列表同步完成",
	}, nil
}
