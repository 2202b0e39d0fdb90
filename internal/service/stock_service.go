package service

import (
	"context"

	"go.uber.org/zap"

	"stock_analysis/internal/models"
	"stock_analysis/internal/pinyin"
)

// StockRepository 证券基础信息存储
type StockRepository interface {
	Upsert(ctx context.Context, info *models.StockInfo) error
	List(ctx context.Context, stockType string) ([]models.StockInfo, error)
	Search(ctx context.Context, keyword string) ([]models.StockInfo, error)
	ListMissingPinyin(ctx context.Context) ([]models.StockInfo, error)
	UpdatePinyin(ctx context.Context, code, full, abbr string) error
}

// StockService 证券基础信息：列表、搜索、同步与拼音回填
type StockService struct {
	stocks      StockRepository
	provider    Provider
	translit    pinyin.Transliterator
	concurrency int
	logger      *zap.Logger
}

// NewStockService 创建基础信息服务
func NewStockService(stocks StockRepository, provider Provider, translit pinyin.Transliterator,
	concurrency int, logger *zap.Logger) *StockService {
	if translit == nil {
		translit = pinyin.Unavailable{}
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &StockService{
		stocks:      stocks,
		provider:    provider,
		translit:    translit,
		concurrency: concurrency,
		logger:      logger,
	}
}
